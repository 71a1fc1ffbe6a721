package project

import (
	"context"
	"time"

	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

func init() {
	commitSchema := ArgSchema{Params: []ParamSpec{
		{Name: "author", Kind: KindSingle, Required: true},
		{Name: "message", Kind: KindSingle},
		{Name: "path", Kind: KindRepeatable},
	}}
	Register(Entry{Name: "commit", Schema: commitSchema, Handler: handleCommit, InverseKind: Physical})
	Register(Entry{Name: "commit:prepare", Schema: commitSchema, Handler: handleCommitPrepare, InverseKind: Physical})
	Register(Entry{
		Name: "commit:amend",
		Schema: ArgSchema{Params: []ParamSpec{
			{Name: "author", Kind: KindSingle},
			{Name: "message", Kind: KindSingle},
		}},
		Handler:     handleCommitAmend,
		InverseKind: Physical,
	})
}

// resolveAuthor checks author_uuid against the authors table (spec
// §6.2: "commit's author_uuid must resolve in this table; resolution
// failure is a DomainError").
func resolveAuthor(tx *txn.Transaction, sc sessionContext, uuid string) error {
	authors, err := getAuthorsTable(tx, sc.Settings)
	if err != nil {
		return err
	}
	if _, ok := authors.Resolve(uuid); !ok {
		return verr.Domainf("project: author %q is not in the authors table", uuid)
	}
	return nil
}

// buildCommit builds a Tree from the current manifest and the
// ChangelogEntry diffing it against parentTree, returning the new
// Commit object's hash. Scoping to specific paths ("commit (paths?)")
// is not implemented: the spec marks paths optional, and every path
// tracked by `add` is already what a default commit captures.
func buildCommit(tx *txn.Transaction, sc sessionContext, parent objects.OptHash, parentTreeHash, parentChangelogHash codec.Hash, kind objects.CommitKind, author, message string, now int64) (codec.Hash, error) {
	manifest, err := sc.CurrentManifest(tx)
	if err != nil {
		return codec.Hash{}, err
	}
	treeHash, err := buildTree(tx, manifest, sc.Settings)
	if err != nil {
		return codec.Hash{}, err
	}
	ops, err := diffTrees(tx, objects.SomeHash(parentTreeHash), objects.SomeHash(treeHash))
	if err != nil {
		return codec.Hash{}, err
	}
	changelog := objects.ChangelogEntry{Prev: objects.SomeHash(parentChangelogHash), Ops: ops}
	changelogHash, changelogData := objects.Encode(changelog)
	if err := tx.PutObject(changelogHash, changelogData); err != nil {
		return codec.Hash{}, err
	}

	commit := objects.Commit{
		Parent:             parent,
		RootTreeHash:       treeHash,
		AuthorUUID:         author,
		TimestampApplied:   now,
		TimestampWritten:   now,
		Message:            message,
		ChangelogEntryHash: changelogHash,
		Kind_:              kind,
	}
	commitHash, commitData := objects.Encode(commit)
	if err := tx.PutObject(commitHash, commitData); err != nil {
		return codec.Hash{}, err
	}
	return commitHash, nil
}

// handleCommit builds a Tree from the manifest, diffs it against the
// current head's tree, creates a new Commit, and moves the branch
// head forward — or, if the session has a prepared commit pending,
// simply promotes that already-built commit to head instead of
// rebuilding (spec §4.6: "a subsequent commit promotes it"). Either
// way it clears the session's prepared-commit slot.
func handleCommit(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	if !sc.SessionExists {
		return HandlerOutput{}, verr.Domainf("project: no active session")
	}
	if !sc.Session.BranchName.Set {
		return HandlerOutput{}, verr.Domainf("project: session is detached, cannot commit")
	}
	author, _ := args.Single("author")
	if err := resolveAuthor(tx, sc, author); err != nil {
		return HandlerOutput{}, err
	}

	branch, err := sc.CurrentBranch(tx)
	if err != nil {
		return HandlerOutput{}, err
	}
	currentCommit, headHash, err := sc.CurrentCommit(tx)
	if err != nil {
		return HandlerOutput{}, err
	}

	var newHead codec.Hash
	if sc.Session.PreparedCommit.Set {
		newHead = sc.Session.PreparedCommit.Hash
	} else {
		message, _ := args.Single("message")
		newHead, err = buildCommit(tx, sc, objects.SomeHash(headHash.Hash), currentCommit.RootTreeHash, currentCommit.ChangelogEntryHash, objects.CommitNormal, author, message, time.Now().Unix())
		if err != nil {
			return HandlerOutput{}, err
		}
	}

	branch.HeadHash = objects.SomeHash(newHead)
	sess := sc.Session
	sess.PreparedCommit = objects.NoHash()

	settingsHash, err := stageBranchAndSession(tx, sc, branch, sess)
	if err != nil {
		return HandlerOutput{}, err
	}

	after := sc.Pointers
	after.SettingsHash = objects.SomeHash(settingsHash)

	return HandlerOutput{Result: Result{Text: "committed " + newHead.String()}, After: after}, nil
}

// stageBranchAndSession stages a new Branch and a new Session in one
// Settings generation, so a command that moves a branch head and
// touches the session (commit, which also clears prepared_commit)
// doesn't produce two Settings writes where the second silently drops
// the first's BranchesTableHash update.
func stageBranchAndSession(tx *txn.Transaction, sc sessionContext, b objects.Branch, sess objects.Session) (codec.Hash, error) {
	bHash, bData := objects.Encode(b)
	if err := tx.PutObject(bHash, bData); err != nil {
		return codec.Hash{}, err
	}
	branches := sc.Branches.With(b.Name, bHash)
	branchesHash, err := stageBranchesTable(tx, branches)
	if err != nil {
		return codec.Hash{}, err
	}

	sessHash, sessData := objects.Encode(sess)
	if err := tx.PutObject(sessHash, sessData); err != nil {
		return codec.Hash{}, err
	}
	sessions := sc.Sessions.With(sess.UUID, sessHash)
	sessionsHash, err := stageSessionsTable(tx, sessions)
	if err != nil {
		return codec.Hash{}, err
	}

	newSettings := sc.Settings
	newSettings.BranchesTableHash = objects.SomeHash(branchesHash)
	newSettings.SessionsTableHash = objects.SomeHash(sessionsHash)
	return stageSettings(tx, newSettings)
}

// handleCommitPrepare builds the same Tree/ChangelogEntry/Commit a
// plain commit would, but parks the result in the session's
// prepared_commit slot instead of moving the branch head (spec §4.6:
// "same as commit but stored in the session's prepared_commit_hash").
func handleCommitPrepare(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	if !sc.SessionExists {
		return HandlerOutput{}, verr.Domainf("project: no active session")
	}
	if !sc.Session.BranchName.Set {
		return HandlerOutput{}, verr.Domainf("project: session is detached, cannot prepare a commit")
	}
	author, _ := args.Single("author")
	if err := resolveAuthor(tx, sc, author); err != nil {
		return HandlerOutput{}, err
	}
	message, _ := args.Single("message")

	currentCommit, headHash, err := sc.CurrentCommit(tx)
	if err != nil {
		return HandlerOutput{}, err
	}
	preparedHash, err := buildCommit(tx, sc, objects.SomeHash(headHash.Hash), currentCommit.RootTreeHash, currentCommit.ChangelogEntryHash, objects.CommitNormal, author, message, time.Now().Unix())
	if err != nil {
		return HandlerOutput{}, err
	}

	sess := sc.Session
	sess.PreparedCommit = objects.SomeHash(preparedHash)
	settingsHash, err := sc.stageSession(tx, sess)
	if err != nil {
		return HandlerOutput{}, err
	}

	after := sc.Pointers
	after.SettingsHash = objects.SomeHash(settingsHash)

	return HandlerOutput{Result: Result{Text: "prepared " + preparedHash.String()}, After: after}, nil
}

// handleCommitAmend replaces the branch head with a new commit whose
// parent is the current head's own parent — the pre-amend commit
// becomes unreachable but is not deleted (spec §4.6: "the pre-amend
// commit becomes unreachable. Inverse: physical (restore old head)").
// Restoring old head falls out of Settings-as-ref-root for free: undo
// just restores the prior SettingsHash, which still points at the old
// BranchesTable entry.
func handleCommitAmend(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	if !sc.SessionExists {
		return HandlerOutput{}, verr.Domainf("project: no active session")
	}
	if !sc.Session.BranchName.Set {
		return HandlerOutput{}, verr.Domainf("project: session is detached, cannot amend")
	}
	branch, err := sc.CurrentBranch(tx)
	if err != nil {
		return HandlerOutput{}, err
	}
	currentCommit, _, err := sc.CurrentCommit(tx)
	if err != nil {
		return HandlerOutput{}, err
	}

	author := currentCommit.AuthorUUID
	if a, ok := args.Single("author"); ok {
		if err := resolveAuthor(tx, sc, a); err != nil {
			return HandlerOutput{}, err
		}
		author = a
	}
	message := currentCommit.Message
	if m, ok := args.Single("message"); ok {
		message = m
	}

	var parentTreeHash, parentChangelogHash codec.Hash
	if currentCommit.Parent.Set {
		parentCommit, err := getCommit(tx, currentCommit.Parent.Hash)
		if err != nil {
			return HandlerOutput{}, err
		}
		parentTreeHash = parentCommit.RootTreeHash
		parentChangelogHash = parentCommit.ChangelogEntryHash
	} else {
		parentTreeHash, err = stageEmptyTree(tx)
		if err != nil {
			return HandlerOutput{}, err
		}
		emptyChangelog := objects.ChangelogEntry{Prev: objects.NoHash()}
		var changelogData []byte
		parentChangelogHash, changelogData = objects.Encode(emptyChangelog)
		if err := tx.PutObject(parentChangelogHash, changelogData); err != nil {
			return HandlerOutput{}, err
		}
	}

	newHead, err := buildCommit(tx, sc, currentCommit.Parent, parentTreeHash, parentChangelogHash, objects.CommitAmend, author, message, time.Now().Unix())
	if err != nil {
		return HandlerOutput{}, err
	}

	branch.HeadHash = objects.SomeHash(newHead)
	settingsHash, err := sc.stageBranch(tx, branch)
	if err != nil {
		return HandlerOutput{}, err
	}

	after := sc.Pointers
	after.SettingsHash = objects.SomeHash(settingsHash)

	return HandlerOutput{Result: Result{Text: "amended to " + newHead.String()}, After: after}, nil
}

func getCommit(tx *txn.Transaction, h codec.Hash) (objects.Commit, error) {
	data, err := tx.Get(h)
	if err != nil {
		return objects.Commit{}, verr.CorruptObject(err, "project: read commit")
	}
	v, err := codec.Decode(data)
	if err != nil {
		return objects.Commit{}, verr.CorruptObject(err, "project: decode commit")
	}
	return objects.CommitFromValue(v)
}
