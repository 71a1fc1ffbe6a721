package project

import (
	"context"

	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

func init() {
	Register(Entry{
		Name:        "branch:new",
		Schema:      ArgSchema{Params: []ParamSpec{{Name: "name", Kind: KindPositional, Required: true}}},
		Handler:     handleBranchNew,
		InverseKind: Physical,
	})
	Register(Entry{
		Name:        "branch:open",
		Schema:      ArgSchema{Params: []ParamSpec{{Name: "name", Kind: KindPositional, Required: true}}},
		Handler:     handleBranchOpen,
		InverseKind: Logical,
	})
	Register(Entry{
		Name:        "branch:open_restore",
		Schema:      ArgSchema{Params: []ParamSpec{{Name: "name", Kind: KindPositional, Required: true}}},
		Handler:     handleBranchOpen,
		InverseKind: Logical,
		Internal:    true,
	})
	Register(Entry{
		Name:        "branch:saveas",
		Schema:      ArgSchema{Params: []ParamSpec{{Name: "name", Kind: KindPositional, Required: true}}},
		Handler:     handleBranchSaveas,
		InverseKind: Logical,
	})
	Register(Entry{
		Name:        "branch:swap",
		Schema:      ArgSchema{Params: []ParamSpec{{Name: "name", Kind: KindPositional, Required: true}}},
		Handler:     handleBranchSwap,
		InverseKind: Physical,
	})
}

// handleBranchNew creates a new, headless Branch pointing nowhere yet
// (spec §4.6: "branch:new (name) ... create"). The active session is
// left wherever it was; a fresh branch is attached to by a later
// branch:open.
func handleBranchNew(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	name, _ := args.Positional(0)
	if _, ok := sc.Branches.Lookup(name); ok {
		return HandlerOutput{}, verr.Domainf("project: branch %q already exists", name)
	}
	branch := objects.Branch{Name: name, HeadHash: objects.NoHash(), UpstreamOf: objects.NoHash()}
	settingsHash, err := sc.stageBranch(tx, branch)
	if err != nil {
		return HandlerOutput{}, err
	}
	after := sc.Pointers
	after.SettingsHash = objects.SomeHash(settingsHash)
	return HandlerOutput{Result: Result{Text: "created branch " + name}, After: after}, nil
}

// handleBranchOpen attaches the active session to an existing branch,
// stashing the session's current uncommitted work under the old
// branch's label and restoring whatever was last stashed for the
// target branch (spec §4.6: "branch:open (name) ... attach... performs
// stash-and-unstash"). It is also registered as branch:open_restore,
// reached only through commandRunner during undo/redo of a
// branch:saveas or another branch:open — the two names share one
// handler because "attach to a branch, stash-and-unstash" is the same
// operation regardless of which direction it's travelling.
func handleBranchOpen(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	if !sc.SessionExists {
		return HandlerOutput{}, verr.Domainf("project: no active session")
	}
	name, _ := args.Positional(0)
	targetHash, ok := sc.Branches.Lookup(name)
	if !ok {
		return HandlerOutput{}, verr.Domainf("project: branch %q does not exist", name)
	}
	target, err := getBranch(tx, targetHash)
	if err != nil {
		return HandlerOutput{}, err
	}

	oldName := "detached"
	if sc.Session.BranchName.Set {
		oldName = sc.Session.BranchName.Value
	}

	sess := sc.Session
	sess, err = pushStash(tx, sess, branchLabel(oldName), sc.Session.DetachedAt)
	if err != nil {
		return HandlerOutput{}, err
	}

	manifestHash := sess.ManifestHash
	stashHead := sess.StashHead
	popped, newHead, err := tryPopLabel(tx, stashHead, branchLabel(name))
	if err != nil {
		return HandlerOutput{}, err
	}
	if popped != nil {
		if err := materializeManifest(ctx, tx, r, *popped); err != nil {
			return HandlerOutput{}, err
		}
		manifestHash = popped.ManifestHash
		stashHead = newHead
	} else if target.HeadHash.Set {
		commit, err := getCommit(tx, target.HeadHash.Hash)
		if err != nil {
			return HandlerOutput{}, err
		}
		fresh, err := checkoutTree(ctx, tx, r, commit.RootTreeHash)
		if err != nil {
			return HandlerOutput{}, err
		}
		freshHash, freshData := objects.Encode(fresh)
		if err := tx.PutObject(freshHash, freshData); err != nil {
			return HandlerOutput{}, err
		}
		manifestHash = freshHash
	}

	sess.BranchName = objects.SomeString(name)
	sess.DetachedAt = objects.NoHash()
	sess.ManifestHash = manifestHash
	sess.StashHead = stashHead

	settingsHash, err := sc.stageSession(tx, sess)
	if err != nil {
		return HandlerOutput{}, err
	}

	after := sc.Pointers
	after.SettingsHash = objects.SomeHash(settingsHash)

	inverseArgs := newArgs()
	inverseArgs.Positionals = []string{oldName}
	return HandlerOutput{
		Result:  Result{Text: "opened branch " + name},
		After:   after,
		Inverse: objects.LogicalInverse{Command: "branch:open_restore", Args: inverseArgs.ToValue()},
	}, nil
}

// handleBranchSaveas forks the current branch (or detached commit) into
// a brand new branch name pointing at the same head, then attaches the
// session to it, so uncommitted work the session is holding travels
// with it (spec §4.6: "branch:saveas (name) ... fork").
func handleBranchSaveas(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	if !sc.SessionExists {
		return HandlerOutput{}, verr.Domainf("project: no active session")
	}
	name, _ := args.Positional(0)
	if _, ok := sc.Branches.Lookup(name); ok {
		return HandlerOutput{}, verr.Domainf("project: branch %q already exists", name)
	}
	_, headHash, err := sc.CurrentCommit(tx)
	if err != nil {
		return HandlerOutput{}, err
	}

	newBranch := objects.Branch{Name: name, HeadHash: objects.SomeHash(headHash.Hash), UpstreamOf: objects.NoHash()}
	branchHash, branchData := objects.Encode(newBranch)
	if err := tx.PutObject(branchHash, branchData); err != nil {
		return HandlerOutput{}, err
	}
	branches := sc.Branches.With(name, branchHash)
	branchesHash, err := stageBranchesTable(tx, branches)
	if err != nil {
		return HandlerOutput{}, err
	}

	oldName := "detached"
	if sc.Session.BranchName.Set {
		oldName = sc.Session.BranchName.Value
	}
	sess := sc.Session
	sess.BranchName = objects.SomeString(name)
	sess.DetachedAt = objects.NoHash()

	sessHash, sessData := objects.Encode(sess)
	if err := tx.PutObject(sessHash, sessData); err != nil {
		return HandlerOutput{}, err
	}
	sessions := sc.Sessions.With(sess.UUID, sessHash)
	sessionsHash, err := stageSessionsTable(tx, sessions)
	if err != nil {
		return HandlerOutput{}, err
	}

	newSettings := sc.Settings
	newSettings.BranchesTableHash = objects.SomeHash(branchesHash)
	newSettings.SessionsTableHash = objects.SomeHash(sessionsHash)
	settingsHash, err := stageSettings(tx, newSettings)
	if err != nil {
		return HandlerOutput{}, err
	}

	after := sc.Pointers
	after.SettingsHash = objects.SomeHash(settingsHash)

	inverseArgs := newArgs()
	inverseArgs.Positionals = []string{oldName}
	return HandlerOutput{
		Result:  Result{Text: "forked branch " + name},
		After:   after,
		Inverse: objects.LogicalInverse{Command: "branch:open_restore", Args: inverseArgs.ToValue()},
	}, nil
}

// handleBranchSwap exchanges two branches' names in the branches table,
// leaving both uuids/heads untouched (spec §4.6: "branch:swap ... swap
// names of two branches, leaving both uuids and heads intact. Inverse:
// physical (swap back)").
func handleBranchSwap(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	names := args.Positionals
	if len(names) != 2 {
		return HandlerOutput{}, verr.Usagef("project: branch:swap requires exactly two branch names")
	}
	aName, bName := names[0], names[1]
	aHash, ok := sc.Branches.Lookup(aName)
	if !ok {
		return HandlerOutput{}, verr.Domainf("project: branch %q does not exist", aName)
	}
	bHash, ok := sc.Branches.Lookup(bName)
	if !ok {
		return HandlerOutput{}, verr.Domainf("project: branch %q does not exist", bName)
	}
	a, err := getBranch(tx, aHash)
	if err != nil {
		return HandlerOutput{}, err
	}
	b, err := getBranch(tx, bHash)
	if err != nil {
		return HandlerOutput{}, err
	}
	a.Name, b.Name = b.Name, a.Name

	aNewHash, aNewData := objects.Encode(a)
	if err := tx.PutObject(aNewHash, aNewData); err != nil {
		return HandlerOutput{}, err
	}
	bNewHash, bNewData := objects.Encode(b)
	if err := tx.PutObject(bNewHash, bNewData); err != nil {
		return HandlerOutput{}, err
	}

	branches := sc.Branches.With(aName, bNewHash).With(bName, aNewHash)
	branchesHash, err := stageBranchesTable(tx, branches)
	if err != nil {
		return HandlerOutput{}, err
	}
	newSettings := sc.Settings
	newSettings.BranchesTableHash = objects.SomeHash(branchesHash)
	settingsHash, err := stageSettings(tx, newSettings)
	if err != nil {
		return HandlerOutput{}, err
	}

	after := sc.Pointers
	after.SettingsHash = objects.SomeHash(settingsHash)
	return HandlerOutput{Result: Result{Text: "swapped branches " + aName + " and " + bName}, After: after}, nil
}

func branchLabel(name string) string {
	return "branch:" + name
}

func getBranch(tx *txn.Transaction, h codec.Hash) (objects.Branch, error) {
	data, err := tx.Get(h)
	if err != nil {
		return objects.Branch{}, verr.CorruptObject(err, "project: read branch")
	}
	v, err := codec.Decode(data)
	if err != nil {
		return objects.Branch{}, verr.CorruptObject(err, "project: decode branch")
	}
	return objects.BranchFromValue(v)
}

// tryPopLabel pops a stash entry labeled label from the chain rooted at
// head, returning a nil entry (and the original head) if none exists.
func tryPopLabel(tx *txn.Transaction, head objects.OptHash, label string) (*objects.StashEntry, objects.OptHash, error) {
	placeholder := objects.Session{StashHead: head}
	entry, newHead, err := popStash(tx, placeholder, label)
	if err != nil {
		if e, ok := verr.As(err); ok && e.Kind() == verr.KindDomain {
			return nil, head, nil
		}
		return nil, head, err
	}
	return &entry, newHead, nil
}

// materializeManifest writes every file entry in a stashed manifest
// back to disk, used when branch:open restores a previously stashed
// manifest instead of checking out fresh from the target's commit.
func materializeManifest(ctx context.Context, tx *txn.Transaction, r *Repo, entry objects.StashEntry) error {
	m, err := getManifestByHash(tx, entry.ManifestHash)
	if err != nil {
		return err
	}
	for _, e := range m.Entries {
		if e.Kind != objects.EntryFile || !e.Target.Set {
			continue
		}
		if err := materializeTreeEntry(ctx, tx, r, e.Path, objects.TreeEntry{Kind: e.Kind, Target: e.Target, Props: e.Props}); err != nil {
			return err
		}
	}
	return nil
}

// checkoutTree builds a fresh Manifest from treeHash's flattened
// entries and writes each file to disk, used by branch:open when the
// target branch has no stashed manifest to restore.
func checkoutTree(ctx context.Context, tx *txn.Transaction, r *Repo, treeHash codec.Hash) (objects.Manifest, error) {
	flat, err := flattenTree(tx, "", objects.SomeHash(treeHash))
	if err != nil {
		return objects.Manifest{}, err
	}
	m := objects.Manifest{}
	for p, e := range flat {
		if err := materializeTreeEntry(ctx, tx, r, p, e); err != nil {
			return objects.Manifest{}, err
		}
		m = setManifestEntry(m, objects.ManifestEntry{Path: p, Kind: e.Kind, Target: e.Target, Props: e.Props})
	}
	return m, nil
}
