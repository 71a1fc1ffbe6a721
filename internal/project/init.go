package project

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

func init() {
	Register(Entry{
		Name: "init",
		Schema: ArgSchema{Params: []ParamSpec{
			{Name: "include", Kind: KindRepeatable},
			{Name: "ignore", Kind: KindRepeatable},
			{Name: "compat", Kind: KindBool},
		}},
		Handler:     handleInit,
		InverseKind: Logical,
	})
	Register(Entry{
		Name:        "uninit",
		Schema:      ArgSchema{},
		Handler:     handleUninit,
		InverseKind: Logical,
		Internal:    true,
	})
}

// handleInit materializes a fresh repository's object graph: Settings,
// an empty initial Commit, a "latest" (or "master" in --compat mode)
// Branch, and an attached Session (spec §4.6's init). The inverse is
// logical ("uninit"): it clears the repository pointers but deletes
// nothing under .vex/, per the resolved Open Question in DESIGN.md.
func handleInit(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	if sc.Pointers.SettingsHash.Set {
		return HandlerOutput{}, verr.Domainf("project: repository already initialized")
	}

	branchName := "latest"
	if args.Bool("compat") {
		branchName = "master"
	}

	emptyTreeHash, err := stageEmptyTree(tx)
	if err != nil {
		return HandlerOutput{}, err
	}

	now := time.Now().Unix()
	initCommit := objects.Commit{
		Parent:           objects.NoHash(),
		RootTreeHash:     emptyTreeHash,
		AuthorUUID:       "",
		TimestampApplied: now,
		TimestampWritten: now,
		Message:          "initial commit",
		Kind_:            objects.CommitInit,
	}
	changelog := objects.ChangelogEntry{Prev: objects.NoHash()}
	changelogHash, changelogData := objects.Encode(changelog)
	if err := tx.PutObject(changelogHash, changelogData); err != nil {
		return HandlerOutput{}, err
	}
	initCommit.ChangelogEntryHash = changelogHash
	commitHash, commitData := objects.Encode(initCommit)
	if err := tx.PutObject(commitHash, commitData); err != nil {
		return HandlerOutput{}, err
	}

	branch := objects.Branch{Name: branchName, HeadHash: objects.SomeHash(commitHash), UpstreamOf: objects.NoHash()}
	branchHash, branchData := objects.Encode(branch)
	if err := tx.PutObject(branchHash, branchData); err != nil {
		return HandlerOutput{}, err
	}
	branches := objects.BranchesTable{}.With(branchName, branchHash)
	branchesHash, err := stageBranchesTable(tx, branches)
	if err != nil {
		return HandlerOutput{}, err
	}

	emptyManifest := objects.Manifest{}
	manifestHash, manifestData := objects.Encode(emptyManifest)
	if err := tx.PutObject(manifestHash, manifestData); err != nil {
		return HandlerOutput{}, err
	}

	sessionUUID := uuid.NewString()
	sess := objects.Session{
		UUID:         sessionUUID,
		BranchName:   objects.SomeString(branchName),
		ManifestHash: manifestHash,
	}
	sessHash, sessData := objects.Encode(sess)
	if err := tx.PutObject(sessHash, sessData); err != nil {
		return HandlerOutput{}, err
	}
	sessions := objects.SessionsTable{}.With(sessionUUID, sessHash)
	sessionsHash, err := stageSessionsTable(tx, sessions)
	if err != nil {
		return HandlerOutput{}, err
	}

	settings := objects.Settings{
		IncludePatterns:   args.Repeated("include"),
		IgnorePatterns:    args.Repeated("ignore"),
		BranchesTableHash: objects.SomeHash(branchesHash),
		SessionsTableHash: objects.SomeHash(sessionsHash),
	}
	settingsHash, err := stageSettings(tx, settings)
	if err != nil {
		return HandlerOutput{}, err
	}

	after := objects.PointerSnapshot{
		ActiveSessionUUID: objects.SomeString(sessionUUID),
		SettingsHash:      objects.SomeHash(settingsHash),
	}

	return HandlerOutput{
		Result:  Result{Text: "initialized repository on branch " + branchName},
		After:   after,
		Inverse: objects.LogicalInverse{Command: "uninit", Args: args.ToValue()},
	}, nil
}

// handleUninit is init's logical inverse: it clears the active
// repository pointers, leaving the .vex/ directory and any already-
// written CAS objects on disk (they become unreachable garbage, swept
// by a future explicit GC, never by undo itself).
func handleUninit(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	return HandlerOutput{
		Result:  Result{Text: "uninitialized repository"},
		After:   objects.PointerSnapshot{},
		Inverse: objects.LogicalInverse{Command: "init", Args: args.ToValue()},
	}, nil
}
