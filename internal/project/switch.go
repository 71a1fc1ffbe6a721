package project

import (
	"context"
	"os"
	"strings"

	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

func init() {
	Register(Entry{
		Name:        "switch",
		Schema:      ArgSchema{Params: []ParamSpec{{Name: "prefix", Kind: KindSingle, Required: true}}},
		Handler:     handleSwitch,
		InverseKind: Logical,
	})
	Register(Entry{
		Name:        "switch:restore_prefix",
		Schema:      ArgSchema{Params: []ParamSpec{{Name: "prefix", Kind: KindSingle, Required: true}}},
		Handler:     handleSwitchRestorePrefix,
		InverseKind: Logical,
		Internal:    true,
	})
}

func prefixLabel(prefix string) string {
	return "prefix:" + prefix
}

// diskPath strips prefix from a full, repo-rooted path to get the path
// a session with that prefix checked out shows on disk. A path not
// under prefix has no disk representation under that checkout.
func diskPath(full, prefix string) (string, bool) {
	if prefix == "" {
		return full, true
	}
	if full == prefix {
		return "", false
	}
	if strings.HasPrefix(full, prefix+"/") {
		return strings.TrimPrefix(full, prefix+"/"), true
	}
	return "", false
}

// prefixSwitchStrategy materializes the subtree rooted at a new prefix
// into the working copy, stashing whatever the old prefix had checked
// out first (spec §4.6: "switch (prefix) ... materialize the subtree
// rooted at the new prefix; move files not under the new prefix out of
// the working copy into a prefix-stash"), mirroring the teacher's
// checkout-strategy split (internal/git/commands/checkout/*).
type prefixSwitchStrategy struct{}

func (prefixSwitchStrategy) Execute(ctx context.Context, sc *StrategyContext) (HandlerOutput, error) {
	r, tx, s := sc.Repo, sc.Tx, sc.Session
	if !s.SessionExists {
		return HandlerOutput{}, verr.Domainf("project: no active session")
	}
	newPrefix, _ := sc.Args.Single("prefix")
	oldPrefix := s.Session.Prefix
	if oldPrefix == newPrefix {
		return HandlerOutput{}, verr.Domainf("project: session is already checked out at prefix %q", newPrefix)
	}

	commit, _, err := s.CurrentCommit(tx)
	if err != nil {
		return HandlerOutput{}, err
	}
	treeFlat, err := flattenTree(tx, "", objects.SomeHash(commit.RootTreeHash))
	if err != nil {
		return HandlerOutput{}, err
	}
	manifest, err := s.CurrentManifest(tx)
	if err != nil {
		return HandlerOutput{}, err
	}

	sess := s.Session

	// Stash everything the old prefix had on disk before clobbering it.
	oldView := objects.Manifest{}
	for _, e := range manifest.Entries {
		if dp, ok := diskPath(e.Path, oldPrefix); ok {
			stashed := e
			stashed.Path = dp
			oldView = setManifestEntry(oldView, stashed)
			if !isFake(ctx) {
				if err := r.FS.Remove(dp); err != nil && !os.IsNotExist(err) {
					return HandlerOutput{}, verr.IO(err, "project: remove "+dp)
				}
			}
		}
	}
	oldViewHash, oldViewData := objects.Encode(oldView)
	if err := tx.PutObject(oldViewHash, oldViewData); err != nil {
		return HandlerOutput{}, err
	}
	sess, err = pushStash(tx, sess, prefixLabel(oldPrefix), objects.NoHash())
	if err != nil {
		return HandlerOutput{}, err
	}

	// Materialize the new prefix's view, preferring a prior stash of it
	// (so switching back and forth restores uncommitted edits) over the
	// commit tree.
	restoredFromStash, err := tryRestorePrefixFromStash(ctx, tx, r, &sess, newPrefix)
	if err != nil {
		return HandlerOutput{}, err
	}
	if !restoredFromStash {
		for full, entry := range treeFlat {
			dp, ok := diskPath(full, newPrefix)
			if !ok {
				continue
			}
			if err := materializeTreeEntry(ctx, tx, r, dp, entry); err != nil {
				return HandlerOutput{}, err
			}
		}
	}

	sess.Prefix = newPrefix
	settingsHash, err := s.stageSession(tx, sess)
	if err != nil {
		return HandlerOutput{}, err
	}

	after := s.Pointers
	after.SettingsHash = objects.SomeHash(settingsHash)

	inverseArgs := newArgs()
	inverseArgs.Singles["prefix"] = oldPrefix
	return HandlerOutput{
		Result:  Result{Text: "switched to prefix " + newPrefix},
		After:   after,
		Inverse: objects.LogicalInverse{Command: "switch:restore_prefix", Args: inverseArgs.ToValue()},
	}, nil
}

func materializeTreeEntry(ctx context.Context, tx *txn.Transaction, r *Repo, diskPath string, entry objects.TreeEntry) error {
	if entry.Kind != objects.EntryFile || !entry.Target.Set {
		return nil
	}
	fileData, err := tx.Get(entry.Target.Hash)
	if err != nil {
		return verr.CorruptObject(err, "project: read file for "+diskPath)
	}
	fileVal, err := codec.Decode(fileData)
	if err != nil {
		return verr.CorruptObject(err, "project: decode file for "+diskPath)
	}
	file, err := objects.FileFromValue(fileVal)
	if err != nil {
		return err
	}
	blobData, err := tx.Get(file.BlobHash)
	if err != nil {
		return verr.CorruptObject(err, "project: read blob for "+diskPath)
	}
	blobVal, err := codec.Decode(blobData)
	if err != nil {
		return verr.CorruptObject(err, "project: decode blob for "+diskPath)
	}
	blob, err := objects.BlobFromValue(blobVal)
	if err != nil {
		return err
	}
	return writeWorkingFile(ctx, r, diskPath, blob.Data)
}

// tryRestorePrefixFromStash looks for a prefix-stash labeled for
// newPrefix and, if found, pops it and writes its files back to disk,
// reporting whether one existed.
func tryRestorePrefixFromStash(ctx context.Context, tx *txn.Transaction, r *Repo, sess *objects.Session, newPrefix string) (bool, error) {
	entry, newHead, err := popStash(tx, *sess, prefixLabel(newPrefix))
	if err != nil {
		if e, ok := verr.As(err); ok && e.Kind() == verr.KindDomain {
			return false, nil
		}
		return false, err
	}
	manifest, err := getManifestByHash(tx, entry.ManifestHash)
	if err != nil {
		return false, err
	}
	for _, e := range manifest.Entries {
		if err := materializeTreeEntry(ctx, tx, r, e.Path, objects.TreeEntry{Kind: e.Kind, Target: e.Target, Props: e.Props}); err != nil {
			return false, err
		}
	}
	sess.StashHead = newHead
	return true, nil
}

func handleSwitch(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	strat := prefixSwitchStrategy{}
	return strat.Execute(ctx, &StrategyContext{Repo: r, Tx: tx, Session: sc, Args: args})
}

// handleSwitchRestorePrefix is switch's logical inverse: switch back to
// the prefix the session held before, restoring its prior on-disk view
// from whatever prefix-stash switch pushed for it.
func handleSwitchRestorePrefix(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	strat := prefixSwitchStrategy{}
	return strat.Execute(ctx, &StrategyContext{Repo: r, Tx: tx, Session: sc, Args: args})
}
