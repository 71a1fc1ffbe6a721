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
		Name:        "restore",
		Schema:      ArgSchema{Params: []ParamSpec{{Name: "path", Kind: KindPositional, Required: true}}},
		Handler:     handleRestore,
		InverseKind: Logical,
	})
	Register(Entry{
		Name: "unstash_restore",
		Schema: ArgSchema{Params: []ParamSpec{
			{Name: "label", Kind: KindSingle, Required: true},
		}},
		Handler:     handleUnstashRestore,
		InverseKind: Physical,
		Internal:    true,
	})
}

// handleRestore overwrites each path's working-copy content with what
// the current commit's tree holds. The bytes it's about to clobber
// are pushed onto the session's stash first under a label derived
// from this action, so the logical inverse can put them back (spec
// §4.6: "restore (paths) ... Inverse: logical (re-stash the now-
// overwritten blobs, restore on redo from stash)").
func handleRestore(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	if !sc.SessionExists {
		return HandlerOutput{}, verr.Domainf("project: no active session")
	}
	commit, headHash, err := sc.CurrentCommit(tx)
	if err != nil {
		return HandlerOutput{}, err
	}
	treeFlat, err := flattenTree(tx, "", objects.SomeHash(commit.RootTreeHash))
	if err != nil {
		return HandlerOutput{}, err
	}

	manifest, err := sc.CurrentManifest(tx)
	if err != nil {
		return HandlerOutput{}, err
	}

	label := "restore:" + headHash.Hash.String()
	sess := sc.Session
	// The manifest pointer about to be replaced already addresses
	// every path's prior content by hash, so pushing it onto the stash
	// before mutating is enough to "re-stash the now-overwritten blobs"
	// — no need to re-read and re-blob the working copy.
	sess, err = pushStash(tx, sess, label, objects.SomeHash(headHash.Hash))
	if err != nil {
		return HandlerOutput{}, err
	}

	for _, p := range args.Positionals {
		treeEntry, ok := treeFlat[p]
		if !ok {
			return HandlerOutput{}, verr.Domainf("project: %q is not present in the current commit", p)
		}
		fileData, err := tx.Get(treeEntry.Target.Hash)
		if err != nil {
			return HandlerOutput{}, verr.CorruptObject(err, "project: read file for "+p)
		}
		fileVal, err := codec.Decode(fileData)
		if err != nil {
			return HandlerOutput{}, verr.CorruptObject(err, "project: decode file for "+p)
		}
		file, err := objects.FileFromValue(fileVal)
		if err != nil {
			return HandlerOutput{}, err
		}
		blobData, err := tx.Get(file.BlobHash)
		if err != nil {
			return HandlerOutput{}, verr.CorruptObject(err, "project: read blob for "+p)
		}
		blobVal, err := codec.Decode(blobData)
		if err != nil {
			return HandlerOutput{}, verr.CorruptObject(err, "project: decode blob for "+p)
		}
		blob, err := objects.BlobFromValue(blobVal)
		if err != nil {
			return HandlerOutput{}, err
		}
		if err := writeWorkingFile(ctx, r, p, blob.Data); err != nil {
			return HandlerOutput{}, err
		}
		manifest = setManifestEntry(manifest, objects.ManifestEntry{
			Path: p, Kind: treeEntry.Kind, Target: treeEntry.Target, Props: treeEntry.Props,
		})
	}

	manifestHash, manifestData := objects.Encode(manifest)
	if err := tx.PutObject(manifestHash, manifestData); err != nil {
		return HandlerOutput{}, err
	}
	sess.ManifestHash = manifestHash
	settingsHash, err := sc.stageSession(tx, sess)
	if err != nil {
		return HandlerOutput{}, err
	}

	after := sc.Pointers
	after.SettingsHash = objects.SomeHash(settingsHash)

	inverseArgs := newArgs()
	inverseArgs.Singles["label"] = label

	return HandlerOutput{
		Result:  Result{Text: "restored " + pathsText(args.Positionals)},
		After:   after,
		Inverse: objects.LogicalInverse{Command: "unstash_restore", Args: inverseArgs.ToValue()},
	}, nil
}

// handleUnstashRestore pops the stash entry restore pushed and writes
// its manifest's paths back to disk, undoing the overwrite. It is
// registered Physical (its own effect is fully captured by the
// Settings-rooted pointer it changes) and, like restore_removed, is
// only ever reached through commandRunner during undo/redo.
func handleUnstashRestore(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	if !sc.SessionExists {
		return HandlerOutput{}, verr.Domainf("project: no active session")
	}
	label, _ := args.Single("label")
	sess := sc.Session
	entry, newHead, err := popStash(tx, sess, label)
	if err != nil {
		return HandlerOutput{}, err
	}

	stashedManifest, err := getManifestByHash(tx, entry.ManifestHash)
	if err != nil {
		return HandlerOutput{}, err
	}
	for _, e := range stashedManifest.Entries {
		if !e.Target.Set {
			continue
		}
		fileData, err := tx.Get(e.Target.Hash)
		if err != nil {
			return HandlerOutput{}, verr.CorruptObject(err, "project: read file for "+e.Path)
		}
		fileVal, err := codec.Decode(fileData)
		if err != nil {
			return HandlerOutput{}, verr.CorruptObject(err, "project: decode file for "+e.Path)
		}
		file, err := objects.FileFromValue(fileVal)
		if err != nil {
			return HandlerOutput{}, err
		}
		blobData, err := tx.Get(file.BlobHash)
		if err != nil {
			return HandlerOutput{}, verr.CorruptObject(err, "project: read blob for "+e.Path)
		}
		blobVal, err := codec.Decode(blobData)
		if err != nil {
			return HandlerOutput{}, verr.CorruptObject(err, "project: decode blob for "+e.Path)
		}
		blob, err := objects.BlobFromValue(blobVal)
		if err != nil {
			return HandlerOutput{}, err
		}
		if err := writeWorkingFile(ctx, r, e.Path, blob.Data); err != nil {
			return HandlerOutput{}, err
		}
	}

	sess.StashHead = newHead
	manifestHash, manifestData := objects.Encode(stashedManifest)
	if err := tx.PutObject(manifestHash, manifestData); err != nil {
		return HandlerOutput{}, err
	}
	sess.ManifestHash = manifestHash
	settingsHash, err := sc.stageSession(tx, sess)
	if err != nil {
		return HandlerOutput{}, err
	}

	after := sc.Pointers
	after.SettingsHash = objects.SomeHash(settingsHash)

	return HandlerOutput{Result: Result{Text: "unstashed " + label}, After: after}, nil
}

func getManifestByHash(tx *txn.Transaction, h codec.Hash) (objects.Manifest, error) {
	data, err := tx.Get(h)
	if err != nil {
		return objects.Manifest{}, verr.CorruptObject(err, "project: read manifest")
	}
	v, err := codec.Decode(data)
	if err != nil {
		return objects.Manifest{}, verr.CorruptObject(err, "project: decode manifest")
	}
	return objects.ManifestFromValue(v)
}
