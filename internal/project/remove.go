package project

import (
	"context"
	"path/filepath"

	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

func init() {
	Register(Entry{
		Name: "remove",
		Schema: ArgSchema{Params: []ParamSpec{
			{Name: "path", Kind: KindPositional, Required: true},
		}},
		Handler:     handleRemove,
		InverseKind: Logical,
	})
	Register(Entry{
		Name: "restore_removed",
		Schema: ArgSchema{Params: []ParamSpec{
			{Name: "path", Kind: KindRepeatable},
			{Name: "file_hash", Kind: KindRepeatable},
		}},
		Handler:     handleRestoreRemoved,
		InverseKind: Physical,
		Internal:    true,
	})
}

// handleRemove untracks each path and deletes it from the working
// copy. Because the on-disk bytes are gone afterward, this cannot be
// undone by a pointer restore alone: the logical inverse
// "restore_removed" carries the content's hash (already durable in
// the CAS, per (H1)) so undo can write it back (spec §4.6: "remove
// (paths) ... Inverse: logical (re-write from stored Blob)").
func handleRemove(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	if !sc.SessionExists {
		return HandlerOutput{}, verr.Domainf("project: no active session")
	}
	manifest, err := sc.CurrentManifest(tx)
	if err != nil {
		return HandlerOutput{}, err
	}

	var inversePaths, inverseHashes []string
	for _, p := range args.Positionals {
		entry, ok := findManifestEntry(manifest, filepath.ToSlash(p))
		if !ok {
			return HandlerOutput{}, verr.Domainf("project: %q is not tracked", p)
		}
		if !entry.Target.Set {
			return HandlerOutput{}, verr.CorruptObjectf("project: manifest entry %q has no target", p)
		}
		fileHash := entry.Target.Hash
		fileData, err := tx.Get(fileHash)
		if err != nil {
			return HandlerOutput{}, verr.CorruptObject(err, "project: read file object for "+p)
		}
		fileVal, err := codec.Decode(fileData)
		if err != nil {
			return HandlerOutput{}, verr.CorruptObject(err, "project: decode file object for "+p)
		}
		file, err := objects.FileFromValue(fileVal)
		if err != nil {
			return HandlerOutput{}, err
		}

		if !isFake(ctx) {
			if err := r.FS.Remove(filepath.ToSlash(p)); err != nil {
				return HandlerOutput{}, verr.IO(err, "project: remove "+p)
			}
		}

		manifest = removeManifestEntry(manifest, entry.Path)
		inversePaths = append(inversePaths, entry.Path)
		inverseHashes = append(inverseHashes, file.BlobHash.String())
	}

	manifestHash, manifestData := objects.Encode(manifest)
	if err := tx.PutObject(manifestHash, manifestData); err != nil {
		return HandlerOutput{}, err
	}
	sess := sc.Session
	sess.ManifestHash = manifestHash
	settingsHash, err := sc.stageSession(tx, sess)
	if err != nil {
		return HandlerOutput{}, err
	}

	after := sc.Pointers
	after.SettingsHash = objects.SomeHash(settingsHash)

	inverseArgs := newArgs()
	inverseArgs.Repeatables["path"] = inversePaths
	inverseArgs.Repeatables["file_hash"] = inverseHashes

	return HandlerOutput{
		Result:  Result{Text: "removed " + pathsText(args.Positionals)},
		After:   after,
		Inverse: objects.LogicalInverse{Command: "restore_removed", Args: inverseArgs.ToValue()},
	}, nil
}

// handleRestoreRemoved is remove's logical inverse: it rewrites each
// path's content from the blob hash captured at removal time and
// re-adds the manifest entry, without touching the working copy's
// other files. Never dispatched directly by a user — only reached via
// commandRunner during undo/redo.
func handleRestoreRemoved(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	if !sc.SessionExists {
		return HandlerOutput{}, verr.Domainf("project: no active session")
	}
	paths := args.Repeated("path")
	hashes := args.Repeated("file_hash")
	if len(paths) != len(hashes) {
		return HandlerOutput{}, verr.CorruptObjectf("project: restore_removed path/hash count mismatch")
	}

	manifest, err := sc.CurrentManifest(tx)
	if err != nil {
		return HandlerOutput{}, err
	}

	for i, p := range paths {
		blobHash, err := codec.ParseHash(hashes[i])
		if err != nil {
			return HandlerOutput{}, verr.CorruptObjectf("project: malformed blob hash %q: %v", hashes[i], err)
		}
		blobData, err := tx.Get(blobHash)
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

		fileHash, fileData := objects.Encode(objects.File{BlobHash: blobHash, Props: objects.Props{}})
		if err := tx.PutObject(fileHash, fileData); err != nil {
			return HandlerOutput{}, err
		}
		manifest = setManifestEntry(manifest, objects.ManifestEntry{
			Path:   p,
			Kind:   objects.EntryFile,
			Target: objects.SomeHash(fileHash),
		})
	}

	manifestHash, manifestData := objects.Encode(manifest)
	if err := tx.PutObject(manifestHash, manifestData); err != nil {
		return HandlerOutput{}, err
	}
	sess := sc.Session
	sess.ManifestHash = manifestHash
	settingsHash, err := sc.stageSession(tx, sess)
	if err != nil {
		return HandlerOutput{}, err
	}

	after := sc.Pointers
	after.SettingsHash = objects.SomeHash(settingsHash)

	return HandlerOutput{
		Result: Result{Text: "restored " + pathsText(paths)},
		After:  after,
	}, nil
}
