package project

import (
	"context"
	"io"
	"path/filepath"

	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

func init() {
	Register(Entry{
		Name: "add",
		Schema: ArgSchema{Params: []ParamSpec{
			{Name: "path", Kind: KindPositional, Required: true},
		}},
		Handler:     handleAdd,
		InverseKind: Physical,
	})
}

// readWorkingFile reads path relative to the repository's working copy
// boundary (spec §4.6's "read from disk"), using the billy.Filesystem
// indirection so tests can swap in an in-memory filesystem.
func readWorkingFile(r *Repo, path string) ([]byte, error) {
	f, err := r.FS.Open(filepath.ToSlash(path))
	if err != nil {
		return nil, verr.IO(err, "project: open "+path)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, verr.IO(err, "project: read "+path)
	}
	return data, nil
}

// writeWorkingFile writes data to path under the working copy,
// creating any missing parent directories, used by restore and
// remove's logical inverse to materialize content the manifest
// already names by hash. A no-op under `fake` (isFake(ctx)), since the
// transaction that would have produced this content never commits
// either.
func writeWorkingFile(ctx context.Context, r *Repo, path string, data []byte) error {
	if isFake(ctx) {
		return nil
	}
	path = filepath.ToSlash(path)
	if dir := filepath.Dir(path); dir != "." {
		if err := r.FS.MkdirAll(dir, 0o755); err != nil {
			return verr.IO(err, "project: create directory for "+path)
		}
	}
	f, err := r.FS.Create(path)
	if err != nil {
		return verr.IO(err, "project: create "+path)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return verr.IO(err, "project: write "+path)
	}
	return nil
}

// stageBlobAndFile writes the Blob and File objects a tracked file's
// manifest/tree entry target refers to, returning the File object's
// hash (spec §4.6's "write Blob and File objects").
func stageBlobAndFile(tx *txn.Transaction, data []byte, props objects.Props) (codec.Hash, error) {
	blobHash, blobData := objects.Encode(objects.Blob{Data: data})
	if err := tx.PutObject(blobHash, blobData); err != nil {
		return codec.Hash{}, err
	}
	file := objects.File{BlobHash: blobHash, Props: props}
	fileHash, fileData := objects.Encode(file)
	if err := tx.PutObject(fileHash, fileData); err != nil {
		return codec.Hash{}, err
	}
	return fileHash, nil
}

// handleAdd reads each requested path from the working copy and
// records it (or its new content) in the active session's manifest.
// Its inverse is physical: undo simply restores the prior Settings/
// session pointer, reverting the manifest to whatever it held before
// (spec §4.6: "add (paths) ... Inverse: physical (manifest pointer
// revert)").
func handleAdd(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	if !sc.SessionExists {
		return HandlerOutput{}, verr.Domainf("project: no active session")
	}
	manifest, err := sc.CurrentManifest(tx)
	if err != nil {
		return HandlerOutput{}, err
	}

	for _, p := range args.Positionals {
		data, err := readWorkingFile(r, p)
		if err != nil {
			return HandlerOutput{}, err
		}
		fileHash, err := stageBlobAndFile(tx, data, objects.Props{})
		if err != nil {
			return HandlerOutput{}, err
		}
		manifest = setManifestEntry(manifest, objects.ManifestEntry{
			Path:   filepath.ToSlash(p),
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
		Result: Result{Text: "added " + pathsText(args.Positionals)},
		After:  after,
	}, nil
}

func pathsText(paths []string) string {
	out := ""
	for i, p := range paths {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
