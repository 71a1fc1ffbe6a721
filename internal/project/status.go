package project

import (
	"context"
	"os"
	"path"
	"sort"

	"github.com/go-git/go-billy/v5"

	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
)

func init() {
	Register(Entry{
		Name:     "status",
		Schema:   ArgSchema{},
		Handler:  handleStatus,
		ReadOnly: true,
	})
}

// StatusEntry is one line of `status` output: a path and the state
// `commit` would see it in.
type StatusEntry struct {
	Path   string
	Status string // added, modified, deleted, untracked, ignored
}

const (
	StatusAdded     = "added"
	StatusModified  = "modified"
	StatusDeleted   = "deleted"
	StatusUntracked = "untracked"
	StatusIgnored   = "ignored"
)

// handleStatus computes working-copy status by comparing the active
// session's manifest, the current commit's tree, and the working
// copy's actual files, rather than storing a status label on each
// manifest entry — the three-way comparison is cheap enough (the tree
// is already the canonical "last known committed" state) and keeps
// the manifest itself a plain tracking table (spec §4.6: "status —
// read-only, no action appended").
func handleStatus(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	if !sc.SessionExists {
		return HandlerOutput{
			Result: Result{Text: "no active session"},
		}, nil
	}
	manifest, err := sc.CurrentManifest(tx)
	if err != nil {
		return HandlerOutput{}, err
	}

	var treeFlat map[string]objects.TreeEntry
	if commit, _, err := sc.CurrentCommit(tx); err == nil {
		treeFlat, err = flattenTree(tx, "", objects.SomeHash(commit.RootTreeHash))
		if err != nil {
			return HandlerOutput{}, err
		}
	} else {
		treeFlat = map[string]objects.TreeEntry{}
	}

	byPath := map[string]*StatusEntry{}
	order := []string{}
	touch := func(p, status string) {
		if e, ok := byPath[p]; ok {
			e.Status = status
			return
		}
		byPath[p] = &StatusEntry{Path: p, Status: status}
		order = append(order, p)
	}

	for _, e := range manifest.Entries {
		if e.Ignored || isIgnored(sc.Settings, e.Path) {
			touch(e.Path, StatusIgnored)
			continue
		}
		data, statErr := readWorkingFile(r, e.Path)
		if statErr != nil {
			touch(e.Path, StatusDeleted)
			continue
		}
		currentHash, err := hashFileContent(tx, data)
		if err != nil {
			return HandlerOutput{}, err
		}
		if !e.Target.Set || !hashesEqual(e.Target, objects.SomeHash(currentHash)) {
			// On-disk content has drifted from what `add` last recorded.
			if _, wasCommitted := treeFlat[e.Path]; wasCommitted {
				touch(e.Path, StatusModified)
			} else {
				touch(e.Path, StatusAdded)
			}
			continue
		}
		if _, wasCommitted := treeFlat[e.Path]; !wasCommitted {
			touch(e.Path, StatusAdded)
		}
	}

	if err := walkWorkingTree(r.FS, "", func(p string, info os.FileInfo) error {
		if _, tracked := findManifestEntry(manifest, p); tracked {
			return nil
		}
		if isIgnored(sc.Settings, p) {
			touch(p, StatusIgnored)
			return nil
		}
		touch(p, StatusUntracked)
		return nil
	}); err != nil {
		return HandlerOutput{}, err
	}

	sort.Strings(order)
	lines := ""
	entries := make([]codec.Value, 0, len(order))
	for i, p := range order {
		e := byPath[p]
		if i > 0 {
			lines += "\n"
		}
		lines += e.Path + ": " + e.Status
		entries = append(entries, codec.Obj(map[string]codec.Value{
			"path":   codec.Str(e.Path),
			"status": codec.Str(e.Status),
		}))
	}
	if lines == "" {
		lines = "nothing to report"
	}

	return HandlerOutput{
		Result: Result{Text: lines, Data: codec.Arr(entries...)},
	}, nil
}

// hashFileContent computes the File-object hash a given blob's bytes
// would produce, for comparing working-copy content against a
// manifest entry's recorded target without re-writing a Blob.
func hashFileContent(tx *txn.Transaction, data []byte) (codec.Hash, error) {
	blobHash, _ := objects.Encode(objects.Blob{Data: data})
	fileHash, _ := objects.Encode(objects.File{BlobHash: blobHash, Props: objects.Props{}})
	return fileHash, nil
}

// walkWorkingTree recursively visits every regular file under dir in
// the working copy, skipping the .vex scaffold directory.
func walkWorkingTree(fs billy.Filesystem, dir string, fn func(path string, info os.FileInfo) error) error {
	infos, err := fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, info := range infos {
		name := info.Name()
		if dir == "" && name == scaffoldDirName {
			continue
		}
		p := name
		if dir != "" {
			p = path.Join(dir, name)
		}
		if info.IsDir() {
			if err := walkWorkingTree(fs, p, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(p, info); err != nil {
			return err
		}
	}
	return nil
}
