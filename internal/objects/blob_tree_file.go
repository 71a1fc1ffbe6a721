package objects

import (
	"fmt"

	"github.com/kurobon/vex/internal/codec"
)

// Blob holds opaque file contents.
type Blob struct {
	Data []byte
}

func (Blob) Kind() string { return "blob" }

func (b Blob) ToValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"kind": codec.Str(b.Kind()),
		"data": codec.Bin(b.Data),
	})
}

func BlobFromValue(v codec.Value) (Blob, error) {
	if err := checkKind(v, "blob"); err != nil {
		return Blob{}, err
	}
	data, ok := v.Get("data").AsBytes()
	if !ok {
		return Blob{}, fmt.Errorf("objects: blob missing data")
	}
	return Blob{Data: data}, nil
}

// EntryKind is a Tree entry's kind, per spec §3.
type EntryKind string

const (
	EntryFile      EntryKind = "file"
	EntryDir       EntryKind = "dir"
	EntryEmptyDir  EntryKind = "empty_dir"
	EntryLink      EntryKind = "link"
)

// TreeEntry is one ordered name -> (kind, target_hash, properties) row.
// Target is unset for empty_dir entries, which are first-class so an
// empty directory is losslessly trackable.
type TreeEntry struct {
	Name  string
	Kind  EntryKind
	Target OptHash
	Props Props
}

func (e TreeEntry) ToValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"name":   codec.Str(e.Name),
		"kind":   codec.Str(string(e.Kind)),
		"target": e.Target.ToValue(),
		"props":  e.Props.ToValue(),
	})
}

func treeEntryFromValue(v codec.Value) (TreeEntry, error) {
	name, err := stringField(v, "name")
	if err != nil {
		return TreeEntry{}, err
	}
	k, err := stringField(v, "kind")
	if err != nil {
		return TreeEntry{}, err
	}
	target, err := optHashFromValue(v.Get("target"))
	if err != nil {
		return TreeEntry{}, err
	}
	props, err := propsFromValue(v.Get("props"))
	if err != nil {
		return TreeEntry{}, err
	}
	return TreeEntry{Name: name, Kind: EntryKind(k), Target: target, Props: props}, nil
}

// Tree is an ordered mapping of directory entries. Order is the array
// order in the encoded value, not a re-sort by name: callers that build
// a Tree from a manifest sort entries themselves so the result is
// deterministic (see project/manifest.go).
type Tree struct {
	Entries []TreeEntry
}

func (Tree) Kind() string { return "tree" }

func (t Tree) ToValue() codec.Value {
	entries := make([]codec.Value, len(t.Entries))
	for i, e := range t.Entries {
		entries[i] = e.ToValue()
	}
	return codec.Obj(map[string]codec.Value{
		"kind":    codec.Str(t.Kind()),
		"entries": codec.Arr(entries...),
	})
}

func TreeFromValue(v codec.Value) (Tree, error) {
	if err := checkKind(v, "tree"); err != nil {
		return Tree{}, err
	}
	arr, ok := v.Get("entries").AsArray()
	if !ok {
		return Tree{}, fmt.Errorf("objects: tree missing entries")
	}
	entries := make([]TreeEntry, len(arr))
	for i, ev := range arr {
		e, err := treeEntryFromValue(ev)
		if err != nil {
			return Tree{}, err
		}
		entries[i] = e
	}
	return Tree{Entries: entries}, nil
}

// File pairs a blob's content hash with its properties (executable bit,
// mime hint, line-ending policy, user-defined keys).
type File struct {
	BlobHash codec.Hash
	Props    Props
}

func (File) Kind() string { return "file" }

func (f File) ToValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"kind":  codec.Str(f.Kind()),
		"blob":  codec.Str(f.BlobHash.String()),
		"props": f.Props.ToValue(),
	})
}

func FileFromValue(v codec.Value) (File, error) {
	if err := checkKind(v, "file"); err != nil {
		return File{}, err
	}
	h, err := hashFromValue(v.Get("blob"))
	if err != nil {
		return File{}, err
	}
	props, err := propsFromValue(v.Get("props"))
	if err != nil {
		return File{}, err
	}
	return File{BlobHash: h, Props: props}, nil
}

// Standard property keys used by the project layer.
const (
	PropExecutable = "executable"
	PropMimeHint   = "mime"
	PropLineEnding = "line_ending"
)
