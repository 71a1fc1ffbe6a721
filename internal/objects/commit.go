package objects

import (
	"fmt"

	"github.com/kurobon/vex/internal/codec"
)

// CommitKind distinguishes how a commit entered the history, per spec §3.
type CommitKind string

const (
	CommitNormal  CommitKind = "normal"
	CommitAmend   CommitKind = "amend"
	CommitApply   CommitKind = "apply"
	CommitReplay  CommitKind = "replay"
	CommitAppend  CommitKind = "append"
	CommitInit    CommitKind = "init"
)

// Commit is an immutable point in a branch's linear history.
// TimestampApplied is when the commit entered the active branch's
// history (the log's sort key, H5); TimestampWritten is when the
// underlying changes were originally authored and carries no ordering
// guarantee across commits.
type Commit struct {
	Parent            OptHash
	RootTreeHash      codec.Hash
	AuthorUUID        string
	TimestampApplied  int64
	TimestampWritten  int64
	Message           string
	ChangelogEntryHash codec.Hash
	Kind_             CommitKind
}

func (Commit) Kind() string { return "commit" }

func (c Commit) ToValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"kind":              codec.Str(c.Kind()),
		"parent":            c.Parent.ToValue(),
		"root_tree":         codec.Str(c.RootTreeHash.String()),
		"author_uuid":       codec.Str(c.AuthorUUID),
		"timestamp_applied": codec.Int(c.TimestampApplied),
		"timestamp_written": codec.Int(c.TimestampWritten),
		"message":           codec.Str(c.Message),
		"changelog":         codec.Str(c.ChangelogEntryHash.String()),
		"commit_kind":       codec.Str(string(c.Kind_)),
	})
}

func CommitFromValue(v codec.Value) (Commit, error) {
	if err := checkKind(v, "commit"); err != nil {
		return Commit{}, err
	}
	parent, err := optHashFromValue(v.Get("parent"))
	if err != nil {
		return Commit{}, err
	}
	root, err := hashFromValue(v.Get("root_tree"))
	if err != nil {
		return Commit{}, err
	}
	author, err := stringField(v, "author_uuid")
	if err != nil {
		return Commit{}, err
	}
	ta, err := intField(v, "timestamp_applied")
	if err != nil {
		return Commit{}, err
	}
	tw, err := intField(v, "timestamp_written")
	if err != nil {
		return Commit{}, err
	}
	msg, err := stringField(v, "message")
	if err != nil {
		return Commit{}, err
	}
	changelog, err := hashFromValue(v.Get("changelog"))
	if err != nil {
		return Commit{}, err
	}
	ck, err := stringField(v, "commit_kind")
	if err != nil {
		return Commit{}, err
	}
	return Commit{
		Parent:             parent,
		RootTreeHash:       root,
		AuthorUUID:         author,
		TimestampApplied:   ta,
		TimestampWritten:   tw,
		Message:            msg,
		ChangelogEntryHash: changelog,
		Kind_:              CommitKind(ck),
	}, nil
}

// ChangeOp is a single structural mutation recorded in a ChangelogEntry,
// letting log/diff skip full tree walks.
type ChangeOp struct {
	Op       string // "added", "removed", "modified", "prop_changed"
	Path     string
	OldHash  OptHash
	NewHash  OptHash
}

func (c ChangeOp) ToValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"op":       codec.Str(c.Op),
		"path":     codec.Str(c.Path),
		"old_hash": c.OldHash.ToValue(),
		"new_hash": c.NewHash.ToValue(),
	})
}

func changeOpFromValue(v codec.Value) (ChangeOp, error) {
	op, err := stringField(v, "op")
	if err != nil {
		return ChangeOp{}, err
	}
	path, err := stringField(v, "path")
	if err != nil {
		return ChangeOp{}, err
	}
	oldH, err := optHashFromValue(v.Get("old_hash"))
	if err != nil {
		return ChangeOp{}, err
	}
	newH, err := optHashFromValue(v.Get("new_hash"))
	if err != nil {
		return ChangeOp{}, err
	}
	return ChangeOp{Op: op, Path: path, OldHash: oldH, NewHash: newH}, nil
}

// ChangelogEntry is the structural diff attached to a commit.
type ChangelogEntry struct {
	Prev OptHash
	Ops  []ChangeOp
}

func (ChangelogEntry) Kind() string { return "changelog_entry" }

func (c ChangelogEntry) ToValue() codec.Value {
	ops := make([]codec.Value, len(c.Ops))
	for i, op := range c.Ops {
		ops[i] = op.ToValue()
	}
	return codec.Obj(map[string]codec.Value{
		"kind": codec.Str(c.Kind()),
		"prev": c.Prev.ToValue(),
		"ops":  codec.Arr(ops...),
	})
}

func ChangelogEntryFromValue(v codec.Value) (ChangelogEntry, error) {
	if err := checkKind(v, "changelog_entry"); err != nil {
		return ChangelogEntry{}, err
	}
	prev, err := optHashFromValue(v.Get("prev"))
	if err != nil {
		return ChangelogEntry{}, err
	}
	arr, ok := v.Get("ops").AsArray()
	if !ok {
		return ChangelogEntry{}, fmt.Errorf("objects: changelog entry missing ops")
	}
	ops := make([]ChangeOp, len(arr))
	for i, ov := range arr {
		op, err := changeOpFromValue(ov)
		if err != nil {
			return ChangelogEntry{}, err
		}
		ops[i] = op
	}
	return ChangelogEntry{Prev: prev, Ops: ops}, nil
}
