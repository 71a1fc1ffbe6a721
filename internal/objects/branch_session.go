package objects

import (
	"fmt"

	"github.com/kurobon/vex/internal/codec"
)

// Branch names a mutable line of history. HeadHash is absent only for a
// branch that has never been committed to.
type Branch struct {
	Name       string
	HeadHash   OptHash
	UpstreamOf OptHash // hash of the branch object this one tracks, if any
}

func (Branch) Kind() string { return "branch" }

func (b Branch) ToValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"kind":     codec.Str(b.Kind()),
		"name":     codec.Str(b.Name),
		"head":     b.HeadHash.ToValue(),
		"upstream": b.UpstreamOf.ToValue(),
	})
}

func BranchFromValue(v codec.Value) (Branch, error) {
	if err := checkKind(v, "branch"); err != nil {
		return Branch{}, err
	}
	name, err := stringField(v, "name")
	if err != nil {
		return Branch{}, err
	}
	head, err := optHashFromValue(v.Get("head"))
	if err != nil {
		return Branch{}, err
	}
	upstream, err := optHashFromValue(v.Get("upstream"))
	if err != nil {
		return Branch{}, err
	}
	return Branch{Name: name, HeadHash: head, UpstreamOf: upstream}, nil
}

// Session is a working area: a checked-out branch (or a detached commit)
// plus the state needed to resume prepared-commit and stash workflows.
type Session struct {
	UUID           string
	BranchName     OptString // absent means the session is detached
	DetachedAt     OptHash   // commit the session is detached at, when BranchName is absent
	PreparedCommit OptHash
	ManifestHash   codec.Hash
	StashHead      OptHash // top of this session's stash stack, if any
	Prefix         string  // subtree root `switch` checks out; "" means the repository root
}

func (Session) Kind() string { return "session" }

func (s Session) ToValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"kind":            codec.Str(s.Kind()),
		"uuid":            codec.Str(s.UUID),
		"branch_name":     s.BranchName.ToValue(),
		"detached_at":     s.DetachedAt.ToValue(),
		"prepared_commit": s.PreparedCommit.ToValue(),
		"manifest":        codec.Str(s.ManifestHash.String()),
		"stash_head":      s.StashHead.ToValue(),
		"prefix":          codec.Str(s.Prefix),
	})
}

func SessionFromValue(v codec.Value) (Session, error) {
	if err := checkKind(v, "session"); err != nil {
		return Session{}, err
	}
	uuid, err := stringField(v, "uuid")
	if err != nil {
		return Session{}, err
	}
	branch, err := optStringFromValue(v.Get("branch_name"))
	if err != nil {
		return Session{}, err
	}
	detached, err := optHashFromValue(v.Get("detached_at"))
	if err != nil {
		return Session{}, err
	}
	prepared, err := optHashFromValue(v.Get("prepared_commit"))
	if err != nil {
		return Session{}, err
	}
	manifest, err := hashFromValue(v.Get("manifest"))
	if err != nil {
		return Session{}, err
	}
	stashHead, err := optHashFromValue(v.Get("stash_head"))
	if err != nil {
		return Session{}, err
	}
	prefix, err := stringField(v, "prefix")
	if err != nil {
		return Session{}, err
	}
	return Session{
		UUID:           uuid,
		BranchName:     branch,
		DetachedAt:     detached,
		PreparedCommit: prepared,
		ManifestHash:   manifest,
		StashHead:      stashHead,
		Prefix:         prefix,
	}, nil
}

// ManifestEntry records one tracked working-copy path.
type ManifestEntry struct {
	Path    string
	Kind    EntryKind
	Target  OptHash
	Props   Props
	Ignored bool
}

func (e ManifestEntry) ToValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"path":    codec.Str(e.Path),
		"kind":    codec.Str(string(e.Kind)),
		"target":  e.Target.ToValue(),
		"props":   e.Props.ToValue(),
		"ignored": codec.Bool(e.Ignored),
	})
}

func manifestEntryFromValue(v codec.Value) (ManifestEntry, error) {
	path, err := stringField(v, "path")
	if err != nil {
		return ManifestEntry{}, err
	}
	k, err := stringField(v, "kind")
	if err != nil {
		return ManifestEntry{}, err
	}
	target, err := optHashFromValue(v.Get("target"))
	if err != nil {
		return ManifestEntry{}, err
	}
	props, err := propsFromValue(v.Get("props"))
	if err != nil {
		return ManifestEntry{}, err
	}
	ignored, err := boolField(v, "ignored")
	if err != nil {
		return ManifestEntry{}, err
	}
	return ManifestEntry{Path: path, Kind: EntryKind(k), Target: target, Props: props, Ignored: ignored}, nil
}

// Manifest is the working-copy's tracked-path table: what `add`/`forget`/
// `ignore` mutate and what `commit` turns into a root Tree.
type Manifest struct {
	Entries []ManifestEntry
}

func (Manifest) Kind() string { return "manifest" }

func (m Manifest) ToValue() codec.Value {
	entries := make([]codec.Value, len(m.Entries))
	for i, e := range m.Entries {
		entries[i] = e.ToValue()
	}
	return codec.Obj(map[string]codec.Value{
		"kind":    codec.Str(m.Kind()),
		"entries": codec.Arr(entries...),
	})
}

func ManifestFromValue(v codec.Value) (Manifest, error) {
	if err := checkKind(v, "manifest"); err != nil {
		return Manifest{}, err
	}
	arr, ok := v.Get("entries").AsArray()
	if !ok {
		return Manifest{}, fmt.Errorf("objects: manifest missing entries")
	}
	entries := make([]ManifestEntry, len(arr))
	for i, ev := range arr {
		e, err := manifestEntryFromValue(ev)
		if err != nil {
			return Manifest{}, err
		}
		entries[i] = e
	}
	return Manifest{Entries: entries}, nil
}
