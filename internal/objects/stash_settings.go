package objects

import (
	"fmt"

	"github.com/kurobon/vex/internal/codec"
)

// StashEntry is a saved, named manifest snapshot set aside by branch:open, switch or restore,
// restorable later without disturbing the active branch's history.
type StashEntry struct {
	Label        string
	ManifestHash codec.Hash
	ParentHash   OptHash // the commit the working copy was based on at stash time
	Prev         OptHash // previous stash entry, forming a stack
}

func (StashEntry) Kind() string { return "stash_entry" }

func (s StashEntry) ToValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"kind":     codec.Str(s.Kind()),
		"label":    codec.Str(s.Label),
		"manifest": codec.Str(s.ManifestHash.String()),
		"parent":   s.ParentHash.ToValue(),
		"prev":     s.Prev.ToValue(),
	})
}

func StashEntryFromValue(v codec.Value) (StashEntry, error) {
	if err := checkKind(v, "stash_entry"); err != nil {
		return StashEntry{}, err
	}
	label, err := stringField(v, "label")
	if err != nil {
		return StashEntry{}, err
	}
	manifest, err := hashFromValue(v.Get("manifest"))
	if err != nil {
		return StashEntry{}, err
	}
	parent, err := optHashFromValue(v.Get("parent"))
	if err != nil {
		return StashEntry{}, err
	}
	prev, err := optHashFromValue(v.Get("prev"))
	if err != nil {
		return StashEntry{}, err
	}
	return StashEntry{Label: label, ManifestHash: manifest, ParentHash: parent, Prev: prev}, nil
}

// Settings holds the repository-wide, versioned configuration: include/
// ignore patterns, the authors table in effect, and (see DESIGN.md's
// "ref root" decision) the current branches/sessions index. Vex has no
// scratch pointer dedicated to "current branch head" or "session by
// uuid" lookup — instead Settings roots both index tables, so restoring
// settings_hash on a physical undo restores branch/session state too,
// in lockstep with include/ignore/authors.
type Settings struct {
	IncludePatterns   []string
	IgnorePatterns    []string
	AuthorsTableHash  OptHash
	BranchesTableHash OptHash
	SessionsTableHash OptHash
}

func (Settings) Kind() string { return "settings" }

func (s Settings) ToValue() codec.Value {
	inc := make([]codec.Value, len(s.IncludePatterns))
	for i, p := range s.IncludePatterns {
		inc[i] = codec.Str(p)
	}
	ign := make([]codec.Value, len(s.IgnorePatterns))
	for i, p := range s.IgnorePatterns {
		ign[i] = codec.Str(p)
	}
	return codec.Obj(map[string]codec.Value{
		"kind":           codec.Str(s.Kind()),
		"include":        codec.Arr(inc...),
		"ignore":         codec.Arr(ign...),
		"authors_table":  s.AuthorsTableHash.ToValue(),
		"branches_table": s.BranchesTableHash.ToValue(),
		"sessions_table": s.SessionsTableHash.ToValue(),
	})
}

func SettingsFromValue(v codec.Value) (Settings, error) {
	if err := checkKind(v, "settings"); err != nil {
		return Settings{}, err
	}
	inc, err := stringArrayField(v, "include")
	if err != nil {
		return Settings{}, err
	}
	ign, err := stringArrayField(v, "ignore")
	if err != nil {
		return Settings{}, err
	}
	authors, err := optHashFromValue(v.Get("authors_table"))
	if err != nil {
		return Settings{}, err
	}
	branches, err := optHashFromValue(v.Get("branches_table"))
	if err != nil {
		return Settings{}, err
	}
	sessions, err := optHashFromValue(v.Get("sessions_table"))
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		IncludePatterns:   inc,
		IgnorePatterns:    ign,
		AuthorsTableHash:  authors,
		BranchesTableHash: branches,
		SessionsTableHash: sessions,
	}, nil
}

func stringArrayField(v codec.Value, key string) ([]string, error) {
	arr, ok := v.Get(key).AsArray()
	if !ok {
		return nil, fmt.Errorf("objects: field %q must be an array", key)
	}
	out := make([]string, len(arr))
	for i, ev := range arr {
		s, ok := ev.AsString()
		if !ok {
			return nil, fmt.Errorf("objects: field %q must contain strings", key)
		}
		out[i] = s
	}
	return out, nil
}

// AuthorRecord is one (uuid, name, email) row in an AuthorsTable.
type AuthorRecord struct {
	UUID  string
	Name  string
	Email string
}

func (a AuthorRecord) ToValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"uuid":  codec.Str(a.UUID),
		"name":  codec.Str(a.Name),
		"email": codec.Str(a.Email),
	})
}

func authorRecordFromValue(v codec.Value) (AuthorRecord, error) {
	uuid, err := stringField(v, "uuid")
	if err != nil {
		return AuthorRecord{}, err
	}
	name, err := stringField(v, "name")
	if err != nil {
		return AuthorRecord{}, err
	}
	email, err := stringField(v, "email")
	if err != nil {
		return AuthorRecord{}, err
	}
	return AuthorRecord{UUID: uuid, Name: name, Email: email}, nil
}

// AuthorsTable resolves author UUIDs (as referenced by Commit.AuthorUUID)
// to display identities, versioned like any other object and referenced
// from Settings so history stays readable after a contributor's name or
// email changes.
type AuthorsTable struct {
	Authors []AuthorRecord
}

func (AuthorsTable) Kind() string { return "authors_table" }

func (t AuthorsTable) ToValue() codec.Value {
	authors := make([]codec.Value, len(t.Authors))
	for i, a := range t.Authors {
		authors[i] = a.ToValue()
	}
	return codec.Obj(map[string]codec.Value{
		"kind":    codec.Str(t.Kind()),
		"authors": codec.Arr(authors...),
	})
}

func AuthorsTableFromValue(v codec.Value) (AuthorsTable, error) {
	if err := checkKind(v, "authors_table"); err != nil {
		return AuthorsTable{}, err
	}
	arr, ok := v.Get("authors").AsArray()
	if !ok {
		return AuthorsTable{}, fmt.Errorf("objects: authors table missing authors")
	}
	authors := make([]AuthorRecord, len(arr))
	for i, av := range arr {
		a, err := authorRecordFromValue(av)
		if err != nil {
			return AuthorsTable{}, err
		}
		authors[i] = a
	}
	return AuthorsTable{Authors: authors}, nil
}

// Resolve returns the display name/email for a UUID, or ok=false if the
// table has no entry for it.
func (t AuthorsTable) Resolve(uuid string) (AuthorRecord, bool) {
	for _, a := range t.Authors {
		if a.UUID == uuid {
			return a, true
		}
	}
	return AuthorRecord{}, false
}

// BranchRef names the latest Branch object hash for a branch name. A
// commit, branch:new, or branch:swap rewrites this table's hash (and
// thus Settings' hash) every time a branch's head or name changes.
type BranchRef struct {
	Name string
	Hash codec.Hash
}

func (r BranchRef) ToValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"name": codec.Str(r.Name),
		"hash": codec.Str(r.Hash.String()),
	})
}

func branchRefFromValue(v codec.Value) (BranchRef, error) {
	name, err := stringField(v, "name")
	if err != nil {
		return BranchRef{}, err
	}
	h, err := hashFromValue(v.Get("hash"))
	if err != nil {
		return BranchRef{}, err
	}
	return BranchRef{Name: name, Hash: h}, nil
}

// BranchesTable is the repository's name -> latest-Branch-hash index.
type BranchesTable struct {
	Refs []BranchRef
}

func (BranchesTable) Kind() string { return "branches_table" }

func (t BranchesTable) ToValue() codec.Value {
	refs := make([]codec.Value, len(t.Refs))
	for i, r := range t.Refs {
		refs[i] = r.ToValue()
	}
	return codec.Obj(map[string]codec.Value{
		"kind": codec.Str(t.Kind()),
		"refs": codec.Arr(refs...),
	})
}

func BranchesTableFromValue(v codec.Value) (BranchesTable, error) {
	if err := checkKind(v, "branches_table"); err != nil {
		return BranchesTable{}, err
	}
	arr, ok := v.Get("refs").AsArray()
	if !ok {
		return BranchesTable{}, fmt.Errorf("objects: branches table missing refs")
	}
	refs := make([]BranchRef, len(arr))
	for i, rv := range arr {
		r, err := branchRefFromValue(rv)
		if err != nil {
			return BranchesTable{}, err
		}
		refs[i] = r
	}
	return BranchesTable{Refs: refs}, nil
}

// Lookup returns the current Branch hash for name, or ok=false.
func (t BranchesTable) Lookup(name string) (codec.Hash, bool) {
	for _, r := range t.Refs {
		if r.Name == name {
			return r.Hash, true
		}
	}
	return codec.Hash{}, false
}

// With returns a copy of t with name's ref set to hash, replacing any
// existing entry for that name.
func (t BranchesTable) With(name string, hash codec.Hash) BranchesTable {
	out := make([]BranchRef, 0, len(t.Refs)+1)
	replaced := false
	for _, r := range t.Refs {
		if r.Name == name {
			out = append(out, BranchRef{Name: name, Hash: hash})
			replaced = true
			continue
		}
		out = append(out, r)
	}
	if !replaced {
		out = append(out, BranchRef{Name: name, Hash: hash})
	}
	return BranchesTable{Refs: out}
}

// Without returns a copy of t with name's ref removed, if present.
func (t BranchesTable) Without(name string) BranchesTable {
	out := make([]BranchRef, 0, len(t.Refs))
	for _, r := range t.Refs {
		if r.Name != name {
			out = append(out, r)
		}
	}
	return BranchesTable{Refs: out}
}

// SessionRef names the latest Session object hash for a session uuid.
type SessionRef struct {
	UUID string
	Hash codec.Hash
}

func (r SessionRef) ToValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"uuid": codec.Str(r.UUID),
		"hash": codec.Str(r.Hash.String()),
	})
}

func sessionRefFromValue(v codec.Value) (SessionRef, error) {
	uuid, err := stringField(v, "uuid")
	if err != nil {
		return SessionRef{}, err
	}
	h, err := hashFromValue(v.Get("hash"))
	if err != nil {
		return SessionRef{}, err
	}
	return SessionRef{UUID: uuid, Hash: h}, nil
}

// SessionsTable is the repository's uuid -> latest-Session-hash index.
type SessionsTable struct {
	Refs []SessionRef
}

func (SessionsTable) Kind() string { return "sessions_table" }

func (t SessionsTable) ToValue() codec.Value {
	refs := make([]codec.Value, len(t.Refs))
	for i, r := range t.Refs {
		refs[i] = r.ToValue()
	}
	return codec.Obj(map[string]codec.Value{
		"kind": codec.Str(t.Kind()),
		"refs": codec.Arr(refs...),
	})
}

func SessionsTableFromValue(v codec.Value) (SessionsTable, error) {
	if err := checkKind(v, "sessions_table"); err != nil {
		return SessionsTable{}, err
	}
	arr, ok := v.Get("refs").AsArray()
	if !ok {
		return SessionsTable{}, fmt.Errorf("objects: sessions table missing refs")
	}
	refs := make([]SessionRef, len(arr))
	for i, rv := range arr {
		r, err := sessionRefFromValue(rv)
		if err != nil {
			return SessionsTable{}, err
		}
		refs[i] = r
	}
	return SessionsTable{Refs: refs}, nil
}

// Lookup returns the current Session hash for uuid, or ok=false.
func (t SessionsTable) Lookup(uuid string) (codec.Hash, bool) {
	for _, r := range t.Refs {
		if r.UUID == uuid {
			return r.Hash, true
		}
	}
	return codec.Hash{}, false
}

// With returns a copy of t with uuid's ref set to hash.
func (t SessionsTable) With(uuid string, hash codec.Hash) SessionsTable {
	out := make([]SessionRef, 0, len(t.Refs)+1)
	replaced := false
	for _, r := range t.Refs {
		if r.UUID == uuid {
			out = append(out, SessionRef{UUID: uuid, Hash: hash})
			replaced = true
			continue
		}
		out = append(out, r)
	}
	if !replaced {
		out = append(out, SessionRef{UUID: uuid, Hash: hash})
	}
	return SessionsTable{Refs: out}
}
