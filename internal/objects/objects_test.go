package objects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurobon/vex/internal/codec"
)

func TestBlobRoundTrip(t *testing.T) {
	b := Blob{Data: []byte("hello world")}
	hash, bytes := Encode(b)
	v, err := codec.Decode(bytes)
	require.NoError(t, err)
	got, err := BlobFromValue(v)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	hash2, _ := Encode(b)
	assert.Equal(t, hash, hash2)
}

func TestTreeOrderIsPreserved(t *testing.T) {
	tree := Tree{Entries: []TreeEntry{
		{Name: "b.txt", Kind: EntryFile, Target: SomeHash(codec.HashObject("file", []byte("x"))), Props: Props{}},
		{Name: "a.txt", Kind: EntryFile, Target: SomeHash(codec.HashObject("file", []byte("y"))), Props: Props{}},
		{Name: "empty", Kind: EntryEmptyDir, Target: NoHash(), Props: Props{}},
	}}
	_, bytes := Encode(tree)
	v, err := codec.Decode(bytes)
	require.NoError(t, err)
	got, err := TreeFromValue(v)
	require.NoError(t, err)
	require.Len(t, got.Entries, 3)
	assert.Equal(t, "b.txt", got.Entries[0].Name)
	assert.Equal(t, "a.txt", got.Entries[1].Name)
	assert.Equal(t, EntryEmptyDir, got.Entries[2].Kind)
	assert.False(t, got.Entries[2].Target.Set)
}

func TestCommitRoundTrip(t *testing.T) {
	c := Commit{
		Parent:             NoHash(),
		RootTreeHash:       codec.HashObject("tree", []byte("t")),
		AuthorUUID:         "author-1",
		TimestampApplied:   1000,
		TimestampWritten:   990,
		Message:            "initial commit",
		ChangelogEntryHash: codec.HashObject("changelog_entry", []byte("c")),
		Kind_:              CommitInit,
	}
	_, bytes := Encode(c)
	v, err := codec.Decode(bytes)
	require.NoError(t, err)
	got, err := CommitFromValue(v)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestSessionDetachedRoundTrip(t *testing.T) {
	s := Session{
		UUID:           "sess-1",
		BranchName:     NoString(),
		DetachedAt:     SomeHash(codec.HashObject("commit", []byte("c"))),
		PreparedCommit: NoHash(),
		ManifestHash:   codec.HashObject("manifest", []byte("m")),
		StashHead:      NoHash(),
	}
	_, bytes := Encode(s)
	v, err := codec.Decode(bytes)
	require.NoError(t, err)
	got, err := SessionFromValue(v)
	require.NoError(t, err)
	assert.Equal(t, s, got)
	assert.False(t, got.BranchName.Set)
}

func TestAuthorsTableResolve(t *testing.T) {
	table := AuthorsTable{Authors: []AuthorRecord{
		{UUID: "u1", Name: "Ada", Email: "ada@example.com"},
	}}
	_, bytes := Encode(table)
	v, err := codec.Decode(bytes)
	require.NoError(t, err)
	got, err := AuthorsTableFromValue(v)
	require.NoError(t, err)

	rec, ok := got.Resolve("u1")
	require.True(t, ok)
	assert.Equal(t, "Ada", rec.Name)

	_, ok = got.Resolve("missing")
	assert.False(t, ok)
}

func TestActionRecordPhysicalAndLogical(t *testing.T) {
	phys := ActionRecord{
		Prev:             NoHash(),
		Command:          "add",
		Args:             codec.MapOf("path", codec.Str("a.txt")),
		TimestampApplied: 1,
		Before:           PointerSnapshot{},
		After:            PointerSnapshot{SettingsHash: SomeHash(codec.HashObject("settings", []byte("s")))},
		Inverse:          InversePhysical,
	}
	_, bytes := Encode(phys)
	v, err := codec.Decode(bytes)
	require.NoError(t, err)
	got, err := ActionRecordFromValue(v)
	require.NoError(t, err)
	assert.Equal(t, phys.Command, got.Command)
	assert.Equal(t, InversePhysical, got.Inverse)

	logical := ActionRecord{
		Prev:             SomeHash(codec.HashObject("action_record", []byte("x"))),
		Command:          "branch:new",
		Args:             codec.MapOf("name", codec.Str("feature")),
		TimestampApplied: 2,
		Inverse:          InverseLogical,
		Logical:          LogicalInverse{Command: "branch:delete", Args: codec.MapOf("name", codec.Str("feature"))},
	}
	_, bytes2 := Encode(logical)
	v2, err := codec.Decode(bytes2)
	require.NoError(t, err)
	got2, err := ActionRecordFromValue(v2)
	require.NoError(t, err)
	assert.Equal(t, InverseLogical, got2.Inverse)
	assert.Equal(t, "branch:delete", got2.Logical.Command)
}

func TestSettingsRoundTripWithIndexTables(t *testing.T) {
	s := Settings{
		IncludePatterns:   []string{"*.py"},
		IgnorePatterns:    []string{"*.pyc"},
		AuthorsTableHash:  SomeHash(codec.HashObject("authors_table", []byte("a"))),
		BranchesTableHash: SomeHash(codec.HashObject("branches_table", []byte("b"))),
		SessionsTableHash: SomeHash(codec.HashObject("sessions_table", []byte("c"))),
	}
	_, bytes := Encode(s)
	v, err := codec.Decode(bytes)
	require.NoError(t, err)
	got, err := SettingsFromValue(v)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestBranchesTableLookupWithAndWithout(t *testing.T) {
	table := BranchesTable{}
	h1 := codec.HashObject("branch", []byte("latest-v1"))
	table = table.With("latest", h1)
	got, ok := table.Lookup("latest")
	require.True(t, ok)
	assert.Equal(t, h1, got)

	h2 := codec.HashObject("branch", []byte("latest-v2"))
	table = table.With("latest", h2)
	got, ok = table.Lookup("latest")
	require.True(t, ok)
	assert.Equal(t, h2, got)
	assert.Len(t, table.Refs, 1, "With replaces rather than duplicates an existing name")

	table = table.Without("latest")
	_, ok = table.Lookup("latest")
	assert.False(t, ok)
}

func TestSessionsTableRoundTrip(t *testing.T) {
	table := SessionsTable{}.With("sess-1", codec.HashObject("session", []byte("s1")))
	_, bytes := Encode(table)
	v, err := codec.Decode(bytes)
	require.NoError(t, err)
	got, err := SessionsTableFromValue(v)
	require.NoError(t, err)
	h, ok := got.Lookup("sess-1")
	require.True(t, ok)
	assert.Equal(t, table.Refs[0].Hash, h)
}

func TestRedoNodeBranchingRoundTrip(t *testing.T) {
	alt := codec.HashObject("action_record", []byte("alt"))
	node := RedoNode{
		Prev:         NoHash(),
		Action:       codec.HashObject("action_record", []byte("main")),
		Alternatives: []codec.Hash{alt},
	}
	_, bytes := Encode(node)
	v, err := codec.Decode(bytes)
	require.NoError(t, err)
	got, err := RedoNodeFromValue(v)
	require.NoError(t, err)
	assert.Equal(t, node, got)
}
