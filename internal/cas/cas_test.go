package cas

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurobon/vex/internal/codec"
)

func TestPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCAS(dir)
	require.NoError(t, err)

	data := []byte(`{"kind":"blob","data":"$deadbeef"}`)
	h := codec.HashObject("blob", data)

	require.NoError(t, c.Put(h, data))

	ok, err := c.Has(h)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := c.Get(h)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCAS(dir)
	require.NoError(t, err)

	h := codec.HashObject("blob", []byte("nope"))
	_, err = c.Get(h)
	assert.Error(t, err)

	var nf ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestPutIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCAS(dir)
	require.NoError(t, err)

	data := []byte("hello")
	h := codec.HashObject("blob", data)
	require.NoError(t, c.Put(h, data))
	require.NoError(t, c.Put(h, data))

	got, err := c.Get(h)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestLargeObjectIsCompressedTransparently(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCAS(dir)
	require.NoError(t, err)

	data := bytes.Repeat([]byte("x"), rawSizeThreshold+1)
	h := codec.HashObject("blob", data)
	require.NoError(t, c.Put(h, data))

	got, err := c.Get(h)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestIterReachable(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCAS(dir)
	require.NoError(t, err)

	h1 := codec.HashObject("blob", []byte("a"))
	h2 := codec.HashObject("blob", []byte("b"))
	require.NoError(t, c.Put(h1, []byte("a")))
	require.NoError(t, c.Put(h2, []byte("b")))

	seen := map[codec.Hash]bool{}
	err = c.IterReachable(func(h codec.Hash) error {
		seen[h] = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, seen[h1])
	assert.True(t, seen[h2])
}

func TestLayeredCASFallsBackToShared(t *testing.T) {
	localDir, sharedDir := t.TempDir(), t.TempDir()
	local, err := NewFileCAS(localDir)
	require.NoError(t, err)
	shared, err := NewFileCAS(sharedDir)
	require.NoError(t, err)

	layered := NewLayeredCAS(local, shared)

	data := []byte("shared-only")
	h := codec.HashObject("blob", data)
	require.NoError(t, shared.Put(h, data))

	ok, err := layered.Has(h)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := layered.Get(h)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	localOk, err := local.Has(h)
	require.NoError(t, err)
	assert.False(t, localOk, "layered.Get must not copy shared objects into Local")
}
