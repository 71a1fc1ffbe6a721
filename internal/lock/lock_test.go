package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurobon/vex/internal/verr"
)

func TestExclusiveExcludesExclusive(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)
	b := New(dir)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	release, err := a.AcquireExclusive(ctx)
	require.NoError(t, err)
	defer release()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel2()
	_, err = b.AcquireExclusive(ctx2)
	require.Error(t, err)

	vErr, ok := verr.As(err)
	require.True(t, ok)
	assert.Equal(t, verr.KindConcurrentWriter, vErr.Kind())
}

func TestSharedAllowsMultipleReaders(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)
	b := New(dir)

	ctx := context.Background()
	releaseA, err := a.AcquireShared(ctx)
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := b.AcquireShared(ctx)
	require.NoError(t, err)
	defer releaseB()
}
