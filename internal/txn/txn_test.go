package txn

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kurobon/vex/internal/cas"
	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/scratch"
)

func setup(t *testing.T) (vexDir string, store cas.CAS, sc *scratch.Store) {
	t.Helper()
	vexDir = t.TempDir()
	casDir := filepath.Join(vexDir, "cas")
	scratchDir := filepath.Join(vexDir, "scratch")
	c, err := cas.NewFileCAS(casDir)
	require.NoError(t, err)
	s, err := scratch.NewStore(scratchDir)
	require.NoError(t, err)
	return vexDir, c, s
}

func TestCommitAppliesObjectsAndPointers(t *testing.T) {
	vexDir, store, sc := setup(t)
	log := zap.NewNop()

	tx, err := Begin(vexDir, store, sc, log)
	require.NoError(t, err)

	data := []byte(`{"kind":"blob","data":"$00"}`)
	h := codec.HashObject("blob", data)
	require.NoError(t, tx.PutObject(h, data))
	tx.SetPointer(scratch.ActionLogHead, h.String())

	require.NoError(t, tx.Commit())

	ok, err := store.Has(h)
	require.NoError(t, err)
	assert.True(t, ok)

	v, ok, err := sc.Get(scratch.ActionLogHead)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, h.String(), v)

	_, err = os.Stat(filepath.Join(vexDir, planFileName))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(vexDir, pendingDirName))
	assert.True(t, os.IsNotExist(err))
}

func TestAbortLeavesNoTrace(t *testing.T) {
	vexDir, store, sc := setup(t)
	log := zap.NewNop()

	tx, err := Begin(vexDir, store, sc, log)
	require.NoError(t, err)

	data := []byte("staged but abandoned")
	h := codec.HashObject("blob", data)
	require.NoError(t, tx.PutObject(h, data))
	tx.SetPointer(scratch.SettingsHash, h.String())
	require.NoError(t, tx.Abort())

	ok, err := store.Has(h)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = sc.Get(scratch.SettingsHash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecoverRollsBackWhenHeadNotYetSwapped(t *testing.T) {
	vexDir, store, sc := setup(t)
	log := zap.NewNop()

	tx, err := Begin(vexDir, store, sc, log)
	require.NoError(t, err)
	data := []byte("half-committed")
	h := codec.HashObject("blob", data)
	require.NoError(t, tx.PutObject(h, data))
	tx.SetPointer(scratch.ActionLogHead, h.String())
	require.NoError(t, tx.writePlan())
	// Simulate a crash: never calls Commit past writePlan, so the
	// pointer swap never happened.

	result, err := Recover(vexDir, store, sc, log)
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.False(t, result.Finished)

	_, ok, err := sc.Get(scratch.ActionLogHead)
	require.NoError(t, err)
	assert.False(t, ok, "pointer must remain untouched on rollback")

	_, err = os.Stat(filepath.Join(vexDir, planFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestRecoverFinishesForwardWhenHeadAlreadySwapped(t *testing.T) {
	vexDir, store, sc := setup(t)
	log := zap.NewNop()

	tx, err := Begin(vexDir, store, sc, log)
	require.NoError(t, err)
	data := []byte("committed-but-not-cleaned-up")
	h := codec.HashObject("blob", data)
	require.NoError(t, tx.PutObject(h, data))
	tx.SetPointer(scratch.ActionLogHead, h.String())
	tx.SetPointer(scratch.SettingsHash, "settings-v2")
	require.NoError(t, tx.writePlan())

	// Simulate the crash landing exactly after step (d): the head
	// pointer was swapped, but objects weren't moved out of pending/
	// and the rest of the plan's pointers weren't applied yet.
	require.NoError(t, sc.Set(scratch.ActionLogHead, h.String()))

	result, err := Recover(vexDir, store, sc, log)
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.True(t, result.Finished)

	ok, err := store.Has(h)
	require.NoError(t, err)
	assert.True(t, ok, "staged object must be moved into the CAS")

	v, ok, err := sc.Get(scratch.SettingsHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "settings-v2", v)
}

func TestRecoverWithNoPendingTransactionIsNoop(t *testing.T) {
	vexDir, store, sc := setup(t)
	log := zap.NewNop()

	result, err := Recover(vexDir, store, sc, log)
	require.NoError(t, err)
	assert.False(t, result.Found)
}
