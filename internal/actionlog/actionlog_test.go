package actionlog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kurobon/vex/internal/cas"
	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/scratch"
	"github.com/kurobon/vex/internal/txn"
)

// noopRunner records each logical inverse it is asked to run and
// reports success without doing anything else.
type noopRunner struct{ called []string }

func (r *noopRunner) RunSuppressed(ctx context.Context, tx *txn.Transaction, command string, args codec.Value) error {
	r.called = append(r.called, command)
	return nil
}

func newTestRig(t *testing.T) (cas.CAS, *scratch.Store, string) {
	t.Helper()
	vexDir := t.TempDir()
	store, err := cas.NewFileCAS(filepath.Join(vexDir, "cas"))
	require.NoError(t, err)
	sc, err := scratch.NewStore(filepath.Join(vexDir, "scratch"))
	require.NoError(t, err)
	return store, sc, vexDir
}

// pushPhysical records a minimal physical-inverse action directly
// (bypassing the project layer, which doesn't exist at this layer),
// simulating what a command like `add` does on success.
func pushPhysical(t *testing.T, log *Log, tx *txn.Transaction, current objects.PointerSnapshot, command string, settingsAfter string) objects.PointerSnapshot {
	t.Helper()
	after := current
	after.SettingsHash = objects.SomeHash(codec.HashObject("settings", []byte(settingsAfter)))
	next, err := log.RecordPush(tx, current, command, codec.Null(), objects.InversePhysical, objects.LogicalInverse{}, 1, after)
	require.NoError(t, err)
	return next
}

func TestChainValidationDetectsGapFreeHistory(t *testing.T) {
	store, _, _ := newTestRig(t)
	log := New(store)

	first := objects.ActionRecord{Prev: objects.NoHash(), Command: "init", TimestampApplied: 1, Args: codec.Null(), Inverse: objects.InverseLogical, Logical: objects.LogicalInverse{Command: "uninit", Args: codec.Null()}}
	h1, b1 := objects.Encode(first)
	require.NoError(t, store.Put(h1, b1))

	second := objects.ActionRecord{Prev: objects.SomeHash(h1), Command: "add", TimestampApplied: 2, Args: codec.Null(), Inverse: objects.InversePhysical}
	h2, b2 := objects.Encode(second)
	require.NoError(t, store.Put(h2, b2))

	assert.NoError(t, log.ValidateChain(h2))
}

func TestChainValidationFailsOnMissingLink(t *testing.T) {
	store, _, _ := newTestRig(t)
	log := New(store)

	missing := codec.HashObject("action_record", []byte("never written"))
	dangling := objects.ActionRecord{Prev: objects.SomeHash(missing), Command: "add", TimestampApplied: 1, Args: codec.Null(), Inverse: objects.InversePhysical}
	h, b := objects.Encode(dangling)
	require.NoError(t, store.Put(h, b))

	assert.Error(t, log.ValidateChain(h))
}

func TestUndoRedoRoundTrip(t *testing.T) {
	store, sc, vexDir := newTestRig(t)
	log := New(store)
	runner := &noopRunner{}
	zlog := zap.NewNop()

	tx, err := txn.Begin(vexDir, store, sc, zlog)
	require.NoError(t, err)
	current := objects.PointerSnapshot{}
	afterAdd := pushPhysical(t, log, tx, current, "add", "v1")
	require.NoError(t, tx.Commit())

	// undo
	tx2, err := txn.Begin(vexDir, store, sc, zlog)
	require.NoError(t, err)
	afterUndo, err := log.Undo(context.Background(), tx2, afterAdd, runner)
	require.NoError(t, err)
	require.NoError(t, tx2.Commit())
	assert.False(t, afterUndo.ActionLogHead.Set, "undoing the only action clears the log head")
	assert.True(t, afterUndo.RedoStackHead.Set)

	// redo
	tx3, err := txn.Begin(vexDir, store, sc, zlog)
	require.NoError(t, err)
	afterRedo, err := log.Redo(context.Background(), tx3, afterUndo, 0, runner)
	require.NoError(t, err)
	require.NoError(t, tx3.Commit())
	assert.Equal(t, afterAdd.ActionLogHead, afterRedo.ActionLogHead)
	assert.False(t, afterRedo.RedoStackHead.Set)
	assert.Empty(t, runner.called, "physical undo/redo must not invoke the command runner")
}

func TestRedoBranchingScenario(t *testing.T) {
	// Mirrors spec scenario 5: add a.py; commit; add b.py; undo;
	// add c.py; redo:list shows two alternatives.
	store, sc, vexDir := newTestRig(t)
	log := New(store)
	runner := &noopRunner{}
	zlog := zap.NewNop()

	commit := func(current objects.PointerSnapshot, name, settingsAfter string) objects.PointerSnapshot {
		tx, err := txn.Begin(vexDir, store, sc, zlog)
		require.NoError(t, err)
		next := pushPhysical(t, log, tx, current, name, settingsAfter)
		require.NoError(t, tx.Commit())
		return next
	}

	state := objects.PointerSnapshot{}
	state = commit(state, "add_a", "a")
	state = commit(state, "commit", "c1")
	stateAfterAddB := commit(state, "add_b", "b")

	tx, err := txn.Begin(vexDir, store, sc, zlog)
	require.NoError(t, err)
	stateAfterUndo, err := log.Undo(context.Background(), tx, stateAfterAddB, runner)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	stateAfterAddC := commit(stateAfterUndo, "add_c", "c")

	alts, err := log.ListRedoAlternatives(stateAfterAddC.RedoStackHead)
	require.NoError(t, err)
	require.Len(t, alts, 2)
	assert.Equal(t, "add_b", alts[0].Command)
	assert.Equal(t, "add_c", alts[1].Command)

	tx2, err := txn.Begin(vexDir, store, sc, zlog)
	require.NoError(t, err)
	afterRedoChoice1, err := log.Redo(context.Background(), tx2, stateAfterAddC, 1, runner)
	require.NoError(t, err)
	require.NoError(t, tx2.Commit())

	rec, err := log.Get(afterRedoChoice1.ActionLogHead.Hash)
	require.NoError(t, err)
	assert.Equal(t, "add_b", rec.Command)
}
