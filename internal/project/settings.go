package project

import (
	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

// getSettings fetches and decodes a Settings object, checking through
// tx first so a command sees its own not-yet-committed writes.
func getSettings(tx *txn.Transaction, h codec.Hash) (objects.Settings, error) {
	data, err := tx.Get(h)
	if err != nil {
		return objects.Settings{}, verr.CorruptObject(err, "project: read settings")
	}
	v, err := codec.Decode(data)
	if err != nil {
		return objects.Settings{}, verr.CorruptObject(err, "project: decode settings")
	}
	return objects.SettingsFromValue(v)
}

// loadSettings resolves the settings currently pointed to by snap, or a
// zero-value Settings if none exists yet (only possible before init).
func loadSettings(tx *txn.Transaction, snap objects.PointerSnapshot) (objects.Settings, error) {
	if !snap.SettingsHash.Set {
		return objects.Settings{}, nil
	}
	return getSettings(tx, snap.SettingsHash.Hash)
}

// stageSettings stores a new Settings object and returns its hash.
func stageSettings(tx *txn.Transaction, s objects.Settings) (codec.Hash, error) {
	h, data := objects.Encode(s)
	if err := tx.PutObject(h, data); err != nil {
		return codec.Hash{}, err
	}
	return h, nil
}

func getBranchesTable(tx *txn.Transaction, s objects.Settings) (objects.BranchesTable, error) {
	if !s.BranchesTableHash.Set {
		return objects.BranchesTable{}, nil
	}
	data, err := tx.Get(s.BranchesTableHash.Hash)
	if err != nil {
		return objects.BranchesTable{}, verr.CorruptObject(err, "project: read branches table")
	}
	v, err := codec.Decode(data)
	if err != nil {
		return objects.BranchesTable{}, verr.CorruptObject(err, "project: decode branches table")
	}
	return objects.BranchesTableFromValue(v)
}

func stageBranchesTable(tx *txn.Transaction, t objects.BranchesTable) (codec.Hash, error) {
	h, data := objects.Encode(t)
	if err := tx.PutObject(h, data); err != nil {
		return codec.Hash{}, err
	}
	return h, nil
}

func getSessionsTable(tx *txn.Transaction, s objects.Settings) (objects.SessionsTable, error) {
	if !s.SessionsTableHash.Set {
		return objects.SessionsTable{}, nil
	}
	data, err := tx.Get(s.SessionsTableHash.Hash)
	if err != nil {
		return objects.SessionsTable{}, verr.CorruptObject(err, "project: read sessions table")
	}
	v, err := codec.Decode(data)
	if err != nil {
		return objects.SessionsTable{}, verr.CorruptObject(err, "project: decode sessions table")
	}
	return objects.SessionsTableFromValue(v)
}

func stageSessionsTable(tx *txn.Transaction, t objects.SessionsTable) (codec.Hash, error) {
	h, data := objects.Encode(t)
	if err := tx.PutObject(h, data); err != nil {
		return codec.Hash{}, err
	}
	return h, nil
}

func getAuthorsTable(tx *txn.Transaction, s objects.Settings) (objects.AuthorsTable, error) {
	if !s.AuthorsTableHash.Set {
		return objects.AuthorsTable{}, nil
	}
	data, err := tx.Get(s.AuthorsTableHash.Hash)
	if err != nil {
		return objects.AuthorsTable{}, verr.CorruptObject(err, "project: read authors table")
	}
	v, err := codec.Decode(data)
	if err != nil {
		return objects.AuthorsTable{}, verr.CorruptObject(err, "project: decode authors table")
	}
	return objects.AuthorsTableFromValue(v)
}

func stageAuthorsTable(tx *txn.Transaction, t objects.AuthorsTable) (codec.Hash, error) {
	h, data := objects.Encode(t)
	if err := tx.PutObject(h, data); err != nil {
		return codec.Hash{}, err
	}
	return h, nil
}

// commitPointers is the common tail every mutating command runs: append
// an ActionRecord (physical or logical), then durably commit tx.
type commitPointers struct {
	current objects.PointerSnapshot
	after   objects.PointerSnapshot
}

// finishMutation records the action, commits the transaction, and
// returns the pointer state after the swap. suppressLog callers (the
// undo/redo engine re-running a logical inverse) must NOT call this —
// they commit through actionlog.Undo/Redo directly instead.
func finishMutation(r *Repo, tx *txn.Transaction, lg *logAppend, cp commitPointers) error {
	next, err := r.Log.RecordPush(tx, cp.current, lg.command, lg.args, lg.inverseKind, lg.logical, lg.timestampApplied, cp.after)
	if err != nil {
		return err
	}
	_ = next // RecordPush already staged every pointer update onto tx
	return tx.Commit()
}

// logAppend bundles what RecordPush needs to describe one mutating
// command's entry in the action log.
type logAppend struct {
	command          string
	args             codec.Value
	inverseKind      objects.InverseKind
	logical          objects.LogicalInverse
	timestampApplied int64
}

func physicalAppend(command string, args codec.Value, timestampApplied int64) *logAppend {
	return &logAppend{command: command, args: args, inverseKind: objects.InversePhysical, timestampApplied: timestampApplied}
}

func logicalAppend(command string, args codec.Value, timestampApplied int64, inverseCommand string, inverseArgs codec.Value) *logAppend {
	return &logAppend{
		command:          command,
		args:             args,
		inverseKind:      objects.InverseLogical,
		logical:          objects.LogicalInverse{Command: inverseCommand, Args: inverseArgs},
		timestampApplied: timestampApplied,
	}
}
