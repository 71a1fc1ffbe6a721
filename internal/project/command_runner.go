package project

import (
	"context"

	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/scratch"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

// commandRunner adapts the command registry to actionlog.CommandRunner
// (spec §4.5: undo/redo re-run a logical inverse "with the action log
// append suppressed"). It shares the transaction Undo/Redo already
// opened rather than beginning its own, and current is pinned to the
// pointer state at the start of that single Undo/Redo call.
type commandRunner struct {
	r       *Repo
	current objects.PointerSnapshot
}

// RunSuppressed runs command's handler against tx without appending to
// the action log, then stages onto tx the ActiveSessionUUID/
// SettingsHash the handler's After reports, clearing either one After
// leaves unset — the part of RecordPush's job that Undo/Redo don't do
// themselves for a logical inverse.
func (cr *commandRunner) RunSuppressed(ctx context.Context, tx *txn.Transaction, command string, argsValue codec.Value) error {
	entry, ok := Lookup(command)
	if !ok {
		return verr.Usagef("%q is not a recognized command", command)
	}
	args, err := ArgsFromValue(argsValue)
	if err != nil {
		return err
	}
	sc, err := loadSessionContext(tx, cr.current)
	if err != nil {
		return err
	}
	out, err := entry.Handler(ctx, cr.r, tx, sc, args)
	if err != nil {
		return err
	}
	// After is the handler's full pointer state, so an unset field
	// clears its pointer ("" reads back as unset), as uninit relies on.
	session, settings := "", ""
	if out.After.ActiveSessionUUID.Set {
		session = out.After.ActiveSessionUUID.Value
	}
	if out.After.SettingsHash.Set {
		settings = out.After.SettingsHash.Hash.String()
	}
	tx.SetPointer(scratch.ActiveSession, session)
	tx.SetPointer(scratch.SettingsHash, settings)
	return nil
}
