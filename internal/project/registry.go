package project

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

// InverseKind mirrors objects.InverseKind at the command-registry
// level: a command either undoes by pointer restore or by re-running
// a named logical inverse (spec §9's "dynamic command dispatch ...
// fixed registry" note).
type InverseKind = objects.InverseKind

const (
	Physical = objects.InversePhysical
	Logical  = objects.InverseLogical
)

// Result is what a command handler returns: human-readable text plus
// a structured payload for --json output.
type Result struct {
	Text string
	Data codec.Value
}

// HandlerOutput is what a Handler hands back to its caller (Dispatch,
// or a suppressed logical-inverse replay during undo/redo): the result
// to surface, the full pointer state After the command ran (every
// field that didn't change must still carry the value it started
// with, since RecordPush writes every field unconditionally), and,
// for a Logical-inverse command, the command+args that undo it.
type HandlerOutput struct {
	Result  Result
	After   objects.PointerSnapshot
	Inverse objects.LogicalInverse
}

// Handler performs one command's work against an already-open
// transaction. It must never call tx.Commit or tx.Abort: Dispatch (for
// a normal invocation) or commandRunner (for a suppressed logical-
// inverse replay during undo/redo) owns the transaction's lifecycle.
type Handler func(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error)

// Entry is one row of the fixed command registry (spec §4.6.1):
// canonical name, parameter schema, handler, and how it's undone.
type Entry struct {
	Name        string
	Schema      ArgSchema
	Handler     Handler
	InverseKind InverseKind

	// ReadOnly commands (status, undo:list, redo:list) take only the
	// shared lock and never append to the action log.
	ReadOnly bool

	// SelfManaged commands (undo, redo) drive actionlog.Log's Undo/Redo
	// directly and commit the transaction themselves; Dispatch must not
	// also call RecordPush or Commit for them.
	SelfManaged bool

	// Internal entries exist only so a logical inverse has something to
	// Dispatch by name during undo/redo replay (spec §4.6's catalog
	// never names them directly); cmd/vex excludes them from the CLI
	// tree it builds from Names().
	Internal bool
}

var registry = map[string]Entry{}

// Register adds a command to the fixed registry. Called from each
// command file's init(), mirroring the teacher's RegisterCommand.
func Register(e Entry) {
	registry[e.Name] = e
}

// Lookup returns the registry entry for a canonical command name.
func Lookup(name string) (Entry, bool) {
	e, ok := registry[name]
	return e, ok
}

// Names returns every registered command name.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}

// Dispatch resolves and runs a command by canonical name, logging
// start/finish the way the teacher's engine.Dispatch does but with
// structured fields instead of Printf. It owns the command's lock,
// transaction, and (unless the entry is ReadOnly or SelfManaged)
// action-log append and commit.
func Dispatch(ctx context.Context, r *Repo, name string, args Args) (Result, error) {
	entry, ok := registry[name]
	if !ok {
		return Result{}, verr.Usagef("%q is not a recognized command", name)
	}
	if err := entry.Schema.Validate(args); err != nil {
		return Result{}, err
	}

	start := time.Now()
	r.Logger.Info("dispatch", zap.String("command", name))

	var unlock func()
	var err error
	if entry.ReadOnly {
		unlock, err = r.AcquireShared(ctx)
	} else {
		unlock, err = r.AcquireExclusive(ctx)
	}
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	res, err := runEntry(ctx, r, entry, args)
	r.Logger.Info("dispatch done",
		zap.String("command", name),
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)
	return res, err
}

// runEntry begins a transaction, resolves the current pointer state
// and session context, runs the handler, and (per entry's flags)
// either aborts, commits directly, or records + commits. It is only
// ever the OUTER entry point for a command: a suppressed logical-
// inverse replay during undo/redo never calls this (see
// commandRunner.RunSuppressed in command_runner.go), since that must
// share the transaction Undo/Redo already opened.
func runEntry(ctx context.Context, r *Repo, entry Entry, args Args) (Result, error) {
	tx, err := r.Begin()
	if err != nil {
		return Result{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Abort()
		}
	}()

	current, err := readPointers(r)
	if err != nil {
		return Result{}, err
	}
	sc, err := loadSessionContext(tx, current)
	if err != nil {
		return Result{}, err
	}

	out, err := entry.Handler(ctx, r, tx, sc, args)
	if err != nil {
		return Result{}, err
	}

	switch {
	case entry.ReadOnly:
		// Nothing was staged; let the deferred Abort discard the empty
		// pending dir rather than running a needless commit.
		return out.Result, nil
	case entry.SelfManaged:
		// The handler (undo/redo) already called tx.Commit itself.
		committed = true
		return out.Result, nil
	default:
		now := time.Now().Unix()
		if err := finishMutation(r, tx, &logAppend{
			command:          entry.Name,
			args:             args.ToValue(),
			inverseKind:      entry.InverseKind,
			logical:          out.Inverse,
			timestampApplied: now,
		}, commitPointers{current: current, after: out.After}); err != nil {
			return Result{}, err
		}
		committed = true
		return out.Result, nil
	}
}
