package project

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

func init() {
	Register(Entry{
		Name:     "debug:rollback",
		Schema:   ArgSchema{},
		Handler:  handleDebugRollback,
		ReadOnly: true,
	})
}

type fakeModeKey struct{}

// withFake marks ctx as running under `fake`, so writeWorkingFile and
// the other working-copy mutations (remove, switch's prefix eviction)
// become no-ops even though the transaction they ran in still gets
// aborted regardless (spec §4.7: "side effects outside the repository
// ... are guarded by a dry-run flag threaded through the command").
func withFake(ctx context.Context) context.Context {
	return context.WithValue(ctx, fakeModeKey{}, true)
}

func isFake(ctx context.Context) bool {
	v, _ := ctx.Value(fakeModeKey{}).(bool)
	return v
}

// DispatchFake runs name's handler, with working-copy writes turned off
// via withFake, against a transaction that is always aborted at the end
// regardless of outcome. It logs the command name only: the objects and
// pointer updates the transaction staged are discarded without being
// logged or reported. The CLI layer calls this instead of Dispatch for
// `fake <command> ...`.
func DispatchFake(ctx context.Context, r *Repo, name string, args Args) (Result, error) {
	entry, ok := Lookup(name)
	if !ok {
		return Result{}, verr.Usagef("%q is not a recognized command", name)
	}
	if err := entry.Schema.Validate(args); err != nil {
		return Result{}, err
	}

	r.Logger.Info("dispatch fake", zap.String("command", name))

	unlock, err := r.AcquireExclusive(ctx)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	tx, err := r.Begin()
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Abort() }()

	current, err := readPointers(r)
	if err != nil {
		return Result{}, err
	}
	sc, err := loadSessionContext(tx, current)
	if err != nil {
		return Result{}, err
	}

	out, err := entry.Handler(withFake(ctx), r, tx, sc, args)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: "fake " + name + ": " + out.Result.Text, Data: out.Result.Data}, nil
}

// DispatchDebug runs name's handler the way Dispatch would, except a
// DomainError from the handler does not trigger the usual abort:
// whatever the handler staged is parked (plan file written, pointers
// and pending/ left untouched) instead of discarded, leaving the
// half-applied state on disk for debug:rollback to inspect (spec §4.7:
// "debug <command> disables the automatic abort on DomainError").
// Since action_log_head_hash was never swapped, the parked state is
// exactly what txn.Recover treats as an incomplete transaction and
// rolls back — debug:rollback just invokes that directly.
func DispatchDebug(ctx context.Context, r *Repo, name string, args Args) (Result, error) {
	entry, ok := Lookup(name)
	if !ok {
		return Result{}, verr.Usagef("%q is not a recognized command", name)
	}
	if err := entry.Schema.Validate(args); err != nil {
		return Result{}, err
	}

	r.Logger.Info("dispatch debug", zap.String("command", name))

	unlock, err := r.AcquireExclusive(ctx)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

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

	out, handlerErr := entry.Handler(ctx, r, tx, sc, args)
	if handlerErr != nil {
		if e, ok := verr.As(handlerErr); ok && e.Kind() == verr.KindDomain {
			if err := tx.Park(); err != nil {
				return Result{}, err
			}
			committed = true
		}
		return Result{}, handlerErr
	}

	switch {
	case entry.ReadOnly:
		return out.Result, nil
	case entry.SelfManaged:
		committed = true
		return out.Result, nil
	default:
		if err := finishMutation(r, tx, &logAppend{
			command:          name,
			args:             args.ToValue(),
			inverseKind:      entry.InverseKind,
			logical:          out.Inverse,
			timestampApplied: time.Now().Unix(),
		}, commitPointers{current: current, after: out.After}); err != nil {
			return Result{}, err
		}
		committed = true
		return out.Result, nil
	}
}

// handleDebugRollback invokes startup crash recovery directly (spec
// §4.4's algorithm, exposed here as an explicit command instead of
// only running implicitly at process start). A transaction a prior
// `debug` parked never reached the action-log head swap, so recovery
// always resolves it by rolling back (removing pending/plan, pointers
// untouched); Finished only comes back true for a genuine crash caught
// between the pointer swap and cleanup.
func handleDebugRollback(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	result, err := r.Recover()
	if err != nil {
		return HandlerOutput{}, err
	}
	text := "no pending transaction"
	switch {
	case !result.Found:
		text = "no pending transaction"
	case result.Finished:
		text = "rolled forward pending transaction"
	default:
		text = "rolled back pending transaction"
	}
	return HandlerOutput{Result: Result{Text: text}}, nil
}
