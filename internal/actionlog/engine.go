package actionlog

import (
	"context"

	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/scratch"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

// CommandRunner re-runs a logical inverse with the action-log append
// suppressed (spec §4.5: "undo does not itself produce an undoable
// action"). The project layer implements this by dispatching through
// its command registry with appending disabled.
type CommandRunner interface {
	RunSuppressed(ctx context.Context, tx *txn.Transaction, command string, args codec.Value) error
}

func pointerValue(h objects.OptHash) string {
	if !h.Set {
		return ""
	}
	return h.Hash.String()
}

func pointerValueString(s objects.OptString) string {
	if !s.Set {
		return ""
	}
	return s.Value
}

// Undo applies one step of spec §4.5's undo protocol: restore or
// re-run the inverse of the action at current.ActionLogHead, push it
// onto the redo stack, and move the log head back to its parent. It
// stages every pointer change onto tx; the caller commits.
func (l *Log) Undo(ctx context.Context, tx *txn.Transaction, current objects.PointerSnapshot, runner CommandRunner) (objects.PointerSnapshot, error) {
	if !current.ActionLogHead.Set {
		return objects.PointerSnapshot{}, verr.Domainf("actionlog: nothing to undo")
	}
	rec, err := l.Get(current.ActionLogHead.Hash)
	if err != nil {
		return objects.PointerSnapshot{}, err
	}

	next := current
	if rec.Inverse == objects.InversePhysical {
		next.ActiveSessionUUID = rec.Before.ActiveSessionUUID
		next.SettingsHash = rec.Before.SettingsHash
	} else {
		if runner == nil {
			return objects.PointerSnapshot{}, verr.Domainf("actionlog: logical inverse requires a command runner")
		}
		if err := runner.RunSuppressed(ctx, tx, rec.Logical.Command, rec.Logical.Args); err != nil {
			return objects.PointerSnapshot{}, err
		}
	}

	node := objects.RedoNode{Prev: current.RedoStackHead, Action: current.ActionLogHead.Hash}
	nodeHash, nodeBytes := objects.Encode(node)
	if err := tx.PutObject(nodeHash, nodeBytes); err != nil {
		return objects.PointerSnapshot{}, err
	}

	next.ActionLogHead = rec.Prev
	next.RedoStackHead = objects.SomeHash(nodeHash)

	tx.SetPointer(scratch.ActionLogHead, pointerValue(next.ActionLogHead))
	tx.SetPointer(scratch.RedoStackHead, pointerValue(next.RedoStackHead))
	if rec.Inverse == objects.InversePhysical {
		tx.SetPointer(scratch.ActiveSession, pointerValueString(next.ActiveSessionUUID))
		tx.SetPointer(scratch.SettingsHash, pointerValue(next.SettingsHash))
	}
	return next, nil
}

// Redo pops the top of the redo stack and re-applies it, symmetric to
// Undo: physical actions forward-swap to rec.After, logical actions
// re-run rec.Command with rec.Args, and the popped node's Action
// becomes the new action-log head. choice is 1-based over the full
// list ListRedoAlternatives returns (1 selects the default/first
// entry); 0 is accepted as a synonym for 1, matching a bare `redo`
// with no `--choice` flag.
func (l *Log) Redo(ctx context.Context, tx *txn.Transaction, current objects.PointerSnapshot, choice int, runner CommandRunner) (objects.PointerSnapshot, error) {
	if !current.RedoStackHead.Set {
		return objects.PointerSnapshot{}, verr.Domainf("actionlog: nothing to redo")
	}
	node, err := l.GetRedoNode(current.RedoStackHead.Hash)
	if err != nil {
		return objects.PointerSnapshot{}, err
	}

	if choice == 0 {
		choice = 1
	}
	all := append([]codec.Hash{node.Action}, node.Alternatives...)
	if choice < 1 || choice > len(all) {
		return objects.PointerSnapshot{}, verr.Usagef("actionlog: redo choice %d out of range", choice)
	}
	actionHash := all[choice-1]
	remaining := append(append([]codec.Hash{}, all[:choice-1]...), all[choice:]...)

	rec, err := l.Get(actionHash)
	if err != nil {
		return objects.PointerSnapshot{}, err
	}

	next := current
	if rec.Inverse == objects.InversePhysical {
		next.ActiveSessionUUID = rec.After.ActiveSessionUUID
		next.SettingsHash = rec.After.SettingsHash
		tx.SetPointer(scratch.ActiveSession, pointerValueString(next.ActiveSessionUUID))
		tx.SetPointer(scratch.SettingsHash, pointerValue(next.SettingsHash))
	} else {
		if runner == nil {
			return objects.PointerSnapshot{}, verr.Domainf("actionlog: logical inverse requires a command runner")
		}
		if err := runner.RunSuppressed(ctx, tx, rec.Command, rec.Args); err != nil {
			return objects.PointerSnapshot{}, err
		}
	}

	next.ActionLogHead = objects.SomeHash(actionHash)

	if len(remaining) == 0 {
		next.RedoStackHead = node.Prev
	} else {
		// Branching: the alternatives not taken stay threaded onto the
		// stack below, so redo:list can still offer them later.
		sibling := objects.RedoNode{Prev: node.Prev, Action: remaining[0], Alternatives: remaining[1:]}
		siblingHash, siblingBytes := objects.Encode(sibling)
		if err := tx.PutObject(siblingHash, siblingBytes); err != nil {
			return objects.PointerSnapshot{}, err
		}
		next.RedoStackHead = objects.SomeHash(siblingHash)
	}

	tx.SetPointer(scratch.ActionLogHead, pointerValue(next.ActionLogHead))
	tx.SetPointer(scratch.RedoStackHead, pointerValue(next.RedoStackHead))
	return next, nil
}

// RedoAlternative describes one choice redo:list can present. Choice
// is 1-based and matches what Redo's choice parameter expects; Choice
// 1 is always node.Action, the entry a bare `redo` applies.
type RedoAlternative struct {
	Choice  int
	Command string
	Args    codec.Value
}

// ListRedoAlternatives enumerates the current redo stack top's
// choices: the default action plus any branched siblings.
func (l *Log) ListRedoAlternatives(redoHead objects.OptHash) ([]RedoAlternative, error) {
	if !redoHead.Set {
		return nil, nil
	}
	node, err := l.GetRedoNode(redoHead.Hash)
	if err != nil {
		return nil, err
	}
	all := append([]codec.Hash{node.Action}, node.Alternatives...)
	out := make([]RedoAlternative, 0, len(all))
	for i, h := range all {
		rec, err := l.Get(h)
		if err != nil {
			return nil, err
		}
		out = append(out, RedoAlternative{Choice: i + 1, Command: rec.Command, Args: rec.Args})
	}
	return out, nil
}

// RecordPush stages a new ActionRecord for the current action (called
// by every mutating command on success, never by undo/redo). If the
// redo stack is non-empty, per spec's "redo branching" it gains a new
// sibling rather than being discarded.
func (l *Log) RecordPush(tx *txn.Transaction, current objects.PointerSnapshot, command string, args codec.Value, inverse objects.InverseKind, logical objects.LogicalInverse, timestampApplied int64, after objects.PointerSnapshot) (objects.PointerSnapshot, error) {
	rec := objects.ActionRecord{
		Prev:             current.ActionLogHead,
		Command:          command,
		Args:             args,
		TimestampApplied: timestampApplied,
		Before:           current,
		After:            after,
		Inverse:          inverse,
		Logical:          logical,
	}
	recHash, recBytes := objects.Encode(rec)
	if err := tx.PutObject(recHash, recBytes); err != nil {
		return objects.PointerSnapshot{}, err
	}

	next := after
	next.ActionLogHead = objects.SomeHash(recHash)

	if current.RedoStackHead.Set {
		branched, err := l.branchRedoStack(tx, current.RedoStackHead.Hash, recHash)
		if err != nil {
			return objects.PointerSnapshot{}, err
		}
		next.RedoStackHead = branched
	} else {
		next.RedoStackHead = objects.NoHash()
	}

	tx.SetPointer(scratch.ActionLogHead, pointerValue(next.ActionLogHead))
	tx.SetPointer(scratch.RedoStackHead, pointerValue(next.RedoStackHead))
	tx.SetPointer(scratch.ActiveSession, pointerValueString(next.ActiveSessionUUID))
	tx.SetPointer(scratch.SettingsHash, pointerValue(next.SettingsHash))
	return next, nil
}

// branchRedoStack keeps an existing non-empty redo stack alive as a
// sibling of the newly recorded action instead of clearing it, per
// spec's explicit departure from a conventional one-directional
// reflog: newAction joins node's existing alternatives so redo:list
// can later offer "re-apply the old branch" alongside the line the
// user actually took.
func (l *Log) branchRedoStack(tx *txn.Transaction, oldHead codec.Hash, newAction codec.Hash) (objects.OptHash, error) {
	node, err := l.GetRedoNode(oldHead)
	if err != nil {
		return objects.OptHash{}, err
	}
	branched := objects.RedoNode{
		Prev:         node.Prev,
		Action:       node.Action,
		Alternatives: append(append([]codec.Hash{}, node.Alternatives...), newAction),
	}
	h, data := objects.Encode(branched)
	if err := tx.PutObject(h, data); err != nil {
		return objects.OptHash{}, err
	}
	return objects.SomeHash(h), nil
}
