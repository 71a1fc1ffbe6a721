package objects

import (
	"errors"

	"github.com/kurobon/vex/internal/codec"
)

var errMissingAlternatives = errors.New("objects: redo node missing alternatives")

// InverseKind distinguishes how an ActionRecord is undone: by restoring
// a prior pointer snapshot (physical) or by re-running a different
// command (logical), per spec §4.5.
type InverseKind string

const (
	InversePhysical InverseKind = "physical"
	InverseLogical  InverseKind = "logical"
)

// PointerSnapshot captures the scratch pointers an action changed, so a
// physical undo can restore them directly.
type PointerSnapshot struct {
	ActiveSessionUUID OptString
	ActionLogHead     OptHash
	RedoStackHead     OptHash
	SettingsHash      OptHash
}

func (p PointerSnapshot) ToValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"active_session": p.ActiveSessionUUID.ToValue(),
		"action_log":     p.ActionLogHead.ToValue(),
		"redo_stack":     p.RedoStackHead.ToValue(),
		"settings":       p.SettingsHash.ToValue(),
	})
}

func pointerSnapshotFromValue(v codec.Value) (PointerSnapshot, error) {
	session, err := optStringFromValue(v.Get("active_session"))
	if err != nil {
		return PointerSnapshot{}, err
	}
	log, err := optHashFromValue(v.Get("action_log"))
	if err != nil {
		return PointerSnapshot{}, err
	}
	redo, err := optHashFromValue(v.Get("redo_stack"))
	if err != nil {
		return PointerSnapshot{}, err
	}
	settings, err := optHashFromValue(v.Get("settings"))
	if err != nil {
		return PointerSnapshot{}, err
	}
	return PointerSnapshot{
		ActiveSessionUUID: session,
		ActionLogHead:     log,
		RedoStackHead:     redo,
		SettingsHash:      settings,
	}, nil
}

// LogicalInverse names the command (and its canonical argument set) that
// undoes an action by re-running a different command, rather than by
// replaying pointer state.
type LogicalInverse struct {
	Command string
	Args    codec.Value
}

func (l LogicalInverse) ToValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"command": codec.Str(l.Command),
		"args":    l.Args,
	})
}

func logicalInverseFromValue(v codec.Value) (LogicalInverse, error) {
	cmd, err := stringField(v, "command")
	if err != nil {
		return LogicalInverse{}, err
	}
	return LogicalInverse{Command: cmd, Args: v.Get("args")}, nil
}

// ActionRecord is one node in the append-only action log, linked backward through Prev
// (spec §3/§4.5). Prev is absent only for the very first action in a
// repository's history (H6: the chain from any head back to Prev=none
// must be gap-free).
type ActionRecord struct {
	Prev          OptHash
	Command       string
	Args          codec.Value
	TimestampApplied int64
	Before        PointerSnapshot
	After         PointerSnapshot
	Inverse       InverseKind
	Logical       LogicalInverse // populated only when Inverse == InverseLogical
}

func (ActionRecord) Kind() string { return "action_record" }

func (a ActionRecord) ToValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"kind":              codec.Str(a.Kind()),
		"prev":              a.Prev.ToValue(),
		"command":           codec.Str(a.Command),
		"args":              a.Args,
		"timestamp_applied": codec.Int(a.TimestampApplied),
		"before":            a.Before.ToValue(),
		"after":             a.After.ToValue(),
		"inverse":           codec.Str(string(a.Inverse)),
		"logical":           a.Logical.ToValue(),
	})
}

func ActionRecordFromValue(v codec.Value) (ActionRecord, error) {
	if err := checkKind(v, "action_record"); err != nil {
		return ActionRecord{}, err
	}
	prev, err := optHashFromValue(v.Get("prev"))
	if err != nil {
		return ActionRecord{}, err
	}
	cmd, err := stringField(v, "command")
	if err != nil {
		return ActionRecord{}, err
	}
	ts, err := intField(v, "timestamp_applied")
	if err != nil {
		return ActionRecord{}, err
	}
	before, err := pointerSnapshotFromValue(v.Get("before"))
	if err != nil {
		return ActionRecord{}, err
	}
	after, err := pointerSnapshotFromValue(v.Get("after"))
	if err != nil {
		return ActionRecord{}, err
	}
	inv, err := stringField(v, "inverse")
	if err != nil {
		return ActionRecord{}, err
	}
	var logical LogicalInverse
	if inv == string(InverseLogical) {
		logical, err = logicalInverseFromValue(v.Get("logical"))
		if err != nil {
			return ActionRecord{}, err
		}
	}
	return ActionRecord{
		Prev:             prev,
		Command:          cmd,
		Args:             v.Get("args"),
		TimestampApplied: ts,
		Before:           before,
		After:            after,
		Inverse:          InverseKind(inv),
		Logical:          logical,
	}, nil
}

// RedoNode is one entry in the redo stack. Prev is the node below it
// (the rest of the stack); Action is the ActionRecord this node would
// re-apply. Alternatives holds the hashes of further ActionRecords
// created by "redo branching" (spec §4.5): when a mutating command runs
// while the redo stack is non-empty, its new ActionRecord is appended
// here instead of the stack being discarded, and Action stays the
// default choice, so redo:list can offer both.
type RedoNode struct {
	Prev         OptHash
	Action       codec.Hash
	Alternatives []codec.Hash
}

func (RedoNode) Kind() string { return "redo_node" }

func (n RedoNode) ToValue() codec.Value {
	alts := make([]codec.Value, len(n.Alternatives))
	for i, a := range n.Alternatives {
		alts[i] = codec.Str(a.String())
	}
	return codec.Obj(map[string]codec.Value{
		"kind":         codec.Str(n.Kind()),
		"prev":         n.Prev.ToValue(),
		"action":       codec.Str(n.Action.String()),
		"alternatives": codec.Arr(alts...),
	})
}

func RedoNodeFromValue(v codec.Value) (RedoNode, error) {
	if err := checkKind(v, "redo_node"); err != nil {
		return RedoNode{}, err
	}
	prev, err := optHashFromValue(v.Get("prev"))
	if err != nil {
		return RedoNode{}, err
	}
	action, err := hashFromValue(v.Get("action"))
	if err != nil {
		return RedoNode{}, err
	}
	arr, ok := v.Get("alternatives").AsArray()
	if !ok {
		return RedoNode{}, errMissingAlternatives
	}
	alts := make([]codec.Hash, len(arr))
	for i, av := range arr {
		h, err := hashFromValue(av)
		if err != nil {
			return RedoNode{}, err
		}
		alts[i] = h
	}
	return RedoNode{Prev: prev, Action: action, Alternatives: alts}, nil
}
