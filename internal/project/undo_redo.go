package project

import (
	"context"
	"strconv"

	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

func init() {
	Register(Entry{
		Name:        "undo",
		Schema:      ArgSchema{},
		Handler:     handleUndo,
		SelfManaged: true,
	})
	Register(Entry{
		Name: "redo",
		Schema: ArgSchema{Params: []ParamSpec{
			{Name: "choice", Kind: KindSingle, Required: false},
		}},
		Handler:     handleRedo,
		SelfManaged: true,
	})
	Register(Entry{
		Name:     "undo:list",
		Schema:   ArgSchema{},
		Handler:  handleUndoList,
		ReadOnly: true,
	})
	Register(Entry{
		Name:     "redo:list",
		Schema:   ArgSchema{},
		Handler:  handleRedoList,
		ReadOnly: true,
	})
}

// handleUndo drives actionlog.Log.Undo directly and commits tx itself,
// since a SelfManaged entry's Dispatch path never calls finishMutation
// for it (spec §4.5: undo "never itself logged").
func handleUndo(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	runner := &commandRunner{r: r, current: sc.Pointers}
	next, err := r.Log.Undo(ctx, tx, sc.Pointers, runner)
	if err != nil {
		return HandlerOutput{}, err
	}
	if err := tx.Commit(); err != nil {
		return HandlerOutput{}, err
	}
	return HandlerOutput{Result: Result{Text: "undone"}, After: next}, nil
}

// handleRedo parses --choice (1-based, default 1) and drives
// actionlog.Log.Redo the same way handleUndo drives Undo.
func handleRedo(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	choice := 0
	if s, ok := args.Single("choice"); ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			return HandlerOutput{}, verr.Usagef("project: --choice must be an integer, got %q", s)
		}
		choice = n
	}
	runner := &commandRunner{r: r, current: sc.Pointers}
	next, err := r.Log.Redo(ctx, tx, sc.Pointers, choice, runner)
	if err != nil {
		return HandlerOutput{}, err
	}
	if err := tx.Commit(); err != nil {
		return HandlerOutput{}, err
	}
	return HandlerOutput{Result: Result{Text: "redone"}, After: next}, nil
}

// handleUndoList reports the command undo would next reverse, the
// read-only counterpart to redo:list's enumeration of redo choices.
func handleUndoList(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	if !sc.Pointers.ActionLogHead.Set {
		return HandlerOutput{Result: Result{Text: "nothing to undo"}}, nil
	}
	rec, err := r.Log.Get(sc.Pointers.ActionLogHead.Hash)
	if err != nil {
		return HandlerOutput{}, err
	}
	return HandlerOutput{
		Result: Result{
			Text: "next undo: " + rec.Command,
			Data: codec.Obj(map[string]codec.Value{"command": codec.Str(rec.Command)}),
		},
	}, nil
}

// handleRedoList enumerates the current redo stack top's alternatives,
// 1-based to match the --choice argument handleRedo accepts.
func handleRedoList(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	alts, err := r.Log.ListRedoAlternatives(sc.Pointers.RedoStackHead)
	if err != nil {
		return HandlerOutput{}, err
	}
	if len(alts) == 0 {
		return HandlerOutput{Result: Result{Text: "nothing to redo"}}, nil
	}
	lines := ""
	entries := make([]codec.Value, 0, len(alts))
	for i, a := range alts {
		if i > 0 {
			lines += "\n"
		}
		lines += strconv.Itoa(a.Choice) + ": " + a.Command
		entries = append(entries, codec.Obj(map[string]codec.Value{
			"choice":  codec.Int(int64(a.Choice)),
			"command": codec.Str(a.Command),
		}))
	}
	return HandlerOutput{Result: Result{Text: lines, Data: codec.Arr(entries...)}}, nil
}
