// Package actionlog implements the append-only action log and its
// undo/redo engine (spec §4.5): every mutating command appends one
// ActionRecord, and undo/redo walk that chain plus a separately
// threaded, branching redo stack.
package actionlog

import (
	"github.com/kurobon/vex/internal/cas"
	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/verr"
)

// Log reads and appends ActionRecords against a CAS. It does not own
// the scratch pointers directly; callers (the project layer, via a
// txn.Transaction) decide when a record becomes the new head.
type Log struct {
	store cas.CAS
}

func New(store cas.CAS) *Log {
	return &Log{store: store}
}

// Get reads and decodes the ActionRecord at hash.
func (l *Log) Get(h codec.Hash) (objects.ActionRecord, error) {
	data, err := l.store.Get(h)
	if err != nil {
		return objects.ActionRecord{}, verr.CorruptObject(err, "actionlog: read action record")
	}
	v, err := codec.Decode(data)
	if err != nil {
		return objects.ActionRecord{}, verr.CorruptObject(err, "actionlog: decode action record")
	}
	rec, err := objects.ActionRecordFromValue(v)
	if err != nil {
		return objects.ActionRecord{}, verr.CorruptObject(err, "actionlog: parse action record")
	}
	return rec, nil
}

// ValidateChain walks backward from head confirming every prev_hash
// resolves (invariant H6: the action log is gap-free). It stops at the
// first record whose Prev is unset.
func (l *Log) ValidateChain(head codec.Hash) error {
	current := head
	for {
		rec, err := l.Get(current)
		if err != nil {
			return err
		}
		if !rec.Prev.Set {
			return nil
		}
		current = rec.Prev.Hash
	}
}

// GetRedoNode reads and decodes the RedoNode at hash.
func (l *Log) GetRedoNode(h codec.Hash) (objects.RedoNode, error) {
	data, err := l.store.Get(h)
	if err != nil {
		return objects.RedoNode{}, verr.CorruptObject(err, "actionlog: read redo node")
	}
	v, err := codec.Decode(data)
	if err != nil {
		return objects.RedoNode{}, verr.CorruptObject(err, "actionlog: decode redo node")
	}
	node, err := objects.RedoNodeFromValue(v)
	if err != nil {
		return objects.RedoNode{}, verr.CorruptObject(err, "actionlog: parse redo node")
	}
	return node, nil
}
