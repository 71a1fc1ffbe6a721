package project

import (
	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/scratch"
	"github.com/kurobon/vex/internal/verr"
)

// readPointers loads the four scratch pointers into a PointerSnapshot,
// the "read at one well-defined moment at the start of their
// operation" revalidation spec §5 asks readers to perform.
func readPointers(r *Repo) (objects.PointerSnapshot, error) {
	var snap objects.PointerSnapshot

	if v, ok, err := r.Scratch.Get(scratch.ActiveSession); err != nil {
		return snap, verr.IO(err, "project: read active session pointer")
	} else if ok && v != "" {
		snap.ActiveSessionUUID = objects.SomeString(v)
	}

	if v, ok, err := r.Scratch.Get(scratch.ActionLogHead); err != nil {
		return snap, verr.IO(err, "project: read action log head pointer")
	} else if ok && v != "" {
		h, err := parseHash(v)
		if err != nil {
			return snap, err
		}
		snap.ActionLogHead = objects.SomeHash(h)
	}

	if v, ok, err := r.Scratch.Get(scratch.RedoStackHead); err != nil {
		return snap, verr.IO(err, "project: read redo stack head pointer")
	} else if ok && v != "" {
		h, err := parseHash(v)
		if err != nil {
			return snap, err
		}
		snap.RedoStackHead = objects.SomeHash(h)
	}

	if v, ok, err := r.Scratch.Get(scratch.SettingsHash); err != nil {
		return snap, verr.IO(err, "project: read settings pointer")
	} else if ok && v != "" {
		h, err := parseHash(v)
		if err != nil {
			return snap, err
		}
		snap.SettingsHash = objects.SomeHash(h)
	}

	return snap, nil
}

func parseHash(hex string) (codec.Hash, error) {
	h, err := codec.ParseHash(hex)
	if err != nil {
		return codec.Hash{}, verr.CorruptObjectf("project: malformed pointer %q: %v", hex, err)
	}
	return h, nil
}
