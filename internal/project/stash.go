package project

import (
	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

// pushStash snapshots a session's current manifest onto its stash
// stack under label, returning the updated Session (caller stages it).
// Used by branch:open and switch to preserve uncommitted work across a
// working-copy swap (spec §4.6: "capture uncommitted work from the
// current session into its StashEntry").
func pushStash(tx *txn.Transaction, sess objects.Session, label string, parent objects.OptHash) (objects.Session, error) {
	entry := objects.StashEntry{
		Label:        label,
		ManifestHash: sess.ManifestHash,
		ParentHash:   parent,
		Prev:         sess.StashHead,
	}
	h, data := objects.Encode(entry)
	if err := tx.PutObject(h, data); err != nil {
		return objects.Session{}, err
	}
	sess.StashHead = objects.SomeHash(h)
	return sess, nil
}

// popStash finds the most recent stash entry labeled label on sess's
// stack and returns it with the remaining stack's new head. Entries
// below it stay threaded via Prev, and the newer entries above it are
// re-staged on top of them, so unrelated labels are unaffected.
func popStash(tx *txn.Transaction, sess objects.Session, label string) (objects.StashEntry, objects.OptHash, error) {
	var above []objects.StashEntry
	current := sess.StashHead
	for current.Set {
		data, err := tx.Get(current.Hash)
		if err != nil {
			return objects.StashEntry{}, objects.OptHash{}, verr.CorruptObject(err, "project: read stash entry")
		}
		v, err := codec.Decode(data)
		if err != nil {
			return objects.StashEntry{}, objects.OptHash{}, verr.CorruptObject(err, "project: decode stash entry")
		}
		entry, err := objects.StashEntryFromValue(v)
		if err != nil {
			return objects.StashEntry{}, objects.OptHash{}, err
		}
		if entry.Label == label {
			newHead := entry.Prev
			for i := len(above) - 1; i >= 0; i-- {
				kept := above[i]
				kept.Prev = newHead
				h, data := objects.Encode(kept)
				if err := tx.PutObject(h, data); err != nil {
					return objects.StashEntry{}, objects.OptHash{}, err
				}
				newHead = objects.SomeHash(h)
			}
			return entry, newHead, nil
		}
		above = append(above, entry)
		current = entry.Prev
	}
	return objects.StashEntry{}, objects.OptHash{}, verr.Domainf("project: no stash entry labeled %q", label)
}
