// Package txn implements Vex's two-phase transaction layer (spec §4.4):
// every mutation is staged under pending/ and committed by a single
// atomic swap of action_log_head_hash, so a crash at any point leaves
// the repository either at its pre-begin state or its post-commit
// state, never in between.
package txn

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kurobon/vex/internal/cas"
	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/scratch"
	"github.com/kurobon/vex/internal/verr"
)

const (
	pendingDirName = "pending"
	planFileName   = "plan"
)

// plan is the on-disk record of a transaction's intended pointer
// updates and staged object hashes, serialized as plain JSON (not the
// object codec — a plan is transaction-layer bookkeeping, not a
// content-addressed object, so it has no hash to be stable about).
type plan struct {
	Snapshot map[scratch.Name]string `json:"snapshot"`
	Updates  map[scratch.Name]string `json:"updates"`
	Staged   []string                `json:"staged"` // hex hashes staged in pending/
}

// Transaction stages CAS writes and scratch-pointer updates for an
// all-or-nothing commit.
type Transaction struct {
	vexDir  string
	store   cas.CAS
	scratch *scratch.Store
	log     *zap.Logger

	pendingDir string
	p          plan
	staged     map[codec.Hash][]byte
}

// Begin snapshots every scratch pointer and opens a pending/ staging
// area. Only one Transaction should be open at a time; callers
// serialize this via the repository lock.
func Begin(vexDir string, store cas.CAS, sc *scratch.Store, log *zap.Logger) (*Transaction, error) {
	pendingDir := filepath.Join(vexDir, pendingDirName)
	if err := os.MkdirAll(pendingDir, 0o755); err != nil {
		return nil, verr.IO(err, "txn: create pending dir")
	}

	snapshot := map[scratch.Name]string{}
	for _, name := range []scratch.Name{
		scratch.ActiveSession, scratch.ActionLogHead, scratch.RedoStackHead, scratch.SettingsHash,
	} {
		v, ok, err := sc.Get(name)
		if err != nil {
			return nil, verr.IO(err, "txn: snapshot pointer")
		}
		if ok {
			snapshot[name] = v
		}
	}

	t := &Transaction{
		vexDir:     vexDir,
		store:      store,
		scratch:    sc,
		log:        log,
		pendingDir: pendingDir,
		p: plan{
			Snapshot: snapshot,
			Updates:  map[scratch.Name]string{},
		},
		staged: map[codec.Hash][]byte{},
	}
	return t, nil
}

// PutObject stages an object's canonical bytes under hash, in memory
// and in pending/, but not yet at its final CAS path.
func (t *Transaction) PutObject(h codec.Hash, data []byte) error {
	t.staged[h] = data
	dest := filepath.Join(t.pendingDir, h.String())
	f, err := os.Create(dest)
	if err != nil {
		return verr.IO(err, "txn: stage object")
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return verr.IO(err, "txn: write staged object")
	}
	if err := f.Sync(); err != nil {
		return verr.IO(err, "txn: fsync staged object")
	}
	t.p.Staged = append(t.p.Staged, h.String())
	return nil
}

// Get reads an object this transaction has staged but not yet
// committed, falling back to the underlying store. Commands that read
// back what they just wrote (e.g. commit building a Tree from freshly
// staged File objects) need this.
func (t *Transaction) Get(h codec.Hash) ([]byte, error) {
	if data, ok := t.staged[h]; ok {
		return data, nil
	}
	return t.store.Get(h)
}

// SetPointer records the intended final value of a scratch pointer.
func (t *Transaction) SetPointer(name scratch.Name, value string) {
	t.p.Updates[name] = value
}

// writePlan durably writes the plan file, the marker that recovery
// uses to detect a half-applied transaction.
func (t *Transaction) writePlan() error {
	data, err := json.Marshal(t.p)
	if err != nil {
		return verr.IO(err, "txn: marshal plan")
	}
	dest := filepath.Join(t.vexDir, planFileName)
	tmp, err := os.CreateTemp(t.vexDir, "plan-tmp-*")
	if err != nil {
		return verr.IO(err, "txn: create plan temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return verr.IO(err, "txn: write plan")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return verr.IO(err, "txn: fsync plan")
	}
	tmp.Close()
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return verr.IO(err, "txn: rename plan into place")
	}
	return nil
}

// Commit applies the staged writes in the order spec §4.4 requires:
// (a) fsync pending/ (done as each file was staged), (b) move every
// pending object to its final CAS path, (c) write the ActionRecord
// (the caller passes its hash/bytes as one of the staged objects and
// names it via SetPointer(ActionLogHead, ...) before calling Commit),
// (d)-(e) swap pointers, (f) clean up pending/plan.
func (t *Transaction) Commit() error {
	if err := t.writePlan(); err != nil {
		return err
	}

	for h, data := range t.staged {
		if err := t.store.Put(h, data); err != nil {
			return verr.IO(err, "txn: move staged object into CAS")
		}
	}

	// The action-log head swap is the commit point (§4.4): once it
	// lands, recovery always finishes forward from here.
	if v, ok := t.p.Updates[scratch.ActionLogHead]; ok {
		if err := t.scratch.Set(scratch.ActionLogHead, v); err != nil {
			return verr.IO(err, "txn: swap action log head")
		}
	}
	for name, v := range t.p.Updates {
		if name == scratch.ActionLogHead {
			continue
		}
		if err := t.scratch.Set(name, v); err != nil {
			return verr.IO(err, "txn: swap pointer "+string(name))
		}
	}

	return t.cleanup()
}

// Abort discards all staged state, restoring nothing (there is nothing
// to restore: pointers were never touched).
func (t *Transaction) Abort() error {
	return t.cleanup()
}

// Park durably writes the plan file and stops, deliberately short of
// the pointer swap and cleanup Commit performs. It leaves pending/ and
// plan on disk exactly as a crash between Begin and the action-log head
// swap would, so a later Recover (or debug:rollback, which just calls
// Recover directly) finds action_log_head_hash not yet matching the
// plan and rolls the whole thing back. Debug mode uses this instead of
// Commit to leave a DomainError's partial work inspectable without
// ever making it durable.
func (t *Transaction) Park() error {
	return t.writePlan()
}

func (t *Transaction) cleanup() error {
	if err := os.RemoveAll(t.pendingDir); err != nil {
		return verr.IO(err, "txn: remove pending dir")
	}
	planPath := filepath.Join(t.vexDir, planFileName)
	if err := os.Remove(planPath); err != nil && !os.IsNotExist(err) {
		return verr.IO(err, "txn: remove plan file")
	}
	return nil
}
