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

// RecoverResult reports what startup recovery found and did, for the
// caller to surface as a non-fatal notice (spec §7: RecoverableHalt is
// not user-facing unless recovery itself failed).
type RecoverResult struct {
	Found    bool
	Finished bool // true: rolled forward; false: rolled back
}

// Recover inspects vexDir for a leftover pending/plan from a
// transaction that never reached its commit-point cleanup. It decides
// direction by checking whether action_log_head_hash already matches
// the plan's intended value: if so, the crash happened after step (d)
// of Commit and recovery finishes the remaining pointer swaps and
// cleanup; otherwise the crash happened before step (d) and recovery
// discards pending/plan entirely, leaving pointers untouched.
func Recover(vexDir string, store cas.CAS, sc *scratch.Store, log *zap.Logger) (RecoverResult, error) {
	planPath := filepath.Join(vexDir, planFileName)
	data, err := os.ReadFile(planPath)
	if err != nil {
		if os.IsNotExist(err) {
			return RecoverResult{}, nil
		}
		return RecoverResult{}, verr.IO(err, "txn: read plan during recovery")
	}

	var p plan
	if err := json.Unmarshal(data, &p); err != nil {
		return RecoverResult{}, verr.CorruptObject(err, "txn: decode plan during recovery")
	}

	intendedHead, hasHeadUpdate := p.Updates[scratch.ActionLogHead]
	currentHead, _, err := sc.Get(scratch.ActionLogHead)
	if err != nil {
		return RecoverResult{}, verr.IO(err, "txn: read action log head during recovery")
	}

	forward := hasHeadUpdate && currentHead == intendedHead

	t := &Transaction{
		vexDir:     vexDir,
		store:      store,
		scratch:    sc,
		log:        log,
		pendingDir: filepath.Join(vexDir, pendingDirName),
		p:          p,
	}

	if !forward {
		if log != nil {
			log.Warn("txn: recovering from crash, rolling back incomplete transaction")
		}
		if err := t.cleanup(); err != nil {
			return RecoverResult{}, err
		}
		return RecoverResult{Found: true, Finished: false}, nil
	}

	if log != nil {
		log.Warn("txn: recovering from crash, finishing committed transaction")
	}
	if err := finishForward(t); err != nil {
		return RecoverResult{}, err
	}
	return RecoverResult{Found: true, Finished: true}, nil
}

// finishForward replays the remaining commit steps after the
// action-log head swap: moving any still-pending objects into the CAS
// (a rename that already landed is idempotent to repeat) and applying
// the rest of the plan's pointer updates.
func finishForward(t *Transaction) error {
	for _, hashHex := range t.p.Staged {
		stagedPath := filepath.Join(t.pendingDir, hashHex)
		data, err := os.ReadFile(stagedPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue // already moved into the CAS before the crash
			}
			return verr.IO(err, "txn: read staged object during recovery")
		}
		h, err := parseHashOrCorrupt(hashHex)
		if err != nil {
			return err
		}
		if err := t.store.Put(h, data); err != nil {
			return verr.IO(err, "txn: move staged object during recovery")
		}
	}

	for name, v := range t.p.Updates {
		if name == scratch.ActionLogHead {
			continue // already applied; that's what made this "forward"
		}
		if err := t.scratch.Set(name, v); err != nil {
			return verr.IO(err, "txn: swap pointer during recovery")
		}
	}

	return t.cleanup()
}

func parseHashOrCorrupt(hex string) (codec.Hash, error) {
	h, err := codec.ParseHash(hex)
	if err != nil {
		return codec.Hash{}, verr.CorruptObject(err, "txn: staged file name is not a valid hash")
	}
	return h, nil
}
