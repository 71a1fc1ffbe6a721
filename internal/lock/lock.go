// Package lock wraps a repository-wide exclusive/shared file lock
// (spec §5), backed by flock(2) semantics so it is released on process
// exit even after a crash.
package lock

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"

	"github.com/kurobon/vex/internal/verr"
)

// fileName is the lockfile's fixed name under the repository's .vex
// scaffold.
const fileName = "lock"

// Lock guards a repository against concurrent mutating commands.
// Mutating commands take it exclusively; read-only commands that must
// still see a consistent snapshot take it shared.
type Lock struct {
	fl *flock.Flock
}

// New returns a Lock for the repository rooted at vexDir (the .vex
// directory, not the working copy root).
func New(vexDir string) *Lock {
	return &Lock{fl: flock.New(filepath.Join(vexDir, fileName))}
}

// defaultRetry bounds how long AcquireExclusive/AcquireShared wait for
// a contended lock before surfacing ConcurrentWriter, per spec §5's
// "the caller may wait with a bounded timeout".
func defaultRetry() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return b
}

// AcquireExclusive blocks (up to a bounded timeout) for sole access to
// the repository. The returned release func must be called to unlock.
func (l *Lock) AcquireExclusive(ctx context.Context) (release func(), err error) {
	return l.acquire(ctx, true)
}

// AcquireShared allows concurrent shared holders but excludes any
// exclusive holder.
func (l *Lock) AcquireShared(ctx context.Context) (release func(), err error) {
	return l.acquire(ctx, false)
}

func (l *Lock) acquire(ctx context.Context, exclusive bool) (func(), error) {
	try := func() (bool, error) {
		if exclusive {
			return l.fl.TryLock()
		}
		return l.fl.TryRLock()
	}

	op := func() error {
		ok, err := try()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errLocked
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(defaultRetry(), ctx)); err != nil {
		if err == errLocked || err == context.DeadlineExceeded || err == context.Canceled {
			return nil, verr.ConcurrentWriter(err)
		}
		return nil, verr.IO(err, "lock: acquire")
	}

	return func() { _ = l.fl.Unlock() }, nil
}

// errLocked is a sentinel distinguishing "still contended, keep
// retrying" from a hard OS-level lock failure.
var errLocked = lockedSentinel{}

type lockedSentinel struct{}

func (lockedSentinel) Error() string { return "lock: held by another process" }
