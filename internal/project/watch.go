package project

import (
	"context"

	"github.com/kurobon/vex/internal/watch"
)

// watchUntilCancel blocks until either w signals a change or ctx is
// cancelled, reporting which happened. Nothing calls it at present:
// cmd/vex's commit:prepare --watch loop (watch_fsnotify.go) selects on
// the watcher and its context itself.
func watchUntilCancel(ctx context.Context, w watch.Watcher) (changed bool, cancelled bool) {
	select {
	case <-w.Changes():
		return true, false
	case <-ctx.Done():
		return false, true
	}
}
