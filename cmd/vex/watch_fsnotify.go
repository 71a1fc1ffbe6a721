package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kurobon/vex/internal/project"
	"github.com/kurobon/vex/internal/verr"
	"github.com/kurobon/vex/internal/watch"
)

// fsWatcher adapts fsnotify.Watcher to internal/watch.Watcher (spec §9:
// "the watcher may be implemented with any platform facility"),
// recursively registering every directory under root except the .vex
// scaffold, and coalescing a burst of events from one edit (write,
// then rename-into-place) into a single Changes() signal.
type fsWatcher struct {
	inner   *fsnotify.Watcher
	changes chan struct{}
	done    chan struct{}
}

func newFSWatcher(root string) (*fsWatcher, error) {
	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, verr.IO(err, "vex: create filesystem watcher")
	}
	if err := filepath.Walk(root, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !info.IsDir() {
			return nil
		}
		if filepath.Base(p) == ".vex" {
			return filepath.SkipDir
		}
		return inner.Add(p)
	}); err != nil {
		inner.Close()
		return nil, verr.IO(err, "vex: register watch directories")
	}

	w := &fsWatcher{inner: inner, changes: make(chan struct{}, 1), done: make(chan struct{})}
	go w.pump()
	return w, nil
}

// pump debounces fsnotify's raw event stream: a burst of writes within
// a short window collapses into one Changes() notification, matching
// spec §9's "no cross-transaction state is retained in memory" (each
// notification triggers exactly one fresh commit:prepare, not one per
// underlying syscall).
func (w *fsWatcher) pump() {
	const debounce = 150 * time.Millisecond
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case _, ok := <-w.inner.Events:
			if !ok {
				return
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			select {
			case w.changes <- struct{}{}:
			default:
			}
			fire = nil
		case <-w.done:
			return
		}
	}
}

func (w *fsWatcher) Changes() <-chan struct{} { return w.changes }

func (w *fsWatcher) Close() error {
	close(w.done)
	return w.inner.Close()
}

var _ watch.Watcher = (*fsWatcher)(nil)

// runCommitPrepareWatch implements the loop body of commit:prepare
// --watch: block for a change notification or an interrupt, then run
// one full transactional commit:prepare per notification, exiting
// cleanly on SIGINT/SIGTERM (spec §5: "cancelled by a standard
// interrupt").
func runCommitPrepareWatch(ctx context.Context, r *project.Repo, args project.Args, jsonOut bool) error {
	w, err := newFSWatcher(r.WorkDir)
	if err != nil {
		return renderOrReturn(jsonOut, "commit:prepare", project.Result{}, err)
	}
	defer w.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	r.Logger.Info("commit:prepare --watch: waiting for changes")
	for {
		select {
		case <-w.Changes():
			res, err := project.Dispatch(ctx, r, "commit:prepare", args)
			if err != nil {
				if e, ok := verr.As(err); ok && e.Kind() == verr.KindDomain {
					// Nothing new to prepare (e.g. the change was a no-op
					// after include/ignore filtering); keep watching.
					r.Logger.Info("commit:prepare --watch: nothing to prepare")
					continue
				}
				return renderOrReturn(jsonOut, "commit:prepare", project.Result{}, err)
			}
			renderResult(jsonOut, "commit:prepare", res)
			if !jsonOut {
				fmt.Fprintln(colorWriter(os.Stdout), "")
			}
		case <-sigCh:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
