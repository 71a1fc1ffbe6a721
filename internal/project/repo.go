// Package project implements Vex's command catalog (spec §4.6) atop
// the codec/objects/cas/scratch/txn/actionlog/lock layers: repository
// wiring, the command registry, argument parsing, and the working-copy
// manifest/settings/stash helpers every command shares.
package project

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"go.uber.org/zap"

	"github.com/kurobon/vex/internal/actionlog"
	"github.com/kurobon/vex/internal/cas"
	"github.com/kurobon/vex/internal/lock"
	"github.com/kurobon/vex/internal/scratch"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
	"github.com/kurobon/vex/internal/watch"
)

// scaffoldDirName is the on-disk directory name for a repository's
// internal state, matching spec §6's on-disk layout.
const scaffoldDirName = ".vex"

// Repo wires every layer together for one repository root.
type Repo struct {
	WorkDir string // the working copy root (parent of .vex)
	VexDir  string // <WorkDir>/.vex

	Store   cas.CAS
	Scratch *scratch.Store
	Lock    *lock.Lock
	Log     *actionlog.Log
	FS      billy.Filesystem // working-copy boundary
	Watcher watch.Watcher    // nil unless the caller wires one (commit:prepare --watch)
	Logger  *zap.Logger

	// SharedStore is a slot for a read-only fallback store (a team
	// cache or shared clone source). Open leaves it nil, and nothing in
	// this package reads it or wraps Store in a cas.LayeredCAS with it.
	SharedStore cas.CAS
}

// Open wires a Repo for an existing repository rooted at workDir. It
// does not create scaffold directories; use Init for that.
func Open(workDir string, logger *zap.Logger) (*Repo, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	vexDir := filepath.Join(workDir, scaffoldDirName)
	store, err := cas.NewFileCAS(filepath.Join(vexDir, "cas"))
	if err != nil {
		return nil, verr.IO(err, "project: open cas")
	}
	sc, err := scratch.NewStore(filepath.Join(vexDir, "scratch"))
	if err != nil {
		return nil, verr.IO(err, "project: open scratch store")
	}
	r := &Repo{
		WorkDir: workDir,
		VexDir:  vexDir,
		Store:   store,
		Scratch: sc,
		Lock:    lock.New(vexDir),
		Log:     actionlog.New(store),
		FS:      osfs.New(workDir),
		Logger:  logger,
	}
	return r, nil
}

// Recover runs startup crash recovery (spec §4.4) against this
// repository's transaction state, reporting what it found.
func (r *Repo) Recover() (txn.RecoverResult, error) {
	return txn.Recover(r.VexDir, r.Store, r.Scratch, r.Logger)
}

// Begin opens a new transaction against this repository.
func (r *Repo) Begin() (*txn.Transaction, error) {
	return txn.Begin(r.VexDir, r.Store, r.Scratch, r.Logger)
}

// AcquireExclusive takes the repository lock for a mutating command.
func (r *Repo) AcquireExclusive(ctx context.Context) (func(), error) {
	return r.Lock.AcquireExclusive(ctx)
}

// AcquireShared takes the repository lock for a read-only command.
func (r *Repo) AcquireShared(ctx context.Context) (func(), error) {
	return r.Lock.AcquireShared(ctx)
}

// FindRoot resolves a repository root by walking upward from start
// looking for a .vex directory, matching spec §9's "CWD upward or
// VEX_REPO" resolution rule. cmd/vex calls this directly; it lives
// here so tests can exercise it without the CLI.
func FindRoot(start string) (string, error) {
	dir := start
	for {
		if info, err := os.Stat(filepath.Join(dir, scaffoldDirName)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", verr.Usagef("project: not a vex repository (or any parent): %s", start)
		}
		dir = parent
	}
}
