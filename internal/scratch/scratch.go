// Package scratch stores Vex's small set of named, mutable pointer
// files (spec §3: active_session_uuid, action_log_head_hash,
// redo_stack_head_hash, settings_hash). Unlike CAS objects these are
// overwritten in place by name, but the write protocol is the same
// temp-file/fsync/rename dance so a crash mid-write never leaves a
// torn pointer on disk.
package scratch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Name identifies one of the fixed scratch pointers.
type Name string

const (
	ActiveSession Name = "active_session"
	ActionLogHead Name = "action_log_head"
	RedoStackHead Name = "redo_stack_head"
	SettingsHash  Name = "settings"
)

// Store reads and writes scratch pointer files under a root directory.
type Store struct {
	root string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "scratch: create root %s", dir)
	}
	return &Store{root: dir}, nil
}

func (s *Store) path(name Name) string {
	return filepath.Join(s.root, string(name))
}

// Get returns the pointer's current contents, or ok=false if unset.
func (s *Store) Get(name Name) (value string, ok bool, err error) {
	b, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "scratch: read %s", name)
	}
	return strings.TrimRight(string(b), "\n"), true, nil
}

// Set durably overwrites a pointer.
func (s *Store) Set(name Name, value string) error {
	dest := s.path(name)
	tmp, err := os.CreateTemp(s.root, "tmp-*")
	if err != nil {
		return errors.Wrap(err, "scratch: create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "scratch: write %s", name)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "scratch: fsync %s", name)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "scratch: close temp file for %s", name)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "scratch: rename %s into place", name)
	}
	return nil
}

// Clear removes a pointer, restoring it to the unset state.
func (s *Store) Clear(name Name) error {
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "scratch: clear %s", name)
	}
	return nil
}
