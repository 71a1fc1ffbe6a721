package project

import (
	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

// sessionContext bundles the objects most command handlers need: the
// pointer snapshot they started from, the settings/branch/session
// triple it resolves to, and the two index tables in case the command
// needs to rewrite one of them.
type sessionContext struct {
	Pointers      objects.PointerSnapshot
	Settings      objects.Settings
	Branches      objects.BranchesTable
	Sessions      objects.SessionsTable
	Session       objects.Session
	SessionExists bool
}

// loadSessionContext resolves everything a command needs to read from
// the current pointer state, without staging anything.
func loadSessionContext(tx *txn.Transaction, snap objects.PointerSnapshot) (sessionContext, error) {
	settings, err := loadSettings(tx, snap)
	if err != nil {
		return sessionContext{}, err
	}
	branches, err := getBranchesTable(tx, settings)
	if err != nil {
		return sessionContext{}, err
	}
	sessions, err := getSessionsTable(tx, settings)
	if err != nil {
		return sessionContext{}, err
	}

	sc := sessionContext{Pointers: snap, Settings: settings, Branches: branches, Sessions: sessions}
	if !snap.ActiveSessionUUID.Set {
		return sc, nil
	}
	sessHash, ok := sessions.Lookup(snap.ActiveSessionUUID.Value)
	if !ok {
		return sc, nil
	}
	data, err := tx.Get(sessHash)
	if err != nil {
		return sessionContext{}, verr.CorruptObject(err, "project: read active session")
	}
	v, err := codec.Decode(data)
	if err != nil {
		return sessionContext{}, verr.CorruptObject(err, "project: decode active session")
	}
	sess, err := objects.SessionFromValue(v)
	if err != nil {
		return sessionContext{}, err
	}
	sc.Session = sess
	sc.SessionExists = true
	return sc, nil
}

// stageSession stores a new Session object and threads it into the
// sessions table, returning the new Settings hash the caller must wire
// onto the action record's After snapshot.
func (sc sessionContext) stageSession(tx *txn.Transaction, sess objects.Session) (codec.Hash, error) {
	sessHash, sessData := objects.Encode(sess)
	if err := tx.PutObject(sessHash, sessData); err != nil {
		return codec.Hash{}, err
	}
	sessions := sc.Sessions.With(sess.UUID, sessHash)
	sessionsHash, err := stageSessionsTable(tx, sessions)
	if err != nil {
		return codec.Hash{}, err
	}
	newSettings := sc.Settings
	newSettings.SessionsTableHash = objects.SomeHash(sessionsHash)
	return stageSettings(tx, newSettings)
}

// stageBranch stores a new Branch object and threads it into the
// branches table, returning the new Settings hash.
func (sc sessionContext) stageBranch(tx *txn.Transaction, b objects.Branch) (codec.Hash, error) {
	bHash, bData := objects.Encode(b)
	if err := tx.PutObject(bHash, bData); err != nil {
		return codec.Hash{}, err
	}
	branches := sc.Branches.With(b.Name, bHash)
	branchesHash, err := stageBranchesTable(tx, branches)
	if err != nil {
		return codec.Hash{}, err
	}
	newSettings := sc.Settings
	newSettings.BranchesTableHash = objects.SomeHash(branchesHash)
	return stageSettings(tx, newSettings)
}

// CurrentBranch resolves the session's active Branch object, erroring
// if the session is detached (no branch_name) or the name doesn't
// resolve in the branches table.
func (sc sessionContext) CurrentBranch(tx *txn.Transaction) (objects.Branch, error) {
	if !sc.Session.BranchName.Set {
		return objects.Branch{}, verr.Domainf("project: session is detached, not on a branch")
	}
	h, ok := sc.Branches.Lookup(sc.Session.BranchName.Value)
	if !ok {
		return objects.Branch{}, verr.CorruptObjectf("project: branch %q not found in branches table", sc.Session.BranchName.Value)
	}
	data, err := tx.Get(h)
	if err != nil {
		return objects.Branch{}, verr.CorruptObject(err, "project: read branch")
	}
	v, err := codec.Decode(data)
	if err != nil {
		return objects.Branch{}, verr.CorruptObject(err, "project: decode branch")
	}
	return objects.BranchFromValue(v)
}

// CurrentCommit resolves the commit the session's branch head (or, if
// detached, DetachedAt) points at.
func (sc sessionContext) CurrentCommit(tx *txn.Transaction) (objects.Commit, objects.OptHash, error) {
	var headHash objects.OptHash
	if sc.Session.BranchName.Set {
		b, err := sc.CurrentBranch(tx)
		if err != nil {
			return objects.Commit{}, objects.OptHash{}, err
		}
		headHash = b.HeadHash
	} else {
		headHash = sc.Session.DetachedAt
	}
	if !headHash.Set {
		return objects.Commit{}, objects.OptHash{}, verr.Domainf("project: no commit yet")
	}
	data, err := tx.Get(headHash.Hash)
	if err != nil {
		return objects.Commit{}, objects.OptHash{}, verr.CorruptObject(err, "project: read commit")
	}
	v, err := codec.Decode(data)
	if err != nil {
		return objects.Commit{}, objects.OptHash{}, verr.CorruptObject(err, "project: decode commit")
	}
	c, err := objects.CommitFromValue(v)
	if err != nil {
		return objects.Commit{}, objects.OptHash{}, err
	}
	return c, headHash, nil
}

// CurrentManifest resolves the session's working manifest.
func (sc sessionContext) CurrentManifest(tx *txn.Transaction) (objects.Manifest, error) {
	data, err := tx.Get(sc.Session.ManifestHash)
	if err != nil {
		return objects.Manifest{}, verr.CorruptObject(err, "project: read manifest")
	}
	v, err := codec.Decode(data)
	if err != nil {
		return objects.Manifest{}, verr.CorruptObject(err, "project: decode manifest")
	}
	return objects.ManifestFromValue(v)
}
