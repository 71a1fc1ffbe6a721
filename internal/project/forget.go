package project

import (
	"context"

	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

func init() {
	Register(Entry{
		Name: "forget",
		Schema: ArgSchema{Params: []ParamSpec{
			{Name: "path", Kind: KindPositional, Required: true},
		}},
		Handler:     handleForget,
		InverseKind: Physical,
	})
}

// handleForget removes paths from the active session's manifest
// without touching the working copy (spec §4.6: "forget (paths) —
// mark tracked paths untracked without touching disk. Inverse:
// physical"). Forgetting a path that was never tracked is a no-op,
// not an error, matching the teacher's git commands' tolerance for a
// redundant operation.
func handleForget(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	if !sc.SessionExists {
		return HandlerOutput{}, verr.Domainf("project: no active session")
	}
	manifest, err := sc.CurrentManifest(tx)
	if err != nil {
		return HandlerOutput{}, err
	}

	for _, p := range args.Positionals {
		manifest = removeManifestEntry(manifest, p)
	}

	manifestHash, manifestData := objects.Encode(manifest)
	if err := tx.PutObject(manifestHash, manifestData); err != nil {
		return HandlerOutput{}, err
	}
	sess := sc.Session
	sess.ManifestHash = manifestHash
	settingsHash, err := sc.stageSession(tx, sess)
	if err != nil {
		return HandlerOutput{}, err
	}

	after := sc.Pointers
	after.SettingsHash = objects.SomeHash(settingsHash)

	return HandlerOutput{
		Result: Result{Text: "forgot " + pathsText(args.Positionals)},
		After:  after,
	}, nil
}
