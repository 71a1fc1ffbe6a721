package project

import (
	"context"

	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

func init() {
	Register(Entry{
		Name: "purge",
		Schema: ArgSchema{Params: []ParamSpec{
			{Name: "path", Kind: KindRepeatable},
			{Name: "commit", Kind: KindRepeatable},
		}},
		Handler:     handlePurge,
		InverseKind: Physical,
	})
}

// handlePurge selects ModePurgePaths or ModePurgeCommits by which
// option was given (spec §4.6: "purge (paths or commits)") and runs
// the matching Strategy. Its inverse is physical: Settings-as-ref-root
// means restoring the old SettingsHash alone restores every branch
// head purge moved, exactly spec §9's "undo restores the pre-purge
// action-log head and branch heads".
func handlePurge(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	paths := args.Repeated("path")
	commits := args.Repeated("commit")
	if len(paths) == 0 && len(commits) == 0 {
		return HandlerOutput{}, verr.Usagef("project: purge requires --path or --commit")
	}

	var strat Strategy
	if len(commits) > 0 {
		targets := map[codec.Hash]bool{}
		for _, c := range commits {
			h, err := parseHash(c)
			if err != nil {
				return HandlerOutput{}, err
			}
			targets[h] = true
		}
		strat = purgeStrategy{splice: targets}
	} else {
		pathSet := map[string]bool{}
		for _, p := range paths {
			pathSet[p] = true
		}
		strat = purgeStrategy{paths: pathSet}
	}

	return strat.Execute(ctx, &StrategyContext{Repo: r, Tx: tx, Session: sc, Args: args})
}

// purgeStrategy rewrites every branch's commit chain, either dropping
// specific paths from every tree along the way (ModePurgePaths) or
// splicing specific commits out of the chain entirely, re-parenting
// their children (ModePurgeCommits). Exactly one of paths/splice is
// populated per invocation.
type purgeStrategy struct {
	paths  map[string]bool
	splice map[codec.Hash]bool
}

// rewriteResult is what rewriting one old commit along a chain
// produces: the new commit's hash plus the tree/changelog hashes the
// next commit in the chain needs as its own diff base.
type rewriteResult struct {
	hash          codec.Hash
	treeHash      codec.Hash
	changelogHash codec.Hash
}

func (s purgeStrategy) Execute(ctx context.Context, sc *StrategyContext) (HandlerOutput, error) {
	tx := sc.Tx
	rewritten := map[codec.Hash]rewriteResult{}
	// spliced maps a purged commit's old hash to what its children
	// should treat as their new parent (the nearest surviving ancestor's
	// rewriteResult, or ok=false if everything back to the root was
	// purged and the chain grows a fresh, parentless commit next).
	spliced := map[codec.Hash]rewriteResult{}
	splicedToRoot := map[codec.Hash]bool{}

	newBranches := sc.Session.Branches
	for _, ref := range newBranches.Refs {
		branch, err := getBranch(tx, ref.Hash)
		if err != nil {
			return HandlerOutput{}, err
		}
		if !branch.HeadHash.Set {
			continue
		}
		chain, err := collectChain(tx, branch.HeadHash.Hash)
		if err != nil {
			return HandlerOutput{}, err
		}

		var prev rewriteResult
		havePrev := false
		for _, oldHash := range chain {
			if rr, ok := rewritten[oldHash]; ok {
				prev, havePrev = rr, true
				continue
			}
			if rr, ok := spliced[oldHash]; ok {
				prev, havePrev = rr, true
				continue
			}
			if splicedToRoot[oldHash] {
				havePrev = false
				continue
			}

			if s.splice[oldHash] {
				if havePrev {
					spliced[oldHash] = prev
				} else {
					splicedToRoot[oldHash] = true
				}
				continue
			}

			old, err := getCommit(tx, oldHash)
			if err != nil {
				return HandlerOutput{}, err
			}

			var parentOpt objects.OptHash
			var parentTreeHash, parentChangelogHash codec.Hash
			if havePrev {
				parentOpt = objects.SomeHash(prev.hash)
				parentTreeHash = prev.treeHash
				parentChangelogHash = prev.changelogHash
			} else {
				parentOpt = objects.NoHash()
				parentTreeHash, err = stageEmptyTree(tx)
				if err != nil {
					return HandlerOutput{}, err
				}
				emptyChangelog := objects.ChangelogEntry{Prev: objects.NoHash()}
				var data []byte
				parentChangelogHash, data = objects.Encode(emptyChangelog)
				if err := tx.PutObject(parentChangelogHash, data); err != nil {
					return HandlerOutput{}, err
				}
			}

			newTreeHash := old.RootTreeHash
			if len(s.paths) > 0 {
				newTreeHash, err = removeTreePaths(tx, old.RootTreeHash, s.paths)
				if err != nil {
					return HandlerOutput{}, err
				}
			}

			ops, err := diffTrees(tx, objects.SomeHash(parentTreeHash), objects.SomeHash(newTreeHash))
			if err != nil {
				return HandlerOutput{}, err
			}
			changelog := objects.ChangelogEntry{Prev: objects.SomeHash(parentChangelogHash), Ops: ops}
			changelogHash, changelogData := objects.Encode(changelog)
			if err := tx.PutObject(changelogHash, changelogData); err != nil {
				return HandlerOutput{}, err
			}

			newCommit := objects.Commit{
				Parent:             parentOpt,
				RootTreeHash:       newTreeHash,
				AuthorUUID:         old.AuthorUUID,
				TimestampApplied:   old.TimestampApplied,
				TimestampWritten:   old.TimestampWritten,
				Message:            old.Message,
				ChangelogEntryHash: changelogHash,
				Kind_:              objects.CommitReplay,
			}
			newHash, newData := objects.Encode(newCommit)
			if err := tx.PutObject(newHash, newData); err != nil {
				return HandlerOutput{}, err
			}

			rr := rewriteResult{hash: newHash, treeHash: newTreeHash, changelogHash: changelogHash}
			rewritten[oldHash] = rr
			prev, havePrev = rr, true
		}

		var newHeadHash objects.OptHash
		if havePrev {
			newHeadHash = objects.SomeHash(prev.hash)
		} else {
			newHeadHash = objects.NoHash()
		}
		if newHeadHash == branch.HeadHash {
			continue
		}
		branch.HeadHash = newHeadHash
		bHash, bData := objects.Encode(branch)
		if err := tx.PutObject(bHash, bData); err != nil {
			return HandlerOutput{}, err
		}
		newBranches = newBranches.With(branch.Name, bHash)
	}

	branchesHash, err := stageBranchesTable(tx, newBranches)
	if err != nil {
		return HandlerOutput{}, err
	}
	newSettings := sc.Session.Settings
	newSettings.BranchesTableHash = objects.SomeHash(branchesHash)
	settingsHash, err := stageSettings(tx, newSettings)
	if err != nil {
		return HandlerOutput{}, err
	}

	after := sc.Session.Pointers
	after.SettingsHash = objects.SomeHash(settingsHash)

	return HandlerOutput{Result: Result{Text: "purged"}, After: after}, nil
}

// collectChain walks Parent pointers from head back to the root
// commit, returning hashes oldest-first so a rewrite pass can build
// each new commit on top of its already-rewritten parent.
func collectChain(tx *txn.Transaction, head codec.Hash) ([]codec.Hash, error) {
	var chain []codec.Hash
	cur := head
	for {
		chain = append(chain, cur)
		c, err := getCommit(tx, cur)
		if err != nil {
			return nil, err
		}
		if !c.Parent.Set {
			break
		}
		cur = c.Parent.Hash
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// removeTreePaths flattens root, drops every entry purge's path set
// names, and rebuilds the tree from what remains.
func removeTreePaths(tx *txn.Transaction, root codec.Hash, paths map[string]bool) (codec.Hash, error) {
	flat, err := flattenTree(tx, "", objects.SomeHash(root))
	if err != nil {
		return codec.Hash{}, err
	}
	for p := range paths {
		delete(flat, p)
	}
	return buildTreeFromFlat(tx, flat)
}
