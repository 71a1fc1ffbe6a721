package project

import (
	"context"

	"github.com/kurobon/vex/internal/txn"
)

// Mode picks which Strategy a multi-mode command runs, mirroring the
// teacher's checkout.Mode (spec §4.6.2).
type Mode int

const (
	ModeSwitchPrefix Mode = iota
	ModeBranchOpenExisting
	ModeBranchOpenNew
	ModePurgePaths
	ModePurgeCommits
)

// StrategyContext holds the resolved state a Strategy needs, the
// generalization of the teacher's checkout.Context from a git worktree
// to Vex's session/manifest/branch triple.
type StrategyContext struct {
	Repo    *Repo
	Tx      *txn.Transaction
	Session sessionContext
	Args    Args
	DryRun  bool
}

// Strategy is one mode-specific implementation of switch, branch:open,
// or purge, selected by parsed options after Args validation.
type Strategy interface {
	Execute(ctx context.Context, sc *StrategyContext) (HandlerOutput, error)
}
