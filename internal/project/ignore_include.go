package project

import (
	"context"

	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
)

func init() {
	Register(Entry{
		Name:        "ignore",
		Schema:      ArgSchema{Params: []ParamSpec{{Name: "pattern", Kind: KindPositional, Required: true}}},
		Handler:     handleIgnore,
		InverseKind: Physical,
	})
	Register(Entry{
		Name:        "include",
		Schema:      ArgSchema{Params: []ParamSpec{{Name: "pattern", Kind: KindPositional, Required: true}}},
		Handler:     handleInclude,
		InverseKind: Physical,
	})
}

// handleIgnore appends patterns to Settings.IgnorePatterns (spec
// §4.6: "ignore / include (patterns) — update Settings. Inverse:
// physical"). A pattern already present is not duplicated.
func handleIgnore(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	return updatePatterns(tx, sc, args.Positionals, func(s *objects.Settings, pats []string) {
		s.IgnorePatterns = appendNewPatterns(s.IgnorePatterns, pats)
	})
}

// handleInclude appends patterns to Settings.IncludePatterns.
func handleInclude(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	return updatePatterns(tx, sc, args.Positionals, func(s *objects.Settings, pats []string) {
		s.IncludePatterns = appendNewPatterns(s.IncludePatterns, pats)
	})
}

func appendNewPatterns(existing []string, add []string) []string {
	seen := map[string]bool{}
	for _, p := range existing {
		seen[p] = true
	}
	out := append([]string{}, existing...)
	for _, p := range add {
		if !seen[p] {
			out = append(out, p)
			seen[p] = true
		}
	}
	return out
}

func updatePatterns(tx *txn.Transaction, sc sessionContext, patterns []string, mutate func(*objects.Settings, []string)) (HandlerOutput, error) {
	settings := sc.Settings
	mutate(&settings, patterns)
	settingsHash, err := stageSettings(tx, settings)
	if err != nil {
		return HandlerOutput{}, err
	}

	after := sc.Pointers
	after.SettingsHash = objects.SomeHash(settingsHash)

	return HandlerOutput{
		Result: Result{Text: "updated patterns: " + pathsText(patterns)},
		After:  after,
	}, nil
}
