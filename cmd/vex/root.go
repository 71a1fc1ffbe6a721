package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kurobon/vex/internal/project"
	"github.com/kurobon/vex/internal/verr"
)

// newRootCommand builds the cobra tree: one subcommand per registered
// project command name (§9's "fixed registry ... new commands are
// added by extending the table, not by metaprogramming" — cobra's
// tree here is purely a colon-aware dispatcher over that table, never
// a second source of command definitions), plus the `fake`/`debug`
// meta-commands and `init`, which needs a repository-root positional
// the registry schema itself doesn't carry.
func newRootCommand(logger *zap.Logger) *cobra.Command {
	var jsonOut bool

	root := &cobra.Command{
		Use:           "vex",
		Short:         "Vex: an undoable version-control storage engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit a single canonical JSON document on stdout")

	root.AddCommand(newInitCommand(logger, &jsonOut))
	root.AddCommand(newFakeCommand(logger, &jsonOut))
	root.AddCommand(newDebugCommand(logger, &jsonOut))
	root.AddCommand(newCommitPrepareCommand(logger, &jsonOut))

	for _, name := range project.Names() {
		if name == "init" || name == "commit:prepare" {
			continue // handled above: both need a CLI-level concern the
			// registry schema itself doesn't carry (a target path; a
			// --watch loop over an external directory-watch facility).
		}
		entry, _ := project.Lookup(name)
		if entry.Internal {
			continue // replay-only target for a logical inverse, not part
			// of the documented command catalog.
		}
		root.AddCommand(newRegistryCommand(name, logger, &jsonOut))
	}
	return root
}

// newRegistryCommand wraps one project.Entry as a cobra leaf: flag
// parsing is disabled so every token after the command name reaches
// project.ParseTokens unchanged, which is what enforces spec §6's four
// argument shapes and its "unknown arguments are a hard error" rule —
// cobra/pflag's own flag grammar never gets a vote.
func newRegistryCommand(name string, logger *zap.Logger, jsonOut *bool) *cobra.Command {
	entry, _ := project.Lookup(name)
	return &cobra.Command{
		Use:                name,
		Short:              "vex " + name,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, rawArgs []string) error {
			args, err := project.ParseTokens(entry.Schema, rawArgs)
			if err != nil {
				return renderOrReturn(*jsonOut, name, project.Result{}, err)
			}
			r, cleanup, err := openRepo(cmd.Context(), logger)
			if err != nil {
				return renderOrReturn(*jsonOut, name, project.Result{}, err)
			}
			defer cleanup()
			res, err := project.Dispatch(cmd.Context(), r, name, args)
			return renderOrReturn(*jsonOut, name, res, err)
		},
	}
}

func newInitCommand(logger *zap.Logger, jsonOut *bool) *cobra.Command {
	entry, _ := project.Lookup("init")
	return &cobra.Command{
		Use:                "init [path]",
		Short:              "vex init",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, rawArgs []string) error {
			path := "."
			rest := rawArgs
			if len(rawArgs) > 0 && !strings.HasPrefix(rawArgs[0], "--") {
				path, rest = rawArgs[0], rawArgs[1:]
			}
			args, err := project.ParseTokens(entry.Schema, rest)
			if err != nil {
				return renderOrReturn(*jsonOut, "init", project.Result{}, err)
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return renderOrReturn(*jsonOut, "init", project.Result{}, verr.IO(err, "vex: resolve init path"))
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return renderOrReturn(*jsonOut, "init", project.Result{}, verr.IO(err, "vex: create repository directory"))
			}
			r, err := project.Open(abs, logger)
			if err != nil {
				return renderOrReturn(*jsonOut, "init", project.Result{}, err)
			}
			res, err := project.Dispatch(cmd.Context(), r, "init", args)
			return renderOrReturn(*jsonOut, "init", res, err)
		},
	}
}

// newFakeCommand implements `vex fake <command> [args...]` (spec
// §4.7): the inner command runs through the full transaction layer but
// is always aborted, so nothing it would have written is kept.
func newFakeCommand(logger *zap.Logger, jsonOut *bool) *cobra.Command {
	return &cobra.Command{
		Use:                "fake",
		Short:              "run a command through the transaction layer, then discard it",
		DisableFlagParsing: true,
		Args:               cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, rawArgs []string) error {
			name, rest := rawArgs[0], rawArgs[1:]
			entry, ok := project.Lookup(name)
			if !ok {
				return renderOrReturn(*jsonOut, name, project.Result{}, verr.Usagef("%q is not a recognized command", name))
			}
			args, err := project.ParseTokens(entry.Schema, rest)
			if err != nil {
				return renderOrReturn(*jsonOut, name, project.Result{}, err)
			}
			r, cleanup, err := openRepo(cmd.Context(), logger)
			if err != nil {
				return renderOrReturn(*jsonOut, name, project.Result{}, err)
			}
			defer cleanup()
			res, err := project.DispatchFake(cmd.Context(), r, name, args)
			return renderOrReturn(*jsonOut, name, res, err)
		},
	}
}

// newDebugCommand implements `vex debug <command> [args...]` (spec
// §4.7): the automatic rollback-on-DomainError is suppressed, leaving
// the half-applied transaction parked for `debug:rollback` to inspect.
func newDebugCommand(logger *zap.Logger, jsonOut *bool) *cobra.Command {
	return &cobra.Command{
		Use:                "debug",
		Short:              "run a command with automatic rollback-on-error disabled",
		DisableFlagParsing: true,
		Args:               cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, rawArgs []string) error {
			name, rest := rawArgs[0], rawArgs[1:]
			entry, ok := project.Lookup(name)
			if !ok {
				return renderOrReturn(*jsonOut, name, project.Result{}, verr.Usagef("%q is not a recognized command", name))
			}
			args, err := project.ParseTokens(entry.Schema, rest)
			if err != nil {
				return renderOrReturn(*jsonOut, name, project.Result{}, err)
			}
			root, err := resolveRoot()
			if err != nil {
				return renderOrReturn(*jsonOut, name, project.Result{}, err)
			}
			r, err := project.Open(root, logger)
			if err != nil {
				return renderOrReturn(*jsonOut, name, project.Result{}, err)
			}
			res, err := project.DispatchDebug(cmd.Context(), r, name, args)
			return renderOrReturn(*jsonOut, name, res, err)
		},
	}
}

// newCommitPrepareCommand handles `commit:prepare [--watch] [args...]`.
// --watch is a CLI-level concern (spec §9's design note: "a finite
// loop that, on each filesystem change notification, runs a full
// transactional commit:prepare. No cross-transaction state is retained
// in memory"), so it's stripped out here before the remaining tokens
// reach project.ParseTokens against commit:prepare's own schema.
func newCommitPrepareCommand(logger *zap.Logger, jsonOut *bool) *cobra.Command {
	const name = "commit:prepare"
	entry, _ := project.Lookup(name)
	return &cobra.Command{
		Use:                name,
		Short:              "vex " + name,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, rawArgs []string) error {
			watch, rest := extractWatchFlag(rawArgs)
			args, err := project.ParseTokens(entry.Schema, rest)
			if err != nil {
				return renderOrReturn(*jsonOut, name, project.Result{}, err)
			}
			r, cleanup, err := openRepo(cmd.Context(), logger)
			if err != nil {
				return renderOrReturn(*jsonOut, name, project.Result{}, err)
			}
			defer cleanup()

			if !watch {
				res, err := project.Dispatch(cmd.Context(), r, name, args)
				return renderOrReturn(*jsonOut, name, res, err)
			}
			return runCommitPrepareWatch(cmd.Context(), r, args, *jsonOut)
		},
	}
}

// extractWatchFlag pulls a bare --watch or --watch=true|false token out
// of rawArgs, since it never reaches the registry's own ArgSchema.
func extractWatchFlag(rawArgs []string) (watch bool, rest []string) {
	for _, a := range rawArgs {
		switch a {
		case "--watch", "--watch=true":
			watch = true
		case "--watch=false":
			watch = false
		default:
			rest = append(rest, a)
		}
	}
	return watch, rest
}

// resolveRoot finds the repository root from VEX_REPO or by walking
// upward from the working directory (spec §6/§9).
func resolveRoot() (string, error) {
	if v := os.Getenv("VEX_REPO"); v != "" {
		return v, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", verr.IO(err, "vex: resolve working directory")
	}
	return project.FindRoot(cwd)
}

// openRepo resolves the repository root, wires a Repo, and runs
// startup crash recovery (spec §4.4) before returning control to the
// caller. The returned func is always safe to defer; it exists only
// so callers have one symmetric cleanup point even though Repo itself
// holds no long-lived handle worth closing explicitly.
func openRepo(ctx context.Context, logger *zap.Logger) (*project.Repo, func(), error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, func() {}, err
	}
	r, err := project.Open(root, logger)
	if err != nil {
		return nil, func() {}, err
	}
	if result, err := r.Recover(); err != nil {
		return nil, func() {}, err
	} else if result.Found {
		logger.Info("recovered pending transaction", zap.Bool("rolled_forward", result.Finished))
	}
	return r, func() {}, nil
}

// renderOrReturn prints a successful Result (or, under --json, a
// failure document too) and returns err unchanged so cobra's own
// error plumbing still drives the process exit code.
func renderOrReturn(jsonOut bool, command string, res project.Result, err error) error {
	if err != nil {
		if jsonOut {
			renderJSONError(command, err)
		}
		return err
	}
	renderResult(jsonOut, command, res)
	return nil
}
