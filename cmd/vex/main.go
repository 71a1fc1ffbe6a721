// Command vex is the CLI front end for the Vex storage engine: it
// resolves a repository root, wires a Repo against the real
// filesystem, dispatches one command through internal/project, and
// maps the result (or error) to stdout/stderr and an exit code per
// spec §6.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	root := newRootCommand(logger)
	root.SetArgs(argv)

	if err := root.ExecuteContext(context.Background()); err != nil {
		w := colorWriter(os.Stderr)
		fmt.Fprintln(w, ansiRed+formatError(err)+ansiReset)
		return exitCodeFor(err)
	}
	return 0
}

// newLogger defaults to WarnLevel: spec §6's "--json produces a
// single canonical JSON document on stdout and nothing on stderr on
// success" rules out the per-dispatch Info logging internal/project
// does by default. VEX_DEBUG=1 turns it back on for troubleshooting.
func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	level := zap.WarnLevel
	if os.Getenv("VEX_DEBUG") != "" {
		level = zap.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
