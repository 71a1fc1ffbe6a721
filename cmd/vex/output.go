package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/project"
	"github.com/kurobon/vex/internal/verr"
)

// exitCodeFor maps an error to the process exit code spec §6 fixes:
// 1 DomainError, 2 UsageError, 3 IOError/CorruptObject,
// 4 ConcurrentWriter, 0 if recovery alone explained the situation.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if e, ok := verr.As(err); ok {
		return e.Kind().ExitCode()
	}
	// An error cobra itself raised (bad flag, unknown subcommand) before
	// ever reaching project.Dispatch.
	return 2
}

func formatError(err error) string {
	if e, ok := verr.As(err); ok {
		return fmt.Sprintf("vex: %s: %s", e.Kind(), e.Error())
	}
	return "vex: " + err.Error()
}

// colorWriter returns stdout/stderr wrapped for ANSI color unless
// NO_COLOR is set or the stream isn't a terminal (spec §6: "honors
// NO_COLOR for formatting").
func colorWriter(f *os.File) io.Writer {
	if os.Getenv("NO_COLOR") != "" {
		return colorable.NewNonColorable(f)
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return colorable.NewNonColorable(f)
	}
	return colorable.NewColorable(f)
}

const (
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiReset = "\x1b[0m"
)

// renderResult prints a command's Result either as plain text or, if
// jsonOut is set, as a single canonical JSON document on stdout and
// nothing on stderr on success (spec §6 "Scripting output").
func renderResult(jsonOut bool, command string, res project.Result) {
	if jsonOut {
		doc := codec.Obj(map[string]codec.Value{
			"ok":      codec.Bool(true),
			"command": codec.Str(command),
			"text":    codec.Str(res.Text),
			"data":    nonNull(res.Data),
		})
		fmt.Fprintln(os.Stdout, string(codec.Encode(doc)))
		return
	}
	w := colorWriter(os.Stdout)
	fmt.Fprintln(w, res.Text)
}

// renderJSONError emits the --json failure document spec §6 implies
// by symmetry with the success document; used only when --json was
// requested, so a scripted caller never has to branch on whether the
// command succeeded to find its JSON on stdout.
func renderJSONError(command string, err error) {
	kind := "unknown_error"
	if e, ok := verr.As(err); ok {
		kind = e.Kind().String()
	}
	doc := codec.Obj(map[string]codec.Value{
		"ok":      codec.Bool(false),
		"command": codec.Str(command),
		"error":   codec.Str(err.Error()),
		"kind":    codec.Str(kind),
	})
	fmt.Fprintln(os.Stdout, string(codec.Encode(doc)))
}

func nonNull(v codec.Value) codec.Value {
	if v.IsNull() {
		return codec.Arr()
	}
	return v
}
