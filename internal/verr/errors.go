// Package verr defines Vex's error taxonomy (spec §7) and maps each
// kind to the CLI exit code cmd/vex reports.
package verr

import (
	"github.com/pkg/errors"
)

// Kind is one of the fixed error categories the spec names. It governs
// whether a mutating command aborts its transaction and what exit code
// the CLI reports, not how the message reads.
type Kind int

const (
	// KindUsage: malformed invocation; never touches the repository.
	KindUsage Kind = iota
	// KindDomain: a precondition was violated (commit with no changes,
	// branch:new on an existing name). Always triggers abort.
	KindDomain
	// KindIO: underlying filesystem failure. Triggers abort.
	KindIO
	// KindCorruptObject: a CAS read produced bytes whose hash doesn't
	// match its name, or an ActionRecord's prev doesn't chain.
	// Read-only commands report and continue; mutating commands abort.
	KindCorruptObject
	// KindConcurrentWriter: the exclusive lock was unavailable.
	KindConcurrentWriter
	// KindRecoverableHalt: the process found a half-applied transaction
	// at startup. Not user-facing unless recovery itself failed.
	KindRecoverableHalt
)

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage_error"
	case KindDomain:
		return "domain_error"
	case KindIO:
		return "io_error"
	case KindCorruptObject:
		return "corrupt_object"
	case KindConcurrentWriter:
		return "concurrent_writer"
	case KindRecoverableHalt:
		return "recoverable_halt"
	default:
		return "unknown_error"
	}
}

// ExitCode maps a Kind to the process exit code cmd/vex returns, per
// spec §6: 1 on DomainError, 2 on usage error, 3 on IOError or
// CorruptObject, 4 on ConcurrentWriter.
func (k Kind) ExitCode() int {
	switch k {
	case KindUsage:
		return 2
	case KindDomain:
		return 1
	case KindIO, KindCorruptObject:
		return 3
	case KindConcurrentWriter:
		return 4
	case KindRecoverableHalt:
		return 0
	default:
		return 1
	}
}

// Error wraps an underlying cause with a Kind, so callers can branch on
// category without string-matching messages.
type Error struct {
	kind  Kind
	cause error
}

func (e *Error) Error() string { return e.cause.Error() }
func (e *Error) Cause() error  { return e.cause }
func (e *Error) Unwrap() error { return e.cause }
func (e *Error) Kind() Kind    { return e.kind }

// Abortable reports whether an error of this kind requires the active
// transaction to abort rather than continue (§7: CorruptObject aborts
// only for mutating commands; callers that know they're read-only
// should not call Abortable at all).
func (e *Error) Abortable() bool {
	switch e.kind {
	case KindDomain, KindIO, KindCorruptObject:
		return true
	default:
		return false
	}
}

func newKind(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, cause: errors.Errorf(format, args...)}
}

func wrapKind(kind Kind, cause error, msg string) *Error {
	return &Error{kind: kind, cause: errors.Wrap(cause, msg)}
}

func Usagef(format string, args ...interface{}) *Error {
	return newKind(KindUsage, format, args...)
}

func Domainf(format string, args ...interface{}) *Error {
	return newKind(KindDomain, format, args...)
}

func IO(cause error, msg string) *Error {
	return wrapKind(KindIO, cause, msg)
}

func IOf(format string, args ...interface{}) *Error {
	return newKind(KindIO, format, args...)
}

func CorruptObject(cause error, msg string) *Error {
	return wrapKind(KindCorruptObject, cause, msg)
}

func CorruptObjectf(format string, args ...interface{}) *Error {
	return newKind(KindCorruptObject, format, args...)
}

func ConcurrentWriter(cause error) *Error {
	return wrapKind(KindConcurrentWriter, cause, "repository is locked by another process")
}

func RecoverableHalt(cause error, msg string) *Error {
	return wrapKind(KindRecoverableHalt, cause, msg)
}

// As reports whether err (or something it wraps) is a *Error, mirroring
// the standard errors.As contract.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it (or something it wraps) is a
// *Error, or KindIO as the conservative default for an opaque error —
// an unrecognized failure is treated as an I/O failure so it still
// triggers abort rather than silently continuing.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.kind
	}
	return KindIO
}
