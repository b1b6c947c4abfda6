// Package memerr defines the error taxonomy shared by all memorix
// components. Every failure surfaced to a tool caller carries one of the
// Kind tags below so the MCP layer can shape a structured error object.
package memerr

import (
	"errors"
	"fmt"
)

// Kind tags a class of failure.
type Kind string

const (
	// KindInvalidProject means project detection returned the __invalid__
	// sentinel and the engine refuses to serve.
	KindInvalidProject Kind = "InvalidProject"

	// KindLockTimeout means lock acquisition exceeded its retry budget and
	// the force-retake also failed. No partial write occurred.
	KindLockTimeout Kind = "LockTimeout"

	// KindIntegrityError means a durable file exists but failed to parse.
	// Missing files are treated as empty and never produce this kind.
	KindIntegrityError Kind = "IntegrityError"

	// KindNotFound means a requested observation or session id does not exist.
	KindNotFound Kind = "NotFound"

	// KindConflict means an operation is invalid for the current state,
	// e.g. ending an already-completed session.
	KindConflict Kind = "Conflict"

	// KindEmbeddingUnavailable means vector search was explicitly requested
	// but no embedding provider is active.
	KindEmbeddingUnavailable Kind = "EmbeddingUnavailable"

	// KindDimensionMismatch means a provider returned vectors that disagree
	// with its declared dimensionality. Fatal for the provider.
	KindDimensionMismatch Kind = "DimensionMismatch"
)

// Error is a kinded error. Op and Path are set for filesystem failures so
// the caller sees what was being done where; they stay empty otherwise.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Op, e.Path, e.Err)
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is match on Kind, so sentinel comparisons like
// errors.Is(err, memerr.New(memerr.KindNotFound, "")) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New creates a kinded error with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a kinded error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapFS wraps a filesystem error with the operation and path. The kind is
// left as IntegrityError only when the caller says so; plain IO errors keep
// an empty kind tag and propagate untranslated.
func WrapFS(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf extracts the Kind from an error chain, or "" when untagged.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
