// Package toolerr defines the tagged error type shared by every tool-level
// operation. Errors never escape a tool handler as protocol faults; the
// tools layer folds them back into the flat result records the caller sees.
package toolerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by what the calling workflow should do with it.
type Kind string

const (
	// Validation means the input was rejected before any external call.
	Validation Kind = "validation"
	// Dependency means an external component (compiler command, converter
	// script, interpreter binary) could not be located at all.
	Dependency Kind = "dependency_unavailable"
	// External means an external component ran and reported failure.
	External Kind = "external_failure"
	// IO means a filesystem write or copy failed.
	IO Kind = "io_failure"
	// Advisory marks non-fatal failures (staging copies). Advisories are
	// recorded in the result and never stop the workflow.
	Advisory Kind = "advisory"
)

// Error is a failure tagged with its kind. Component operations return
// (values, *Error); nil means success.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// New builds a tagged error from a format string.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of err, or "" for nil or untagged errors.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
