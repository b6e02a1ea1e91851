package stage

import (
	"errors"
	"fmt"
)

// ErrorKind classifies terminal pipeline errors.
type ErrorKind int

const (
	KindConfig ErrorKind = iota + 1
	KindIO
	KindTask
	KindFormat
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindIO:
		return "io"
	case KindTask:
		return "task"
	case KindFormat:
		return "format"
	default:
		return "unknown"
	}
}

// Error is a stage failure. Error() renders a single line; the kind and the
// wrapped cause stay available through errors.As and errors.Is.
type Error struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return sanitizeErrorMessage(fmt.Sprintf("%s: %v", e.Stage, e.Err))
}

func (e *Error) Unwrap() error { return e.Err }

// Exit codes reported by the CLI for each error kind.
const (
	ExitCodeFailure = 1
	ExitCodeConfig  = 2
	ExitCodeIO      = 3
	ExitCodeTask    = 4
	ExitCodeFormat  = 5
)

// ExitCode maps the error kind to the process exit status.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindConfig:
		return ExitCodeConfig
	case KindIO:
		return ExitCodeIO
	case KindTask:
		return ExitCodeTask
	case KindFormat:
		return ExitCodeFormat
	default:
		return ExitCodeFailure
	}
}

// NewError wraps err as a failure of the named step. Commands use it for
// failures outside the pipeline so they share its exit codes.
func NewError(kind ErrorKind, step string, err error) *Error {
	return newError(kind, step, err)
}

func newError(kind ErrorKind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

func configErrorf(stage, format string, args ...any) *Error {
	return newError(KindConfig, stage, fmt.Errorf(format, args...))
}

// KindOf returns the kind of a stage error, or 0 for other errors.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
