package mongosh

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures raised by the shell engine.
type ErrorKind int

const (
	ErrParse        ErrorKind = iota // input could not be parsed
	ErrInvalidState                  // cursor modified after execution
	ErrValidation                    // malformed arguments
	ErrExhaustion                    // next() on an empty cursor
	ErrNetwork                       // request gateway failure, already printed
)

func (e ErrorKind) String() string {
	switch e {
	case ErrParse:
		return "ParseError"
	case ErrInvalidState:
		return "InvalidStateError"
	case ErrValidation:
		return "ValidationError"
	case ErrExhaustion:
		return "ExhaustionError"
	case ErrNetwork:
		return "NetworkError"
	default:
		return "Unknown"
	}
}

// ShellError is a failure the engine raises to its caller. The REPL prints
// it as a single "ERROR: " line.
//
//nolint:govet // fieldalignment: readability preferred
type ShellError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func NewShellError(kind ErrorKind, msg string) *ShellError {
	return &ShellError{Kind: kind, Message: msg}
}

func (e *ShellError) Error() string {
	return e.Message
}

func (e *ShellError) Unwrap() error {
	return e.Err
}

// NetworkError is returned by the request gateway after it has already
// printed the failure to the shell. Callers must not print it again.
//
//nolint:govet // fieldalignment: readability preferred
type NetworkError struct {
	Name   string
	Status int
	Reason string
	Detail string
	Err    error
}

func (e *NetworkError) Kind() ErrorKind {
	return ErrNetwork
}

func (e *NetworkError) Error() string {
	msg := fmt.Sprintf("%s fail: %s", e.Name, e.Reason)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	return msg
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsReported reports whether err was already printed to the shell.
func IsReported(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// KindOf returns the engine error kind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var shellErr *ShellError
	if errors.As(err, &shellErr) {
		return shellErr.Kind, true
	}
	if IsReported(err) {
		return ErrNetwork, true
	}
	return 0, false
}

func errCursorExecuted() *ShellError {
	return NewShellError(ErrInvalidState, "cannot modify executed cursor")
}

func errExhausted() *ShellError {
	return NewShellError(ErrExhaustion, "Cursor does not have any more elements.")
}
