// Package turtles holds the structured error type shared by every package of
// the runtime call-tracing and clustering framework. Trace intake and runtime
// options live in package trace.
package turtles

import (
	"errors"
	"fmt"
)

// Code categorizes an Error per §7.
type Code string

const (
	// CodeConfig covers bad commit modes and unparseable runtime options.
	// Fatal at init.
	CodeConfig Code = "configuration"
	// CodeStoreOpen covers file permission and corruption failures opening
	// the embedded store. Fatal at init.
	CodeStoreOpen Code = "store-open"
	// CodeStoreWrite covers a failed add_proc/add_call/update_call. Logged
	// and swallowed; the recorder keeps running.
	CodeStoreWrite Code = "store-write"
	// CodeFinalize covers a failed finalizer tick. Logged; the next tick
	// still runs.
	CodeFinalize Code = "finalize"
	// CodeMessage covers an invalid or misrouted k-machine message. Logged
	// with machine id and command; the worker continues.
	CodeMessage Code = "message"
	// CodeFork covers a failure in the pre/post-fork lifecycle dance.
	CodeFork Code = "fork"
)

// Error is the structured error type used throughout turtles. Op names the
// failing operation (e.g. "add_call", "finalize", "find_moe"); Code
// categorizes it per §7 so callers can decide whether to log-and-continue
// or treat it as fatal.
type Error struct {
	Op    string
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("turtles: %s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("turtles: %s", e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// NewError constructs an Error with no wrapped cause.
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WrapError wraps inner with operation and category context. Returns nil if
// inner is nil so call sites can write `return WrapError(op, code, err)`
// unguarded.
func WrapError(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a *Error of the given category.
func IsCode(err error, code Code) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}
