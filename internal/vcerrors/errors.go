// Package vcerrors defines the error taxonomy shared by the repository
// engine and its callers (CLI, agent, tool server).
package vcerrors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindAlreadyExists  Kind = "ALREADY_EXISTS"
	KindNotInitialized Kind = "NOT_INITIALIZED"
	KindValidation     Kind = "VALIDATION"
	KindNotFound       Kind = "NOT_FOUND"
	KindNoCommits      Kind = "NO_COMMITS"
	KindCorrupt        Kind = "CORRUPT_REPOSITORY"
	KindStorage        Kind = "STORAGE"
)

// Error carries the failure kind plus enough context to render a precise
// user-facing message: the operation, the reference or field implicated.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "commit", "resolve"
	Ref     string // unresolved reference, if any
	Field   string // offending prompt field, if any
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Ref != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Ref, msg)
	case e.Field != "":
		return fmt.Sprintf("%s: field %q: %s", e.Op, e.Field, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes two *Error values match when their kinds match, so callers can
// test against the kind sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Ref == "" && t.Field == "" && t.Message == ""
}

// Kind sentinels for errors.Is checks.
var (
	ErrAlreadyExists  = &Error{Kind: KindAlreadyExists}
	ErrNotInitialized = &Error{Kind: KindNotInitialized}
	ErrValidation     = &Error{Kind: KindValidation}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrNoCommits      = &Error{Kind: KindNoCommits}
	ErrCorrupt        = &Error{Kind: KindCorrupt}
	ErrStorage        = &Error{Kind: KindStorage}
)

func AlreadyExists(op, path string) *Error {
	return &Error{Kind: KindAlreadyExists, Op: op, Message: fmt.Sprintf("repository already exists at %s", path)}
}

func NotInitialized(op string) *Error {
	return &Error{Kind: KindNotInitialized, Op: op, Message: "repository not initialized, run 'promptvc init' first"}
}

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Op: "validate", Field: field, Message: message}
}

func NotFound(op, ref string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Ref: ref, Message: "reference not found"}
}

func NoCommits(op string) *Error {
	return &Error{Kind: KindNoCommits, Op: op, Message: "no commits exist yet"}
}

func Corrupt(op, message string, err error) *Error {
	return &Error{Kind: KindCorrupt, Op: op, Message: message, Err: err}
}

func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// KindOf returns the kind of err if it is (or wraps) an *Error, or "" otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
