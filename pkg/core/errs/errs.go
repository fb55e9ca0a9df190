// Package errs defines the error kinds returned by the dispatch engines.
//
// Every engine operation fails with a single *Error whose Kind is one of the
// sentinel values below, so callers can branch with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrDeletionImpossible = errors.New("deletion impossible")
	ErrUnauthorized       = errors.New("not authorized")
	ErrLogic              = errors.New("invalid operation")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidValue       = errors.New("invalid value")
	ErrEngine             = errors.New("engine failure")
)

// Error carries an error kind, a message naming the offending entity or field,
// and an optional underlying cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func New(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind error, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...any) *Error {
	return New(ErrNotFound, format, args...)
}

func Logic(format string, args ...any) *Error {
	return New(ErrLogic, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return New(ErrUnauthorized, format, args...)
}

func Validation(field string, format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Msg: field + ": " + fmt.Sprintf(format, args...)}
}

// IsKnown reports whether err already carries one of the engine kinds
func IsKnown(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// Engine wraps an unexpected collaborator failure unless it already carries a kind
func Engine(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if IsKnown(err) {
		return err
	}
	return Wrap(ErrEngine, err, format, args...)
}

var kindNames = []struct {
	kind error
	name string
}{
	{ErrNotFound, "not_found"},
	{ErrAlreadyExists, "already_exists"},
	{ErrDeletionImpossible, "deletion_impossible"},
	{ErrUnauthorized, "unauthorized"},
	{ErrLogic, "logic"},
	{ErrValidation, "validation"},
	{ErrInvalidValue, "invalid_value"},
	{ErrEngine, "engine"},
}

// KindName returns a short label for the kind carried by err: "ok" for nil,
// "unknown" when err carries no kind.
func KindName(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "unknown"
}
