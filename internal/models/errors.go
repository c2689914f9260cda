package models

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by services wraps exactly one of them.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrAuth          = errors.New("authentication error")
	ErrDependency    = errors.New("dependency error")
	ErrUnimplemented = errors.New("unimplemented")
)

// Error is a client-safe error message tagged with its kind
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Errorf builds an *Error of the given kind
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Code returns a stable machine-readable code for err
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAuth):
		return "auth_error"
	case errors.Is(err, ErrDependency):
		return "dependency_error"
	case errors.Is(err, ErrUnimplemented):
		return "unimplemented"
	default:
		return "internal_error"
	}
}

// PublicMessage returns the message of a tagged error, or a generic text for
// untagged (internal) errors so driver details never reach clients.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrValidation):
		return "invalid request"
	}
	return "internal error"
}
