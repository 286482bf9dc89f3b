// Package apperr is the error taxonomy shared by the domain services and the
// HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuthorization     Kind = "authorization"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindConflict          Kind = "conflict"
)

// Error carries a kind, the i18n key shown to the user and a message for logs
// and API clients.
type Error struct {
	Kind    Kind
	Key     string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind) + ": " + e.Key
	}
	return string(e.Kind) + ": " + e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Key == "" && t.Kind == e.Kind
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrAuthorization     = &Error{Kind: KindAuthorization}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrConflict          = &Error{Kind: KindConflict}
)

func New(kind Kind, key, format string, args ...any) error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Key: key, Message: msg}
}

func NewValidationError(key, message string) error {
	return &Error{Kind: KindValidation, Key: key, Message: message}
}

func NewAuthorizationError(key, message string) error {
	return &Error{Kind: KindAuthorization, Key: key, Message: message}
}

func NewNotFoundError(key, message string) error {
	return &Error{Kind: KindNotFound, Key: key, Message: message}
}

func NewConflictError(key, message string) error {
	return &Error{Kind: KindConflict, Key: key, Message: message}
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
