// Package apperr defines the error kinds surfaced by the handoff service.
//
// Every kind has a sentinel usable with errors.Is; concrete errors carry a
// message and compare equal to the sentinel of their kind.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindImmutableField      Kind = "immutable_field_violation"
	KindAppendOnly          Kind = "append_only_violation"
	KindInvalidTransition   Kind = "invalid_transition"
	KindAlreadyAcknowledged Kind = "already_acknowledged"
	KindNotAuthorized       Kind = "not_authorized"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindDeliveryFailure     Kind = "delivery_failure"
	KindStaleSubscription   Kind = "stale_subscription"
)

// Error is a classified error.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrImmutableField      = &Error{Kind: KindImmutableField}
	ErrAppendOnly          = &Error{Kind: KindAppendOnly}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition}
	ErrAlreadyAcknowledged = &Error{Kind: KindAlreadyAcknowledged}
	ErrNotAuthorized       = &Error{Kind: KindNotAuthorized}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrDeliveryFailure     = &Error{Kind: KindDeliveryFailure}
	ErrStaleSubscription   = &Error{Kind: KindStaleSubscription}
)

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
