// Package apperrors is the error-kind taxonomy of the matcher (spec §7):
// client-facing Invalid reasons, transient infrastructure failures, and the
// fatal InternalInvariant that forces a restart-from-snapshot.
package apperrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind tags which of spec.md §7's error classes an error belongs to, so
// HTTP handlers and the coordinator can classify without string matching.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindQueueUnavailable
	KindTimeout
	KindInsufficientBalance
	KindDuplicateOrder
	KindUnknownPair
	KindScriptDenied
	KindScriptError
	KindInternalInvariant
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "Invalid"
	case KindQueueUnavailable:
		return "QueueUnavailable"
	case KindTimeout:
		return "Timeout"
	case KindInsufficientBalance:
		return "InsufficientBalance"
	case KindDuplicateOrder:
		return "DuplicateOrder"
	case KindUnknownPair:
		return "UnknownPair"
	case KindScriptDenied:
		return "ScriptDenied"
	case KindScriptError:
		return "ScriptError"
	case KindInternalInvariant:
		return "InternalInvariant"
	default:
		return "Unknown"
	}
}

// Error is a classified, wrapped error: Kind drives HTTP status / exit-code
// mapping, Cause carries the stack context pkg/errors attaches so it
// survives an actor mailbox hop.
type Error struct {
	Kind   Kind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: errors.New(reason)}
}

func Wrap(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: errors.WithMessage(cause, reason)}
}

func Invalid(reason string) *Error              { return New(KindInvalid, reason) }
func QueueUnavailable(cause error) *Error       { return Wrap(KindQueueUnavailable, "queue unavailable", cause) }
func Timeout(reason string) *Error              { return New(KindTimeout, reason) }
func InsufficientBalance(reason string) *Error  { return New(KindInsufficientBalance, reason) }
func DuplicateOrder(reason string) *Error       { return New(KindDuplicateOrder, reason) }
func UnknownPair(pair fmt.Stringer) *Error      { return New(KindUnknownPair, pair.String()) }
func ScriptDenied(reason string) *Error         { return New(KindScriptDenied, reason) }
func ScriptError(reason string) *Error          { return New(KindScriptError, reason) }
func InternalInvariant(details string) *Error   { return New(KindInternalInvariant, details) }

// Is reports whether err is (or wraps) an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// Errors accumulates property-keyed validation failures across a pipeline
// stage, mirroring this codebase's command-validation accumulator so the
// same reporting shape covers both transaction commands and orders.
type Errors map[string][]error

func NewErrors() Errors {
	return Errors{}
}

// AddForProperty appends err under property and continues accumulating.
func (e Errors) AddForProperty(property string, err error) Errors {
	e[property] = append(e[property], err)
	return e
}

// ErrorOrNil returns nil if no property carries an error, else an *Error
// of KindInvalid summarizing every property's first failure.
func (e Errors) ErrorOrNil() error {
	if len(e) == 0 {
		return nil
	}
	reason := ""
	for property, errs := range e {
		if len(errs) == 0 {
			continue
		}
		if reason != "" {
			reason += "; "
		}
		reason += fmt.Sprintf("%s: %s", property, errs[0].Error())
	}
	if reason == "" {
		return nil
	}
	return Invalid(reason)
}
