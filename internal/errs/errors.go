// Package errs provides the error type shared by every mediasource package.
//
// Drivers wrap their native SDK errors into *errs.Error so the directory
// emulation layer can branch on the kind of failure without importing
// provider packages:
//
//	if errs.IsNotFound(err) {
//	    // tolerate an already-removed source object
//	}
package errs

import (
	"errors"
	"fmt"
)

// Kind categorises an error independently of the backend that produced it.
type Kind int

const (
	KindUnknown        Kind = iota
	KindNotFound            // object or container absent
	KindAlreadyExists       // create attempted on an existing key
	KindUnsupported         // operation disabled by source capabilities
	KindBackendFailure      // network, credential or provider-side failure
	KindLocalIOFailure      // source-side cleanup for a move failed
	KindInvalidInput        // bad arguments from the caller
	KindBusy                // a conflicting operation holds the lock
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindUnsupported:
		return "unsupported"
	case KindBackendFailure:
		return "backend_failure"
	case KindLocalIOFailure:
		return "local_io_failure"
	case KindInvalidInput:
		return "invalid_input"
	case KindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Error is the error type returned across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an *Error with no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error around an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Ensure converts any error into an *Error, keeping an existing kind and
// falling back to the given kind otherwise.
func Ensure(err error, fallback Kind, msg string) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return Wrap(fallback, msg, err)
}

func IsNotFound(err error) bool       { return KindOf(err) == KindNotFound }
func IsAlreadyExists(err error) bool  { return KindOf(err) == KindAlreadyExists }
func IsUnsupported(err error) bool    { return KindOf(err) == KindUnsupported }
func IsBackendFailure(err error) bool { return KindOf(err) == KindBackendFailure }
func IsLocalIOFailure(err error) bool { return KindOf(err) == KindLocalIOFailure }
func IsInvalidInput(err error) bool   { return KindOf(err) == KindInvalidInput }
func IsBusy(err error) bool           { return KindOf(err) == KindBusy }

// KindOf extracts the Kind of the first *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
