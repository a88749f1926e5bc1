// Package substrate defines the uniform backend protocol every storage
// implementation and combinator in this module satisfies: receive, read,
// readMulti, list, delete, health, getSchema, cleanup.
//
// Grounded on the teacher's pkg/store.ReceiptStore-style narrow interface
// (github.com/Mindburn-Labs/helm/core/pkg/store/receipt_store.go),
// generalized from a single receipt shape to an arbitrary URI-addressed
// record and widened to the full eight-operation contract.
package substrate

import "fmt"

// ErrorKind is the stable error vocabulary every backend and combinator
// reports through. Callers may match on Kind directly; string matching on
// Error() is not required to be stable.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not-found"
	KindExists            ErrorKind = "exists"
	KindImmutable         ErrorKind = "immutable"
	KindValidationFailed  ErrorKind = "validation-failed"
	KindUnknownProgram    ErrorKind = "unknown-program"
	KindSignatureFailed   ErrorKind = "signature-failed"
	KindHashMismatch      ErrorKind = "hash-mismatch"
	KindNotImplemented    ErrorKind = "not-implemented"
	KindTransport         ErrorKind = "transport"
	KindCancelled         ErrorKind = "cancelled"
	KindTimeout           ErrorKind = "timeout"
)

// Error is the typed error every backend operation returns. It carries a
// stable Kind alongside a human-readable message.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// NewError constructs an *Error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err if it is (or wraps) a *Error,
// defaulting to KindTransport for anything else — an unclassified failure
// is assumed to be a transport-level problem rather than a domain rejection.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *Error
	if asError(err, &se) {
		return se.Kind
	}
	return KindTransport
}

func asError(err error, target **Error) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if se, ok := err.(*Error); ok {
			*target = se
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
