package validator

import (
	"context"
	"regexp"

	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
	"github.com/substratefabric/core/pkg/uri"
)

// Accept always allows the write. Used as the default policy for
// well-known open/public program keys.
func Accept(ctx context.Context, u uri.URI, payload record.Payload, read ReadFunc) error {
	return nil
}

// Reject always rejects the write with the given message, keyed under
// KindValidationFailed. Used as the default unknown-program policy.
func Reject(msg string) Func {
	return func(ctx context.Context, u uri.URI, payload record.Payload, read ReadFunc) error {
		return substrate.NewError(substrate.KindValidationFailed, "%s", msg)
	}
}

// RequireFields rejects unless every named field is present (and non-nil)
// in a structured payload's top-level map.
func RequireFields(fields ...string) Func {
	return func(ctx context.Context, u uri.URI, payload record.Payload, read ReadFunc) error {
		if payload.IsBinary() {
			return substrate.NewError(substrate.KindValidationFailed, "binary payload cannot satisfy required fields")
		}
		m, ok := payload.Struct.(map[string]any)
		if !ok {
			return substrate.NewError(substrate.KindValidationFailed, "payload is not an object")
		}
		for _, f := range fields {
			if v, present := m[f]; !present || v == nil {
				return substrate.NewError(substrate.KindValidationFailed, "missing required field %q", f)
			}
		}
		return nil
	}
}

// URIPattern rejects unless the full URI matches the given regular
// expression.
func URIPattern(pattern *regexp.Regexp) Func {
	return func(ctx context.Context, u uri.URI, payload record.Payload, read ReadFunc) error {
		if !pattern.MatchString(u.Raw) {
			return substrate.NewError(substrate.KindValidationFailed, "uri %q does not match pattern %s", u.Raw, pattern.String())
		}
		return nil
	}
}

// Format wraps an arbitrary predicate function as a validator: fn returns
// true to accept, false (with a reason) to reject.
func Format(fn func(payload record.Payload) (bool, string)) Func {
	return func(ctx context.Context, u uri.URI, payload record.Payload, read ReadFunc) error {
		ok, reason := fn(payload)
		if !ok {
			return substrate.NewError(substrate.KindValidationFailed, "%s", reason)
		}
		return nil
	}
}

// Any accepts if at least one child validator accepts; on all-reject it
// returns the first child's error.
func Any(children ...Func) Func {
	return func(ctx context.Context, u uri.URI, payload record.Payload, read ReadFunc) error {
		var firstErr error
		for _, child := range children {
			err := child(ctx, u, payload, read)
			if err == nil {
				return nil
			}
			if firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
}

// All accepts only if every child validator accepts; short-circuits on the
// first rejection.
func All(children ...Func) Func {
	return func(ctx context.Context, u uri.URI, payload record.Payload, read ReadFunc) error {
		for _, child := range children {
			if err := child(ctx, u, payload, read); err != nil {
				return err
			}
		}
		return nil
	}
}
