// Package classify attaches a taxonomy to errors so callers can branch
// on failure kind (transient, content, integrity, budget, parse) without
// string-matching error messages.
package classify

import (
	"errors"
	"fmt"
)

// Kind is one of the five failure categories the controller and green
// branch manager distinguish between.
type Kind string

const (
	// Transient is a retryable infrastructure failure: network hiccup,
	// workspace contention, a worker process that was killed.
	Transient Kind = "transient"
	// Content is a failure caused by what the worker produced: code that
	// does not compile, a test that fails, a diff that does not apply.
	Content Kind = "content"
	// Integrity is a failure of the integration machinery itself: a
	// non-fast-forward push to mc/green, a checkpoint tag gone missing.
	Integrity Kind = "integrity"
	// Budget means a cost or time ceiling was hit mid-operation.
	Budget Kind = "budget"
	// Parse means a worker's MC_RESULT or review marker could not be parsed.
	Parse Kind = "parse"
)

type classified struct {
	kind Kind
	err  error
}

func (c *classified) Error() string { return c.err.Error() }
func (c *classified) Unwrap() error { return c.err }

// WithKind wraps err with the given taxonomy kind. A nil err returns nil.
func WithKind(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	return &classified{kind: kind, err: err}
}

// Wrapf formats a new error carrying kind, in the style of fmt.Errorf.
func Wrapf(kind Kind, format string, args ...any) error {
	return &classified{kind: kind, err: fmt.Errorf(format, args...)}
}

// Of returns the taxonomy kind attached to err, walking the Unwrap
// chain. Unclassified errors return Content, the conservative default:
// an error nobody tagged is treated as "this worker's output was bad"
// rather than silently retried forever.
func Of(err error) Kind {
	var c *classified
	if errors.As(err, &c) {
		return c.kind
	}
	return Content
}

// Retryable reports whether a failure of this kind is worth retrying
// without operator intervention.
func (k Kind) Retryable() bool {
	return k == Transient
}
