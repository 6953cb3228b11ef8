package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Kind tags a remote failure at the point it originates, so callers never
// have to pattern-match error text to decide on retries.
type Kind int

const (
	// KindRemote: the site rejected a submission or returned an unusable
	// response. Not retried.
	KindRemote Kind = iota

	// KindTransient: network, timeout or navigation failure. Retried with
	// bounded attempts.
	KindTransient

	// KindNotFound: the entity does not exist remotely.
	KindNotFound

	// KindAuth: the session is invalid or login failed. Fatal for the run.
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindRemote:
		return "remote"
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not-found"
	case KindAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Error is a remote failure with its origin operation and kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrapErr tags err with a kind and the operation it came from.
func wrapErr(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsTransient reports whether err is tagged retryable.
func IsTransient(err error) bool {
	return kindOf(err) == KindTransient
}

// IsNotFound reports whether err is tagged not-found.
func IsNotFound(err error) bool {
	return kindOf(err) == KindNotFound
}

// IsAuth reports whether err is tagged as a session/login failure.
func IsAuth(err error) bool {
	return kindOf(err) == KindAuth
}

func kindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindRemote
}

// classify tags an error coming out of the browser layer. Deadline
// errors are navigation timeouts and retryable; everything else is a
// plain remote failure.
func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return wrapErr(KindTransient, op, err)
	}
	return wrapErr(KindRemote, op, err)
}
