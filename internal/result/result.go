// Package result provides a two-variant result type for remote calls that
// report failure as data rather than as a transport error.
package result

import "errors"

// ErrNoValue is returned by Unwrap on an Err result with an empty message.
var ErrNoValue = errors.New("result has no value")

// Result holds either Ok(value) or Err(message). The zero value is Err("").
type Result[T any] struct {
	value T
	msg   string
	ok    bool
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Err wraps a failure message.
func Err[T any](msg string) Result[T] {
	return Result[T]{msg: msg}
}

// IsOk reports whether r is the Ok variant.
func (r Result[T]) IsOk() bool { return r.ok }

// Value returns the wrapped value and whether r is Ok.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.ok
}

// Message returns the failure message; it is empty for Ok.
func (r Result[T]) Message() string {
	if r.ok {
		return ""
	}
	return r.msg
}

// Unwrap converts r into Go's (value, error) convention.
func (r Result[T]) Unwrap() (T, error) {
	if r.ok {
		return r.value, nil
	}
	var zero T
	if r.msg == "" {
		return zero, ErrNoValue
	}
	return zero, &RemoteError{Message: r.msg}
}

// Match calls exactly one of the two handlers.
func Match[T, R any](r Result[T], onOk func(T) R, onErr func(string) R) R {
	if r.ok {
		return onOk(r.value)
	}
	return onErr(r.msg)
}

// RemoteError is the error form of an Err variant.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote error: " + e.Message
}
