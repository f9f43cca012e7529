package domain

import "errors"

var (
	// ErrTransport covers connection failures, timeouts and non-success statuses.
	ErrTransport = errors.New("transport failure")
	// ErrMalformed marks a response body that does not match the stage schema.
	ErrMalformed = errors.New("malformed response")
	// ErrEmptyResult marks a well-formed response with zero items.
	ErrEmptyResult = errors.New("empty result")
	// ErrStaleResponse marks a response that arrived after its run was superseded.
	ErrStaleResponse = errors.New("stale response")
	// ErrEmptyTopic rejects a blank submission.
	ErrEmptyTopic = errors.New("topic must not be empty")
)

// StageResult is the outcome of one remote stage call.
type StageResult[T any] struct {
	Payload T
	Err     error
}

// Success wraps a decoded payload.
func Success[T any](payload T) StageResult[T] {
	return StageResult[T]{Payload: payload}
}

// Failure wraps a classified error.
func Failure[T any](err error) StageResult[T] {
	return StageResult[T]{Err: err}
}

// OK reports whether the call succeeded.
func (r StageResult[T]) OK() bool {
	return r.Err == nil
}

// Sized is implemented by the stage payload collections.
type Sized interface {
	~[]string | ~[]Record
}

// IsEmpty reports whether a successful result carried zero items.
func IsEmpty[T Sized](r StageResult[T]) bool {
	return r.OK() && len(r.Payload) == 0
}

// Cause classifies the result for logging. It returns nil for non-empty successes.
func Cause[T Sized](r StageResult[T]) error {
	if !r.OK() {
		return r.Err
	}
	if len(r.Payload) == 0 {
		return ErrEmptyResult
	}
	return nil
}
