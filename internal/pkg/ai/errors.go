package ai

import "errors"

var (
	// ErrUpstreamTimeout marks requests that exceeded the provider deadline.
	// Nothing has been committed; the whole request is safe to retry.
	ErrUpstreamTimeout = errors.New("upstream AI request timed out")

	// ErrUpstreamFailure covers transport errors and non-2xx provider
	// responses.
	ErrUpstreamFailure = errors.New("upstream AI request failed")

	// ErrUnrecoverableFormat means the model output could not be repaired
	// into valid JSON.
	ErrUnrecoverableFormat = errors.New("upstream response is not valid JSON")

	// ErrMissingField means the parsed response lacks a required field.
	ErrMissingField = errors.New("response missing required field")

	// ErrInvalidField means a required field is present but has the wrong
	// shape.
	ErrInvalidField = errors.New("response field has wrong shape")
)
