package domain

import "errors"

var (
	// ErrNotFound is returned by ChatPlatformReader when a referenced
	// message cannot be fetched.
	ErrNotFound = errors.New("message not found")

	// ErrBackendFailure marks a generative backend call that failed
	// after the client's retry policy was exhausted. Triggers the
	// dummy-answer fallback.
	ErrBackendFailure = errors.New("backend failure")

	// ErrDeliveryFailure marks a failed platform send. Logged, not
	// retried by the relay.
	ErrDeliveryFailure = errors.New("delivery failure")
)
