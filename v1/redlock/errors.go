package redlock

import "errors"

var (
	// ErrUnavailable is returned when quorum with positive validity was not
	// reached within the configured number of attempts.
	ErrUnavailable = errors.New("lock unavailable")
	// ErrTokenGeneration is returned when the random source cannot produce
	// a lock token. It is surfaced immediately and never retried.
	ErrTokenGeneration = errors.New("token generation failed")
)
