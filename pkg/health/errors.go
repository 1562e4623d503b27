package health

import "errors"

// Sentinel errors for the health package.
var (
	// ErrCheckFailed wraps the error returned by a failing check.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout is joined with a check's error when the check deadline passed.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrRoundTripMismatch is returned when a store gives back a different sentinel value.
	ErrRoundTripMismatch = errors.New("health: round trip value mismatch")
)
