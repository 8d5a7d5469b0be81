package ratelimit

import "errors"

var (
	// ErrInvalidIncrement indicates a non-positive consume amount.
	ErrInvalidIncrement = errors.New("ratelimit: increment must be positive")

	// ErrStoreUnavailable indicates the counter store could not be reached.
	ErrStoreUnavailable = errors.New("ratelimit: counter store unavailable")

	// ErrFailedToLoadRules indicates the rule source could not provide rules.
	ErrFailedToLoadRules = errors.New("ratelimit: failed to load rules")
)
