package ratelimit

// WithClock is exported for tests that need a deterministic time source.
var WithClock = withClock
