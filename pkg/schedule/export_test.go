package schedule

// Exported for tests that need a deterministic time source.
var (
	WithClock     = withClock
	WithJobsClock = withJobsClock
)
