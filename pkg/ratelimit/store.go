package ratelimit

import (
	"context"
	"time"
)

// Counter describes one window counter to check or consume.
type Counter struct {
	Key   string        // full storage key including the period bucket
	Limit int64         // 0 means uncapped; the counter is still incremented
	TTL   time.Duration // expiry set when the counter is first written
}

// CounterStore is the usage counter backend. Implementations must make
// Consume a single atomic operation: either every counter is under its
// limit and all are incremented, or none are touched. A read-then-write
// implementation would let two concurrent requests both observe "under
// limit" and both pass the cap.
type CounterStore interface {
	// Consume checks every counter against its limit and, only when all
	// are under limit, increments each by n. It returns the counter
	// values (after increment when allowed, current values otherwise)
	// and the index of the first exceeded counter, or -1 when allowed.
	Consume(ctx context.Context, counters []Counter, n int64) (counts []int64, exceeded int, err error)

	// Peek returns current counter values without mutating anything.
	// Missing counters read as zero.
	Peek(ctx context.Context, keys []string) ([]int64, error)

	// Reset removes the given counters. Used by administrative resets.
	Reset(ctx context.Context, keys ...string) error
}
