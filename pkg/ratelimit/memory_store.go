package ratelimit

import (
	"context"
	"sync"
	"time"
)

// counterEntry holds one counter value and its expiry.
type counterEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore implements CounterStore in process memory. Suitable for
// tests and single-instance deployments; multi-instance setups need the
// Redis store so all replicas see the same counters.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counterEntry

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often expired counters are purged.
// Set to 0 to disable background cleanup.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.cleanupInterval = interval
	}
}

// NewMemoryStore creates an in-memory counter store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		counters:        make(map[string]*counterEntry),
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ms)
	}

	if ms.cleanupInterval > 0 {
		go ms.cleanup()
	}

	return ms
}

// Consume holds one mutex across the whole check-then-increment, which
// gives the same atomicity the Redis script gives across replicas.
func (ms *MemoryStore) Consume(ctx context.Context, counters []Counter, n int64) ([]int64, int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	counts := make([]int64, len(counters))

	for i, c := range counters {
		counts[i] = ms.liveCount(c.Key, now)
	}

	for i, c := range counters {
		if c.Limit > 0 && counts[i]+n > c.Limit {
			return counts, i, nil
		}
	}

	for i, c := range counters {
		entry, ok := ms.counters[c.Key]
		if !ok || now.After(entry.expiresAt) {
			entry = &counterEntry{expiresAt: now.Add(c.TTL)}
			ms.counters[c.Key] = entry
		}
		entry.count += n
		counts[i] = entry.count
	}

	return counts, -1, nil
}

func (ms *MemoryStore) Peek(ctx context.Context, keys []string) ([]int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	counts := make([]int64, len(keys))
	for i, k := range keys {
		counts[i] = ms.liveCount(k, now)
	}
	return counts, nil
}

func (ms *MemoryStore) Reset(ctx context.Context, keys ...string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, k := range keys {
		delete(ms.counters, k)
	}
	return nil
}

// liveCount returns the counter value, treating expired entries as zero.
// Callers must hold the mutex.
func (ms *MemoryStore) liveCount(key string, now time.Time) int64 {
	entry, ok := ms.counters[key]
	if !ok || now.After(entry.expiresAt) {
		return 0
	}
	return entry.count
}

func (ms *MemoryStore) cleanup() {
	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.removeExpired()
		case <-ms.stopCleanup:
			return
		}
	}
}

func (ms *MemoryStore) removeExpired() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	for key, entry := range ms.counters {
		if now.After(entry.expiresAt) {
			delete(ms.counters, key)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (ms *MemoryStore) Close() {
	ms.stopOnce.Do(func() {
		close(ms.stopCleanup)
	})
}
