package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// consumeScript checks all window counters against their limits and
// increments them only when every one is under its limit. Runs as a
// single atomic script on the server, so concurrent callers serialize
// here instead of racing between a GET and an INCRBY.
//
// KEYS:    counter keys
// ARGV[1]: increment
// ARGV[2i], ARGV[2i+1]: limit and TTL (ms) for KEYS[i]
//
// Returns {exceeded_index, count_1, ..., count_n}; exceeded_index is 0
// when allowed, 1-based index of the first exceeded counter otherwise.
var consumeScript = redis.NewScript(`
local n = tonumber(ARGV[1])
local counts = {}
for i = 1, #KEYS do
  counts[i] = tonumber(redis.call("GET", KEYS[i]) or "0")
end
for i = 1, #KEYS do
  local limit = tonumber(ARGV[2*i])
  if limit > 0 and counts[i] + n > limit then
    local result = {i}
    for j = 1, #KEYS do result[j+1] = counts[j] end
    return result
  end
end
local result = {0}
for i = 1, #KEYS do
  local updated = redis.call("INCRBY", KEYS[i], n)
  if updated == n then
    redis.call("PEXPIRE", KEYS[i], ARGV[2*i+1])
  end
  result[i+1] = updated
end
return result
`)

// RedisStore implements CounterStore on a shared Redis instance so that
// counters are consistent across application replicas.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed counter store. The prefix
// namespaces all counter keys; it defaults to "ratelimit".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":" + k
}

func (s *RedisStore) Consume(ctx context.Context, counters []Counter, n int64) ([]int64, int, error) {
	if len(counters) == 0 {
		return nil, -1, nil
	}

	keys := make([]string, len(counters))
	argv := make([]any, 0, 1+2*len(counters))
	argv = append(argv, n)
	for i, c := range counters {
		keys[i] = s.key(c.Key)
		argv = append(argv, c.Limit, c.TTL.Milliseconds())
	}

	raw, err := consumeScript.Run(ctx, s.client, keys, argv...).Result()
	if err != nil {
		return nil, -1, errors.Join(ErrStoreUnavailable, err)
	}

	values, ok := raw.([]any)
	if !ok || len(values) != len(counters)+1 {
		return nil, -1, fmt.Errorf("ratelimit: unexpected script response shape: %T", raw)
	}

	exceededIdx, ok := values[0].(int64)
	if !ok {
		return nil, -1, fmt.Errorf("ratelimit: unexpected exceeded index type: %T", values[0])
	}

	counts := make([]int64, len(counters))
	for i := range counters {
		v, ok := values[i+1].(int64)
		if !ok {
			return nil, -1, fmt.Errorf("ratelimit: unexpected count type: %T", values[i+1])
		}
		counts[i] = v
	}

	return counts, int(exceededIdx) - 1, nil
}

func (s *RedisStore) Peek(ctx context.Context, keys []string) ([]int64, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.key(k)
	}

	values, err := s.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	counts := make([]int64, len(keys))
	for i, v := range values {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok {
			var n int64
			if _, err := fmt.Sscan(str, &n); err == nil {
				counts[i] = n
			}
		}
	}
	return counts, nil
}

func (s *RedisStore) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.key(k)
	}
	if err := s.client.Del(ctx, prefixed...).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
