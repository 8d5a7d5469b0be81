// Package ratelimit gates request throughput across four fixed windows:
// minute, hour, day and calendar month.
//
// Effective caps are resolved by layering three sources, highest priority
// first: custom rules (per user, credential, organization or global),
// feature-level caps from the catalog, and plan-derived defaults.
// Resolution is a pure function (Resolve) so it can be tested without any
// store.
//
// Counters live in an external TTL store keyed by (subject, window,
// period bucket). The check-then-increment step is a single atomic
// operation against the store - a Lua script for Redis, one mutex for the
// in-memory store - so two concurrent requests can never both slip past a
// cap. A store outage degrades to fail-open: rate limiting allows
// everything (with a warning logged) rather than blocking all traffic.
package ratelimit
