package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Limiter resolves effective caps and enforces them against the counter
// store. One Limiter is shared by all request workers.
type Limiter struct {
	store        CounterStore
	rules        RuleSource
	planDefaults map[string]Limits
	log          *slog.Logger
	failClosed   bool
	now          func() time.Time
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithRuleSource attaches a source of custom override rules.
func WithRuleSource(src RuleSource) LimiterOption {
	return func(l *Limiter) { l.rules = src }
}

// WithPlanDefaults replaces the built-in plan default caps.
func WithPlanDefaults(defaults map[string]Limits) LimiterOption {
	return func(l *Limiter) { l.planDefaults = defaults }
}

// WithLogger sets the logger used for degradation warnings.
func WithLogger(log *slog.Logger) LimiterOption {
	return func(l *Limiter) {
		if log != nil {
			l.log = log
		}
	}
}

// WithFailClosed makes store outages reject requests instead of allowing
// them. The default is fail-open: an unreachable counter store throttles
// nothing, because blocking all traffic on an infrastructure outage is
// worse than briefly not limiting it.
func WithFailClosed() LimiterOption {
	return func(l *Limiter) { l.failClosed = true }
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a Limiter on the given counter store.
func NewLimiter(store CounterStore, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		store:        store,
		planDefaults: PlanDefaults,
		log:          slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check reports the subject's standing across all windows without
// consuming any quota. Rejected requests are free: a caller that gets a
// not-allowed Result here has not moved any counter.
func (l *Limiter) Check(ctx context.Context, subject Subject, featureCaps Limits) (Result, error) {
	now := l.now()
	limits := l.resolveLimits(ctx, subject, now, featureCaps)
	counters := l.buildCounters(subject, limits, now)

	keys := make([]string, len(counters))
	for i, c := range counters {
		keys[i] = c.Key
	}

	counts, err := l.store.Peek(ctx, keys)
	if err != nil {
		return l.degrade(ctx, subject, limits, now, err)
	}

	return l.buildResult(limits, counts, now, 1, false), nil
}

// Consume atomically checks every window and increments the counters by
// n only when all are under their caps. On rejection no counter moves.
func (l *Limiter) Consume(ctx context.Context, subject Subject, featureCaps Limits, n int) (Result, error) {
	if n <= 0 {
		return Result{}, fmt.Errorf("%w: got %d", ErrInvalidIncrement, n)
	}

	now := l.now()
	limits := l.resolveLimits(ctx, subject, now, featureCaps)
	counters := l.buildCounters(subject, limits, now)

	counts, exceeded, err := l.store.Consume(ctx, counters, int64(n))
	if err != nil {
		return l.degrade(ctx, subject, limits, now, err)
	}

	if exceeded >= 0 {
		return l.buildResult(limits, counts, now, int64(n), false), nil
	}
	return l.buildResult(limits, counts, now, int64(n), true), nil
}

// Reset clears the subject's counters for the given windows, or all
// windows when none are specified. Administrative action.
func (l *Limiter) Reset(ctx context.Context, subject Subject, windows ...Window) error {
	if len(windows) == 0 {
		windows = Windows
	}
	now := l.now()
	keys := make([]string, len(windows))
	for i, w := range windows {
		keys[i] = counterKey(subject, w, now)
	}
	return l.store.Reset(ctx, keys...)
}

func (l *Limiter) resolveLimits(ctx context.Context, subject Subject, now time.Time, featureCaps Limits) Limits {
	var rules []Rule
	if l.rules != nil {
		loaded, err := l.rules.Load(ctx, subject)
		if err != nil {
			// Rule source failure falls back to feature caps and plan
			// defaults; custom overrides are best-effort.
			l.log.WarnContext(ctx, "failed to load rate limit rules",
				slog.String("account_id", subject.AccountID),
				slog.String("error", err.Error()))
		} else {
			rules = loaded
		}
	}
	return Resolve(rules, subject, now, featureCaps, l.planDefaults)
}

func (l *Limiter) buildCounters(subject Subject, limits Limits, now time.Time) []Counter {
	counters := make([]Counter, len(Windows))
	for i, w := range Windows {
		counters[i] = Counter{
			Key:   counterKey(subject, w, now),
			Limit: int64(limits.Cap(w)),
			TTL:   w.TTL(now),
		}
	}
	return counters
}

// buildResult assembles per-window statuses. When charged is true the
// counts already include the increment of n; Current is reported
// pre-increment so it always means "used before this request".
func (l *Limiter) buildResult(limits Limits, counts []int64, now time.Time, n int64, charged bool) Result {
	result := Result{
		Allowed: true,
		Windows: make(map[Window]Status, len(Windows)),
	}

	for i, w := range Windows {
		current := counts[i]
		if charged {
			current -= n
		}
		limit := limits.Cap(w)

		status := Status{
			Window:  w,
			Current: current,
			Limit:   limit,
			ResetAt: w.ResetAt(now),
		}
		if limit == Unlimited {
			status.Remaining = -1
		} else {
			status.Remaining = max(int64(limit)-current-n, 0)
			if !charged {
				status.Exceeded = current+n > int64(limit)
			}
		}

		result.Windows[w] = status

		if status.Exceeded && result.Exceeded == nil {
			s := status
			result.Exceeded = &s
			result.Allowed = false
		}
	}

	return result
}

// degrade implements the outage policy: fail-open unless configured
// otherwise. Nothing is consumed either way.
func (l *Limiter) degrade(ctx context.Context, subject Subject, limits Limits, now time.Time, cause error) (Result, error) {
	if l.failClosed {
		return Result{}, cause
	}

	l.log.WarnContext(ctx, "counter store unavailable, rate limiting degraded to allow-all",
		slog.String("account_id", subject.AccountID),
		slog.String("error", cause.Error()))

	result := Result{Allowed: true, Windows: make(map[Window]Status, len(Windows))}
	for _, w := range Windows {
		result.Windows[w] = Status{
			Window:    w,
			Limit:     limits.Cap(w),
			Remaining: -1,
			ResetAt:   w.ResetAt(now),
		}
	}
	return result, nil
}

// counterKey builds the storage key for a subject's window counter,
// bucketed by the current period.
func counterKey(subject Subject, w Window, now time.Time) string {
	return fmt.Sprintf("%s:%s:%s", subject.Key(), w, w.PeriodKey(now))
}
