package ratelimit

import "time"

// Unlimited marks a window without a cap.
const Unlimited = 0

// Limits holds the effective per-window caps for a subject.
// A zero value means the window is uncapped.
type Limits map[Window]int

// Cap returns the cap for a window, Unlimited when unset.
func (l Limits) Cap(w Window) int {
	return l[w]
}

// merge fills windows that are still uncapped in l from other.
// Existing caps win; this implements "highest-priority source wins per window".
func (l Limits) merge(other Limits) Limits {
	for _, w := range Windows {
		if l[w] == Unlimited && other[w] != Unlimited {
			l[w] = other[w]
		}
	}
	return l
}

// Status describes one window's counter state at check time.
type Status struct {
	Window    Window    `json:"window"`
	Current   int64     `json:"current"`
	Limit     int       `json:"limit"`
	Remaining int64     `json:"remaining"`
	Exceeded  bool      `json:"exceeded"`
	ResetAt   time.Time `json:"reset_at"`
}

// RetryAfter returns how long to wait until the window resets.
// Returns 0 when the window is not exceeded.
func (s Status) RetryAfter() time.Duration {
	if !s.Exceeded {
		return 0
	}
	return max(time.Until(s.ResetAt), 0)
}

// Result is the outcome of a limiter check or consume call.
type Result struct {
	Allowed bool `json:"allowed"`

	// Exceeded is the first exceeded window, set when Allowed is false.
	Exceeded *Status `json:"exceeded,omitempty"`

	// Windows holds the status of every capped window.
	Windows map[Window]Status `json:"windows"`
}

// RetryAfter returns the wait until the first exceeded window resets.
func (r Result) RetryAfter() time.Duration {
	if r.Exceeded == nil {
		return 0
	}
	return r.Exceeded.RetryAfter()
}
