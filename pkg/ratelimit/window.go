package ratelimit

import "time"

// Window is a fixed time bucket used for rate limiting.
type Window string

const (
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
	WindowDay    Window = "day"
	WindowMonth  Window = "month"
)

// Windows lists all windows in checking order. The first exceeded window
// in this order is the one reported to the caller.
var Windows = []Window{WindowMinute, WindowHour, WindowDay, WindowMonth}

// PeriodKey returns the bucket identifier for the window containing t,
// e.g. "202601021504" for a minute bucket. Counters for two different
// periods never share a key, so buckets roll over naturally.
func (w Window) PeriodKey(t time.Time) string {
	t = t.UTC()
	switch w {
	case WindowMinute:
		return t.Format("200601021504")
	case WindowHour:
		return t.Format("2006010215")
	case WindowDay:
		return t.Format("20060102")
	case WindowMonth:
		return t.Format("200601")
	}
	return ""
}

// ResetAt returns the instant the window containing t rolls over.
func (w Window) ResetAt(t time.Time) time.Time {
	t = t.UTC()
	switch w {
	case WindowMinute:
		return t.Truncate(time.Minute).Add(time.Minute)
	case WindowHour:
		return t.Truncate(time.Hour).Add(time.Hour)
	case WindowDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	case WindowMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	}
	return t
}

// TTL returns how long a counter created at t should live: until the
// window rolls over. Expiring exactly at reset keeps the store clean
// without a sweeper.
func (w Window) TTL(t time.Time) time.Duration {
	return w.ResetAt(t).Sub(t.UTC())
}
