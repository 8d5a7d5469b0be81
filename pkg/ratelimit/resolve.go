package ratelimit

import (
	"slices"
	"time"
)

// PlanDefaults are the fallback caps applied when neither a custom rule
// nor a feature cap covers a window. Keyed by plan ID.
var PlanDefaults = map[string]Limits{
	"free": {
		WindowMinute: 10,
		WindowHour:   100,
		WindowDay:    1000,
		WindowMonth:  10000,
	},
	"basic": {
		WindowMinute: 60,
		WindowHour:   1000,
		WindowDay:    10000,
		WindowMonth:  300000,
	},
	"pro": {
		WindowMinute: 300,
		WindowHour:   10000,
		WindowDay:    100000,
		WindowMonth:  3000000,
	},
	"enterprise": {
		WindowMinute: 1000,
		WindowHour:   50000,
		WindowDay:    1000000,
		WindowMonth:  Unlimited,
	},
}

// DefaultPlan is used when the subject's plan has no entry in the
// defaults table.
const DefaultPlan = "free"

// Resolve computes the effective per-window caps for a subject by
// layering, highest priority first:
//
//  1. custom rules matching the subject, ordered by Priority ascending;
//     the first rule supplying a cap for a window wins that window
//  2. feature-level caps
//  3. plan defaults
//
// Pure function: no I/O, no clock reads beyond the now argument.
func Resolve(rules []Rule, subject Subject, now time.Time, featureCaps Limits, planDefaults map[string]Limits) Limits {
	if planDefaults == nil {
		planDefaults = PlanDefaults
	}

	effective := make(Limits, len(Windows))

	applicable := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.ActiveAt(now) && r.Matches(subject) {
			applicable = append(applicable, r)
		}
	}
	slices.SortStableFunc(applicable, func(a, b Rule) int {
		return a.Priority - b.Priority
	})

	for _, r := range applicable {
		for _, w := range Windows {
			if effective[w] != Unlimited || r.Limits[w] == Unlimited {
				continue
			}
			limit := r.Limits[w]
			if w == WindowMinute && r.Burst > 0 {
				limit += r.Burst
			}
			effective[w] = limit
		}
	}

	effective.merge(featureCaps)

	defaults, ok := planDefaults[subject.Plan]
	if !ok {
		defaults = planDefaults[DefaultPlan]
	}
	effective.merge(defaults)

	return effective
}
