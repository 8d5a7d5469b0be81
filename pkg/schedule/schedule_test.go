package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/meterkit/pkg/schedule"
)

func TestScheduleNext(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 8, 25, 13, 42, 30, 0, time.UTC)

	t.Run("interval", func(t *testing.T) {
		t.Parallel()
		s := schedule.Every(15 * time.Minute)
		assert.Equal(t, from.Add(15*time.Minute), s.Next(from))
	})

	t.Run("hourly", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t,
			time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC),
			schedule.HourlyAt(0).Next(from))
		assert.Equal(t,
			time.Date(2026, 8, 25, 13, 50, 0, 0, time.UTC),
			schedule.HourlyAt(50).Next(from))
	})

	t.Run("daily", func(t *testing.T) {
		t.Parallel()
		// Today's slot already passed, so tomorrow.
		assert.Equal(t,
			time.Date(2026, 8, 26, 1, 0, 0, 0, time.UTC),
			schedule.DailyAt(1, 0).Next(from))
		assert.Equal(t,
			time.Date(2026, 8, 25, 23, 30, 0, 0, time.UTC),
			schedule.DailyAt(23, 30).Next(from))
	})

	t.Run("monthly", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t,
			time.Date(2026, 9, 1, 0, 5, 0, 0, time.UTC),
			schedule.MonthlyOn(1, 0, 5).Next(from))

		// Day 31 clamps to the length of the month.
		feb := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
		assert.Equal(t,
			time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
			schedule.MonthlyOn(31, 0, 0).Next(feb))

		// December rolls into January.
		dec := time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC)
		assert.Equal(t,
			time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
			schedule.MonthlyOn(1, 0, 0).Next(dec))
	})
}
