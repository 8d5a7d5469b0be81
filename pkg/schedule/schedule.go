package schedule

import (
	"fmt"
	"time"
)

// Schedule determines when a periodic job should next run.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

type hourlySchedule struct {
	minute int
}

func (s hourlySchedule) Next(from time.Time) time.Time {
	next := time.Date(
		from.Year(), from.Month(), from.Day(),
		from.Hour(), s.minute, 0, 0, from.Location(),
	)
	if !next.After(from) {
		next = next.Add(time.Hour)
	}
	return next
}

func (s hourlySchedule) String() string {
	return fmt.Sprintf("hourly at :%02d", s.minute)
}

type dailySchedule struct {
	hour   int
	minute int
}

func (s dailySchedule) Next(from time.Time) time.Time {
	next := time.Date(
		from.Year(), from.Month(), from.Day(),
		s.hour, s.minute, 0, 0, from.Location(),
	)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}

type monthlySchedule struct {
	day    int
	hour   int
	minute int
}

func (s monthlySchedule) Next(from time.Time) time.Time {
	year, month := from.Year(), from.Month()

	// Clamp to month length so day 31 works in February.
	day := min(s.day, daysInMonth(year, month))
	next := time.Date(year, month, day, s.hour, s.minute, 0, 0, from.Location())

	if !next.After(from) {
		if month == time.December {
			year++
			month = time.January
		} else {
			month++
		}
		day = min(s.day, daysInMonth(year, month))
		next = time.Date(year, month, day, s.hour, s.minute, 0, 0, from.Location())
	}
	return next
}

func (s monthlySchedule) String() string {
	return fmt.Sprintf("monthly on day %d at %02d:%02d", s.day, s.hour, s.minute)
}

// Every runs at a fixed interval.
func Every(d time.Duration) Schedule {
	return intervalSchedule{every: d}
}

// HourlyAt runs every hour at the given minute.
func HourlyAt(minute int) Schedule {
	return hourlySchedule{minute: minute}
}

// DailyAt runs once per day at the given time.
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: hour, minute: minute}
}

// MonthlyOn runs once per month on the given day and time.
func MonthlyOn(day, hour, minute int) Schedule {
	return monthlySchedule{day: day, hour: hour, minute: minute}
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
