// Package schedule computes recurring-task fire times and spawns concrete
// tasks from scheduled-task templates.
package schedule

import (
	"time"

	"github.com/quadrant-tasks/quadrant/internal/schema"
)

// Recurring tasks fire at a fixed time-of-day on the target date.
const (
	fireHour   = 0
	fireMinute = 2
)

// Params carries the frequency-specific recurrence parameters. Zero values
// fall back to the first day/month.
type Params struct {
	WeekDay    int // 1=Monday .. 7=Sunday (weekly)
	MonthDay   int // 1-31 (monthly)
	QuarterDay int // day within the quarter's first month (quarterly)
	YearMonth  int // 1-12 (yearly)
	YearDay    int // day within YearMonth (yearly)
}

// ParamsOf extracts the recurrence parameters from a schedule.
func ParamsOf(s *schema.ScheduledTask) Params {
	return Params{
		WeekDay:    s.WeekDay,
		MonthDay:   s.MonthDay,
		QuarterDay: s.QuarterDay,
		YearMonth:  s.YearMonth,
		YearDay:    s.YearDay,
	}
}

// NextRun computes the next fire time strictly after base.
//
// Pure and deterministic: every branch derives from base's own calendar
// fields, never from the wall clock, so repeated calls with a fixed anchor
// always agree. Days that don't exist in the target month clamp to its last
// day (requesting the 31st in a 30-day month yields the 30th; Feb 29 in a
// non-leap year yields Feb 28).
func NextRun(freq schema.Frequency, base time.Time, p Params) time.Time {
	switch freq {
	case schema.Daily:
		return at(base.AddDate(0, 0, 1))

	case schema.Weekly:
		weekDay := p.WeekDay
		if weekDay < 1 || weekDay > 7 {
			weekDay = 1
		}
		// Go weeks start on Sunday; shift so Monday=0 to match week_day.
		current := (int(base.Weekday()) + 6) % 7
		target := weekDay - 1

		daysAhead := target - current
		if daysAhead <= 0 {
			// Same weekday (or already passed this week) means next week:
			// never the same day.
			daysAhead += 7
		}
		return at(base.AddDate(0, 0, daysAhead))

	case schema.Monthly:
		monthDay := p.MonthDay
		if monthDay < 1 {
			monthDay = 1
		}
		year, month := base.Year(), int(base.Month())+1
		if month > 12 {
			month = 1
			year++
		}
		return clampedDate(year, month, monthDay, base.Location())

	case schema.Quarterly:
		quarterDay := p.QuarterDay
		if quarterDay < 1 {
			quarterDay = 1
		}
		year := base.Year()
		month := 0
		for _, qm := range []int{1, 4, 7, 10} {
			if qm > int(base.Month()) {
				month = qm
				break
			}
		}
		if month == 0 {
			// Past October: wrap to next year's first quarter.
			month = 1
			year++
		}
		return clampedDate(year, month, quarterDay, base.Location())

	case schema.Yearly:
		yearMonth := p.YearMonth
		if yearMonth < 1 || yearMonth > 12 {
			yearMonth = 1
		}
		yearDay := p.YearDay
		if yearDay < 1 {
			yearDay = 1
		}
		next := clampedDate(base.Year(), yearMonth, yearDay, base.Location())
		if !next.After(base) {
			next = clampedDate(base.Year()+1, yearMonth, yearDay, base.Location())
		}
		return next

	default:
		// Unknown frequency is not an error; fall back to tomorrow.
		return base.AddDate(0, 0, 1)
	}
}

// at pins a date to the fire time-of-day.
func at(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), fireHour, fireMinute, 0, 0, t.Location())
}

// clampedDate builds the fire time for year/month/day, clamping day to the
// month's length.
func clampedDate(year, month, day int, loc *time.Location) time.Time {
	if max := daysIn(year, month); day > max {
		day = max
	}
	return time.Date(year, time.Month(month), day, fireHour, fireMinute, 0, 0, loc)
}

// daysIn returns the number of days in a month.
func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
