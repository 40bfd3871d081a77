package service

import (
	"time"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

// scheduleEpoch anchors period alignment for recurring schedules that have
// no start date.
var scheduleEpoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// MonthBounds returns the first and last day of a month at midnight UTC.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DueDateForMonth decides whether a schedule produces an obligation in the
// given month and, if so, on which day. A nil result means the schedule
// generates nothing for that month; the plan builder then falls back to
// ledger-driven logic. Schedules describe when new obligations appear, not
// history: an existing ledger row for the month always supersedes this.
func DueDateForMonth(s models.FeeSchedule, year int, month time.Month) *time.Time {
	monthStart, monthEnd := MonthBounds(year, month)

	switch s.Type {
	case models.ScheduleTypeOneTime:
		// Due only in the month containing the start date.
		if s.StartDate == nil {
			return nil
		}
		start := dateOnly(*s.StartDate)
		if start.Year() != year || start.Month() != month {
			return nil
		}
		return &start

	case models.ScheduleTypeRecurring:
		start := scheduleEpoch
		if s.StartDate != nil {
			start = dateOnly(*s.StartDate)
		}
		if s.EndDate != nil && monthStart.After(dateOnly(*s.EndDate)) {
			return nil
		}
		if monthEnd.Before(start) {
			return nil
		}
		monthsSince := (year-start.Year())*12 + int(month-start.Month())
		if monthsSince < 0 {
			return nil
		}
		interval := s.IntervalMonths
		if interval <= 0 {
			// Misconfigured schedules degrade to monthly instead of failing.
			interval = 1
		}
		if monthsSince%interval != 0 {
			return nil
		}
		day := s.DayOfMonth
		if day < 1 {
			day = 1
		}
		if last := monthEnd.Day(); day > last {
			day = last
		}
		due := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		return &due

	case models.ScheduleTypeOnDemand:
		// Due exactly when the demand window closes inside the target month.
		if s.EndDate == nil {
			return nil
		}
		end := dateOnly(*s.EndDate)
		if end.Before(monthStart) || end.After(monthEnd) {
			return nil
		}
		return &end
	}

	return nil
}
