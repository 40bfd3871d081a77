package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

func datePtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(2025, time.February)
	assert.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC), end)

	start, end = MonthBounds(2024, time.February)
	assert.Equal(t, 29, end.Day())
	assert.Equal(t, time.February, start.Month())
}

func TestDueDateForMonthOneTime(t *testing.T) {
	schedule := models.FeeSchedule{
		Type:      models.ScheduleTypeOneTime,
		StartDate: datePtr(2025, time.July, 15),
	}

	due := DueDateForMonth(schedule, 2025, time.July)
	require.NotNil(t, due)
	assert.Equal(t, time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC), *due)

	assert.Nil(t, DueDateForMonth(schedule, 2025, time.August))
	assert.Nil(t, DueDateForMonth(schedule, 2025, time.June))
	assert.Nil(t, DueDateForMonth(schedule, 2026, time.July))
}

func TestDueDateForMonthOneTimeWithoutStart(t *testing.T) {
	schedule := models.FeeSchedule{Type: models.ScheduleTypeOneTime}
	assert.Nil(t, DueDateForMonth(schedule, 2025, time.July))
}

func TestDueDateForMonthRecurringMonthly(t *testing.T) {
	schedule := models.FeeSchedule{
		Type:           models.ScheduleTypeRecurring,
		IntervalMonths: 1,
		DayOfMonth:     5,
		StartDate:      datePtr(2025, time.July, 1),
	}

	for _, month := range []time.Month{time.July, time.August, time.December} {
		due := DueDateForMonth(schedule, 2025, month)
		require.NotNil(t, due, "month %s", month)
		assert.Equal(t, 5, due.Day())
		assert.Equal(t, month, due.Month())
	}

	// Months before the start generate nothing.
	assert.Nil(t, DueDateForMonth(schedule, 2025, time.June))
}

func TestDueDateForMonthRecurringInterval(t *testing.T) {
	schedule := models.FeeSchedule{
		Type:           models.ScheduleTypeRecurring,
		IntervalMonths: 3,
		DayOfMonth:     10,
		StartDate:      datePtr(2025, time.January, 1),
	}

	require.NotNil(t, DueDateForMonth(schedule, 2025, time.January))
	assert.Nil(t, DueDateForMonth(schedule, 2025, time.February))
	assert.Nil(t, DueDateForMonth(schedule, 2025, time.March))
	require.NotNil(t, DueDateForMonth(schedule, 2025, time.April))
	require.NotNil(t, DueDateForMonth(schedule, 2026, time.January))
}

func TestDueDateForMonthRecurringClampsDay(t *testing.T) {
	schedule := models.FeeSchedule{
		Type:           models.ScheduleTypeRecurring,
		IntervalMonths: 1,
		DayOfMonth:     31,
		StartDate:      datePtr(2025, time.January, 1),
	}

	due := DueDateForMonth(schedule, 2025, time.February)
	require.NotNil(t, due)
	assert.Equal(t, 28, due.Day())

	due = DueDateForMonth(schedule, 2025, time.April)
	require.NotNil(t, due)
	assert.Equal(t, 30, due.Day())

	// Leap February clamps to the 29th; the schedule must already be
	// running by then.
	leap := models.FeeSchedule{
		Type:           models.ScheduleTypeRecurring,
		IntervalMonths: 1,
		DayOfMonth:     31,
		StartDate:      datePtr(2023, time.January, 1),
	}
	due = DueDateForMonth(leap, 2024, time.February)
	require.NotNil(t, due)
	assert.Equal(t, 29, due.Day())
}

func TestDueDateForMonthRecurringDefaults(t *testing.T) {
	// No start date aligns against the epoch; zero interval degrades to
	// monthly; zero day of month lands on the 1st.
	schedule := models.FeeSchedule{
		Type:           models.ScheduleTypeRecurring,
		IntervalMonths: 0,
		DayOfMonth:     0,
	}

	due := DueDateForMonth(schedule, 2025, time.September)
	require.NotNil(t, due)
	assert.Equal(t, 1, due.Day())
}

func TestDueDateForMonthRecurringEndDate(t *testing.T) {
	schedule := models.FeeSchedule{
		Type:           models.ScheduleTypeRecurring,
		IntervalMonths: 1,
		DayOfMonth:     5,
		StartDate:      datePtr(2025, time.January, 1),
		EndDate:        datePtr(2025, time.June, 30),
	}

	require.NotNil(t, DueDateForMonth(schedule, 2025, time.June))
	assert.Nil(t, DueDateForMonth(schedule, 2025, time.July))
}

func TestDueDateForMonthOnDemand(t *testing.T) {
	schedule := models.FeeSchedule{
		Type:    models.ScheduleTypeOnDemand,
		EndDate: datePtr(2025, time.September, 20),
	}

	due := DueDateForMonth(schedule, 2025, time.September)
	require.NotNil(t, due)
	assert.Equal(t, time.Date(2025, time.September, 20, 0, 0, 0, 0, time.UTC), *due)

	assert.Nil(t, DueDateForMonth(schedule, 2025, time.August))
	assert.Nil(t, DueDateForMonth(schedule, 2025, time.October))
}

func TestDueDateForMonthOnDemandWithoutEnd(t *testing.T) {
	schedule := models.FeeSchedule{Type: models.ScheduleTypeOnDemand}
	assert.Nil(t, DueDateForMonth(schedule, 2025, time.September))
}

func TestOnDemandCarryForward(t *testing.T) {
	schedule := models.FeeSchedule{
		Type:    models.ScheduleTypeOnDemand,
		EndDate: datePtr(2025, time.September, 20),
	}

	// The month right after the window closes still surfaces the original
	// due date.
	due := onDemandCarryForward(schedule, 2025, time.October)
	require.NotNil(t, due)
	assert.Equal(t, time.Date(2025, time.September, 20, 0, 0, 0, 0, time.UTC), *due)

	assert.Nil(t, onDemandCarryForward(schedule, 2025, time.November))
	assert.Nil(t, onDemandCarryForward(schedule, 2025, time.September))

	// Year boundary.
	schedule.EndDate = datePtr(2025, time.December, 15)
	due = onDemandCarryForward(schedule, 2026, time.January)
	require.NotNil(t, due)
	assert.Equal(t, time.December, due.Month())
}
