package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScheduleType describes how a fee generates obligations over time.
type ScheduleType string

// Supported schedule types.
const (
	ScheduleTypeOneTime   ScheduleType = "ONE_TIME"
	ScheduleTypeRecurring ScheduleType = "RECURRING"
	ScheduleTypeOnDemand  ScheduleType = "ON_DEMAND"
)

// Fee is a chargeable item owned by a school for one academic year.
type Fee struct {
	ID             string    `db:"id" json:"id"`
	SchoolID       string    `db:"school_id" json:"school_id"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	Name           string    `db:"name" json:"name"`
	Active         bool      `db:"active" json:"active"`
	CreatedBy      string    `db:"created_by" json:"created_by"`
	UpdatedBy      string    `db:"updated_by" json:"updated_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// FeeSchedule defines when a fee falls due. Each fee carries exactly one
// schedule; the reader still resolves the most recent row so historical
// duplicates from the legacy schema stay harmless.
type FeeSchedule struct {
	ID             string       `db:"id" json:"id"`
	FeeID          string       `db:"fee_id" json:"fee_id"`
	Type           ScheduleType `db:"schedule_type" json:"schedule_type"`
	IntervalMonths int          `db:"interval_months" json:"interval_months"`
	DayOfMonth     int          `db:"day_of_month" json:"day_of_month"`
	StartDate      *time.Time   `db:"start_date" json:"start_date,omitempty"`
	EndDate        *time.Time   `db:"end_date" json:"end_date,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}

// FeeDetail bundles a fee with its current schedule.
type FeeDetail struct {
	Fee
	Schedule *FeeSchedule `json:"schedule,omitempty"`
}

// ClassSectionMapping assigns an amount to a fee for a class, optionally
// narrowed to one section. A NULL section means the amount applies to the
// whole class.
type ClassSectionMapping struct {
	ID        string          `db:"id" json:"id"`
	FeeID     string          `db:"fee_id" json:"fee_id"`
	ClassID   string          `db:"class_id" json:"class_id"`
	SectionID *string         `db:"section_id" json:"section_id,omitempty"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Active    bool            `db:"active" json:"active"`
	CreatedBy string          `db:"created_by" json:"created_by"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// FeeFilter narrows fee listings.
type FeeFilter struct {
	SchoolID       string
	AcademicYearID string
	Active         *bool
	Page           int
	PageSize       int
}
