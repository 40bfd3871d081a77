package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StudentFeeStatus is always derived from the row's monetary totals and due
// date, never stored as independent truth.
type StudentFeeStatus string

// Ledger row statuses.
const (
	StudentFeePending StudentFeeStatus = "PENDING"
	StudentFeePartial StudentFeeStatus = "PARTIAL"
	StudentFeeOverdue StudentFeeStatus = "OVERDUE"
	StudentFeePaid    StudentFeeStatus = "PAID"
)

// StudentFee is one obligation in the ledger: a student owing one fee for a
// particular due date. Amount is frozen at creation time and never
// re-resolved; corrections happen through discount deltas or new rows.
// Rows are never deleted.
type StudentFee struct {
	ID             string           `db:"id" json:"id"`
	SchoolID       string           `db:"school_id" json:"school_id"`
	AcademicYearID string           `db:"academic_year_id" json:"academic_year_id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	FeeID          string           `db:"fee_id" json:"fee_id"`
	MappingID      *string          `db:"mapping_id" json:"mapping_id,omitempty"`
	DueDate        *time.Time       `db:"due_date" json:"due_date,omitempty"`
	Amount         decimal.Decimal  `db:"amount" json:"amount"`
	FineAmount     decimal.Decimal  `db:"fine_amount" json:"fine_amount"`
	DiscountAmount decimal.Decimal  `db:"discount_amount" json:"discount_amount"`
	AmountPaid     decimal.Decimal  `db:"amount_paid" json:"amount_paid"`
	Status         StudentFeeStatus `db:"status" json:"status"`
	CreatedBy      string           `db:"created_by" json:"created_by"`
	UpdatedBy      string           `db:"updated_by" json:"updated_by"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// LedgerEntry enriches a ledger row with fee context for listings.
type LedgerEntry struct {
	StudentFee
	FeeName     string          `db:"fee_name" json:"fee_name"`
	Outstanding decimal.Decimal `db:"-" json:"outstanding"`
}

// PlanRow is one line of a monthly plan: either an existing ledger row or a
// projection that has not been materialized yet (Projected=true, empty ID).
type PlanRow struct {
	StudentFee
	FeeName      string          `json:"fee_name"`
	ScheduleType ScheduleType    `json:"schedule_type"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	Projected    bool            `json:"projected"`
}

// LedgerFilter narrows ledger listings for one student.
type LedgerFilter struct {
	SchoolID       string
	AcademicYearID string
	StudentID      string
	FeeID          string
	OnlyDue        bool
	IncludePaid    bool
}

// LedgerSummary aggregates a student's ledger totals.
type LedgerSummary struct {
	Amount      decimal.Decimal `json:"amount"`
	FineAmount  decimal.Decimal `json:"fine_amount"`
	Discount    decimal.Decimal `json:"discount"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}
