package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FineApplyType determines how a policy converts lateness into money.
type FineApplyType string

// Supported fine application types.
const (
	FineApplyFixed      FineApplyType = "FIXED"
	FineApplyPerDay     FineApplyType = "PER_DAY"
	FineApplyPercentage FineApplyType = "PERCENTAGE"
)

// FinePolicy describes a late-payment rule for a school year. A NULL FeeID
// makes the policy global: it applies to every fee in that year. Multiple
// policies may trigger on the same obligation; their contributions are
// summed, each capped by its own MaxAmount.
type FinePolicy struct {
	ID             string              `db:"id" json:"id"`
	SchoolID       string              `db:"school_id" json:"school_id"`
	AcademicYearID string              `db:"academic_year_id" json:"academic_year_id"`
	FeeID          *string             `db:"fee_id" json:"fee_id,omitempty"`
	ApplyType      FineApplyType       `db:"apply_type" json:"apply_type"`
	Amount         decimal.Decimal     `db:"amount" json:"amount"`
	GraceDays      int                 `db:"grace_days" json:"grace_days"`
	MaxAmount      decimal.NullDecimal `db:"max_amount" json:"max_amount,omitempty"`
	Active         bool                `db:"active" json:"active"`
	CreatedBy      string              `db:"created_by" json:"created_by"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
}

// FinePolicyFilter narrows policy listings.
type FinePolicyFilter struct {
	SchoolID       string
	AcademicYearID string
	FeeID          string
	Active         *bool
}
