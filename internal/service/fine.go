package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

var hundred = decimal.NewFromInt(100)

// ComputeFine evaluates every applicable policy against an obligation and
// returns the summed fine. Policies are evaluated independently, not
// first-match: a fee-specific and a global policy both triggered on the
// same row each contribute. Undated obligations never accrue fines.
func ComputeFine(policies []models.FinePolicy, dueDate *time.Time, baseAmount decimal.Decimal, asOf time.Time) decimal.Decimal {
	total := decimal.Zero
	if dueDate == nil {
		return total
	}
	due := dateOnly(*dueDate)
	today := dateOnly(asOf)

	for _, p := range policies {
		graceLimit := due.AddDate(0, 0, p.GraceDays)
		if !today.After(graceLimit) {
			continue
		}
		daysLate := int(today.Sub(graceLimit).Hours() / 24)
		if daysLate < 1 {
			daysLate = 1
		}

		var fine decimal.Decimal
		switch p.ApplyType {
		case models.FineApplyFixed:
			fine = p.Amount
		case models.FineApplyPerDay:
			fine = p.Amount.Mul(decimal.NewFromInt(int64(daysLate)))
		case models.FineApplyPercentage:
			fine = p.Amount.Div(hundred).Mul(baseAmount)
		default:
			continue
		}

		if p.MaxAmount.Valid && fine.GreaterThan(p.MaxAmount.Decimal) {
			fine = p.MaxAmount.Decimal
		}
		if fine.IsNegative() {
			fine = decimal.Zero
		}
		total = total.Add(fine.Round(2))
	}

	return total
}

// Outstanding returns what is still owed on a row, floored at zero.
func Outstanding(amount, fine, discount, paid decimal.Decimal) decimal.Decimal {
	out := amount.Add(fine).Sub(discount).Sub(paid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// DeriveStatus maps a row's monetary totals and due date onto its status.
// It is the single source of truth for status: both the plan builder and
// the payment recorder call it, and the stored column is only a cache of
// its result.
func DeriveStatus(amount, fine, discount, paid decimal.Decimal, dueDate *time.Time, today time.Time) models.StudentFeeStatus {
	outstanding := amount.Add(fine).Sub(discount).Sub(paid)
	if !outstanding.IsPositive() {
		return models.StudentFeePaid
	}
	if paid.IsPositive() {
		return models.StudentFeePartial
	}
	if dueDate != nil && dateOnly(today).After(dateOnly(*dueDate)) {
		return models.StudentFeeOverdue
	}
	return models.StudentFeePending
}
