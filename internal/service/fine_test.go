package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeFineFixed(t *testing.T) {
	policies := []models.FinePolicy{{
		ApplyType: models.FineApplyFixed,
		Amount:    dec("50"),
		GraceDays: 5,
	}}
	due := time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC)

	// Inside the grace window nothing accrues.
	asOf := time.Date(2025, time.July, 20, 0, 0, 0, 0, time.UTC)
	assert.True(t, ComputeFine(policies, &due, dec("1000"), asOf).IsZero())

	// One day past the grace limit the full fixed fine applies.
	asOf = time.Date(2025, time.July, 21, 0, 0, 0, 0, time.UTC)
	assert.True(t, ComputeFine(policies, &due, dec("1000"), asOf).Equal(dec("50")))

	// Fixed fines do not grow with further lateness.
	asOf = time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, ComputeFine(policies, &due, dec("1000"), asOf).Equal(dec("50")))
}

func TestComputeFinePerDay(t *testing.T) {
	policies := []models.FinePolicy{{
		ApplyType: models.FineApplyPerDay,
		Amount:    dec("10"),
		GraceDays: 5,
	}}
	due := time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC)

	// Ten days past due, five of them beyond grace.
	asOf := time.Date(2025, time.July, 20, 0, 0, 0, 0, time.UTC)
	assert.True(t, ComputeFine(policies, &due, dec("1000"), asOf).Equal(dec("50")))

	// Per-day fines are monotonic in time.
	prev := decimal.Zero
	for day := 16; day <= 31; day++ {
		asOf := time.Date(2025, time.July, day, 0, 0, 0, 0, time.UTC)
		fine := ComputeFine(policies, &due, dec("1000"), asOf)
		assert.True(t, fine.GreaterThanOrEqual(prev), "day %d", day)
		prev = fine
	}
}

func TestComputeFinePercentage(t *testing.T) {
	policies := []models.FinePolicy{{
		ApplyType: models.FineApplyPercentage,
		Amount:    dec("2.5"),
		GraceDays: 0,
	}}
	due := time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC)
	asOf := time.Date(2025, time.July, 11, 0, 0, 0, 0, time.UTC)

	assert.True(t, ComputeFine(policies, &due, dec("1000"), asOf).Equal(dec("25")))
}

func TestComputeFineMaxAmountCapsPerPolicy(t *testing.T) {
	policies := []models.FinePolicy{{
		ApplyType: models.FineApplyPerDay,
		Amount:    dec("10"),
		GraceDays: 0,
		MaxAmount: decimal.NewNullDecimal(dec("35")),
	}}
	due := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	asOf := time.Date(2025, time.July, 31, 0, 0, 0, 0, time.UTC)

	assert.True(t, ComputeFine(policies, &due, dec("1000"), asOf).Equal(dec("35")))
}

func TestComputeFineSumsPolicies(t *testing.T) {
	// A fee-specific and a global policy both contribute; neither overrides
	// the other.
	feeID := "fee-1"
	policies := []models.FinePolicy{
		{FeeID: &feeID, ApplyType: models.FineApplyFixed, Amount: dec("20"), GraceDays: 0},
		{ApplyType: models.FineApplyPerDay, Amount: dec("5"), GraceDays: 2},
	}
	due := time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC)
	asOf := time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC)

	// Fixed 20 plus 3 late days at 5.
	assert.True(t, ComputeFine(policies, &due, dec("500"), asOf).Equal(dec("35")))
}

func TestComputeFineNilDueDate(t *testing.T) {
	policies := []models.FinePolicy{{ApplyType: models.FineApplyFixed, Amount: dec("50")}}
	asOf := time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, ComputeFine(policies, nil, dec("1000"), asOf).IsZero())
}

func TestComputeFineGraceBoundary(t *testing.T) {
	policies := []models.FinePolicy{{ApplyType: models.FineApplyFixed, Amount: dec("50"), GraceDays: 3}}
	due := time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC)

	// Exactly on the grace limit no fine applies yet.
	asOf := time.Date(2025, time.July, 13, 0, 0, 0, 0, time.UTC)
	assert.True(t, ComputeFine(policies, &due, dec("100"), asOf).IsZero())

	asOf = time.Date(2025, time.July, 14, 0, 0, 0, 0, time.UTC)
	assert.False(t, ComputeFine(policies, &due, dec("100"), asOf).IsZero())
}

func TestOutstandingFloorsAtZero(t *testing.T) {
	assert.True(t, Outstanding(dec("100"), dec("10"), dec("20"), dec("60")).Equal(dec("30")))
	assert.True(t, Outstanding(dec("100"), decimal.Zero, decimal.Zero, dec("150")).IsZero())
}

func TestDeriveStatus(t *testing.T) {
	today := time.Date(2025, time.July, 20, 0, 0, 0, 0, time.UTC)
	past := time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC)
	future := time.Date(2025, time.July, 25, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		amount   string
		fine     string
		discount string
		paid     string
		due      *time.Time
		want     models.StudentFeeStatus
	}{
		{"unpaid before due", "100", "0", "0", "0", &future, models.StudentFeePending},
		{"unpaid past due", "100", "0", "0", "0", &past, models.StudentFeeOverdue},
		{"partially paid past due", "100", "10", "0", "50", &past, models.StudentFeePartial},
		{"fully paid", "100", "0", "0", "100", &past, models.StudentFeePaid},
		{"discount settles the row", "100", "0", "100", "0", &past, models.StudentFeePaid},
		{"overpaid", "100", "0", "0", "120", &past, models.StudentFeePaid},
		{"no due date never overdue", "100", "0", "0", "0", nil, models.StudentFeePending},
		{"fine keeps paid row open", "100", "15", "0", "100", &past, models.StudentFeePartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(dec(tt.amount), dec(tt.fine), dec(tt.discount), dec(tt.paid), tt.due, today)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveStatusDueToday(t *testing.T) {
	today := time.Date(2025, time.July, 20, 0, 0, 0, 0, time.UTC)
	due := today
	// Due today is not overdue yet.
	assert.Equal(t, models.StudentFeePending, DeriveStatus(dec("100"), decimal.Zero, decimal.Zero, decimal.Zero, &due, today))
}
