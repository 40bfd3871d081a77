package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Common payment modes. The column is free-form text; these are the values
// the clients send today.
const (
	PaymentModeCash   = "CASH"
	PaymentModeBank   = "BANK_TRANSFER"
	PaymentModeOnline = "ONLINE"
	PaymentModeCheque = "CHEQUE"
	PaymentModeWaiver = "WAIVER"
)

// StudentFeePayment is an append-only receipt against one ledger row.
// Rows are immutable once written; installments append further rows.
type StudentFeePayment struct {
	ID           string          `db:"id" json:"id"`
	StudentFeeID string          `db:"student_fee_id" json:"student_fee_id"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Mode         string          `db:"mode" json:"mode"`
	Reference    *string         `db:"reference" json:"reference,omitempty"`
	PaidAt       time.Time       `db:"paid_at" json:"paid_at"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
