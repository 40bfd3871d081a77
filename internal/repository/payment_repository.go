package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

// PaymentRepository handles the append-only receipt table.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Insert writes an immutable receipt row. The caller supplies the
// transaction so the receipt commits together with the ledger update.
func (r *PaymentRepository) Insert(ctx context.Context, ext sqlx.ExtContext, payment *models.StudentFeePayment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = now
	}
	const query = `INSERT INTO student_fee_payments (id, student_fee_id, amount, mode, reference, paid_at, created_by, created_at)
        VALUES (:id, :student_fee_id, :amount, :mode, :reference, :paid_at, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, ext, query, payment); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// FindByID returns one receipt.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.StudentFeePayment, error) {
	const query = `SELECT id, student_fee_id, amount, mode, reference, paid_at, created_by, created_at
        FROM student_fee_payments WHERE id = $1`
	var payment models.StudentFeePayment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByStudentFee returns the installment history for one ledger row,
// oldest first.
func (r *PaymentRepository) ListByStudentFee(ctx context.Context, studentFeeID string) ([]models.StudentFeePayment, error) {
	const query = `SELECT id, student_fee_id, amount, mode, reference, paid_at, created_by, created_at
        FROM student_fee_payments WHERE student_fee_id = $1 ORDER BY paid_at ASC, created_at ASC`
	var payments []models.StudentFeePayment
	if err := r.db.SelectContext(ctx, &payments, query, studentFeeID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
