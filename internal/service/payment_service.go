package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
	"github.com/noah-isme/sma-fees-api/pkg/export"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type paymentLedgerRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentFee, error)
	FindByIDTx(ctx context.Context, ext sqlx.ExtContext, id string) (*models.StudentFee, error)
	ApplyPaymentDelta(ctx context.Context, ext sqlx.ExtContext, id string, paidDelta, discountDelta decimal.Decimal, updatedBy string) error
	UpdateDerived(ctx context.Context, ext sqlx.ExtContext, id string, fine decimal.Decimal, status models.StudentFeeStatus, updatedBy string) error
}

type receiptRepository interface {
	Insert(ctx context.Context, ext sqlx.ExtContext, payment *models.StudentFeePayment) error
	FindByID(ctx context.Context, id string) (*models.StudentFeePayment, error)
	ListByStudentFee(ctx context.Context, studentFeeID string) ([]models.StudentFeePayment, error)
}

type paymentFeeReader interface {
	FindByID(ctx context.Context, id string) (*models.Fee, error)
}

type paymentMetrics interface {
	CountPayment(mode string)
}

type receiptRenderer interface {
	Render(receipt export.Receipt) ([]byte, error)
}

// RecordPaymentRequest describes one payment posting.
type RecordPaymentRequest struct {
	StudentFeeID  string          `json:"student_fee_id"`
	Amount        decimal.Decimal `json:"amount"`
	Mode          string          `json:"mode"`
	Reference     *string         `json:"reference,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	DiscountDelta decimal.Decimal `json:"discount_delta"`
	Actor         string          `json:"-"`
}

// PaymentResult returns the receipt and the refreshed ledger row.
type PaymentResult struct {
	Payment *models.StudentFeePayment `json:"payment"`
	Ledger  *models.StudentFee        `json:"ledger"`
}

// PaymentService appends receipts and keeps ledger totals, fines and
// statuses consistent under concurrent postings. Every posting is a single
// transaction: partial application is never observable, and a returned
// result means the commit succeeded.
type PaymentService struct {
	ledger   paymentLedgerRepository
	receipts receiptRepository
	fees     paymentFeeReader
	policies ledgerPolicyReader
	tx       txProvider
	cache    planCache
	metrics  paymentMetrics
	renderer receiptRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewPaymentService wires payment dependencies. cache, metrics and
// renderer may be nil.
func NewPaymentService(ledger paymentLedgerRepository, receipts receiptRepository, fees paymentFeeReader, policies ledgerPolicyReader, tx txProvider, cache planCache, metrics paymentMetrics, renderer receiptRenderer, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		ledger:   ledger,
		receipts: receipts,
		fees:     fees,
		policies: policies,
		tx:       tx,
		cache:    cache,
		metrics:  metrics,
		renderer: renderer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RecordPayment posts a payment against a ledger row. The paid and
// discount totals are incremented in a single UPDATE inside the
// transaction, then fine and status are recomputed from the
// post-increment totals before committing.
func (s *PaymentService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*PaymentResult, error) {
	if req.StudentFeeID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student fee id is required")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment amount must be positive")
	}
	if req.DiscountDelta.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "discount delta cannot be negative")
	}
	if req.Mode == "" {
		req.Mode = models.PaymentModeCash
	}

	if _, err := s.ledger.FindByID(ctx, req.StudentFeeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ledger row not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger row")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPaymentFailed.Code, appErrors.ErrPaymentFailed.Status, "failed to start transaction")
	}

	now := s.now()
	payment := &models.StudentFeePayment{
		StudentFeeID: req.StudentFeeID,
		Amount:       req.Amount,
		Mode:         req.Mode,
		Reference:    req.Reference,
		CreatedBy:    req.Actor,
	}
	if req.PaidAt != nil {
		payment.PaidAt = req.PaidAt.UTC()
	} else {
		payment.PaidAt = now
	}

	if err := s.receipts.Insert(ctx, tx, payment); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrPaymentFailed.Code, appErrors.ErrPaymentFailed.Status, "failed to write receipt")
	}
	if err := s.ledger.ApplyPaymentDelta(ctx, tx, req.StudentFeeID, req.Amount, req.DiscountDelta, req.Actor); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrPaymentFailed.Code, appErrors.ErrPaymentFailed.Status, "failed to update ledger totals")
	}

	row, err := s.ledger.FindByIDTx(ctx, tx, req.StudentFeeID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrPaymentFailed.Code, appErrors.ErrPaymentFailed.Status, "failed to reread ledger row")
	}

	policies, err := s.policies.ListApplicable(ctx, row.SchoolID, row.AcademicYearID, row.FeeID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrPaymentFailed.Code, appErrors.ErrPaymentFailed.Status, "failed to load fine policies")
	}
	fine := ComputeFine(policies, row.DueDate, row.Amount, now)
	status := DeriveStatus(row.Amount, fine, row.DiscountAmount, row.AmountPaid, row.DueDate, now)

	if err := s.ledger.UpdateDerived(ctx, tx, row.ID, fine, status, req.Actor); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrPaymentFailed.Code, appErrors.ErrPaymentFailed.Status, "failed to refresh derived fields")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPaymentFailed.Code, appErrors.ErrPaymentFailed.Status, "failed to commit payment")
	}

	row.FineAmount = fine
	row.Status = status

	if s.metrics != nil {
		s.metrics.CountPayment(req.Mode)
	}
	if s.cache != nil {
		if err := s.cache.InvalidateStudent(ctx, row.StudentID); err != nil {
			s.logger.Warn("plan cache invalidation failed", zap.String("student_id", row.StudentID), zap.Error(err))
		}
	}
	return &PaymentResult{Payment: payment, Ledger: row}, nil
}

// ListPayments returns the installment history for one ledger row.
func (s *PaymentService) ListPayments(ctx context.Context, studentFeeID string) ([]models.StudentFeePayment, error) {
	if studentFeeID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student fee id is required")
	}
	payments, err := s.receipts.ListByStudentFee(ctx, studentFeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// Receipt renders a PDF receipt for one payment.
func (s *PaymentService) Receipt(ctx context.Context, paymentID string) ([]byte, error) {
	if s.renderer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "receipts are disabled")
	}
	payment, err := s.receipts.FindByID(ctx, paymentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	row, err := s.ledger.FindByID(ctx, payment.StudentFeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger row")
	}
	fee, err := s.fees.FindByID(ctx, row.FeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee")
	}

	reference := ""
	if payment.Reference != nil {
		reference = *payment.Reference
	}
	receipt := export.Receipt{
		ReceiptNo:   payment.ID,
		StudentID:   row.StudentID,
		FeeName:     fee.Name,
		Mode:        payment.Mode,
		Reference:   reference,
		PaidAt:      payment.PaidAt,
		Amount:      payment.Amount.StringFixed(2),
		TotalPaid:   row.AmountPaid.StringFixed(2),
		Outstanding: Outstanding(row.Amount, row.FineAmount, row.DiscountAmount, row.AmountPaid).StringFixed(2),
		ReceivedBy:  payment.CreatedBy,
	}
	data, err := s.renderer.Render(receipt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return data, nil
}
