package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

const uniqueViolation = "23505"

const studentFeeColumns = `id, school_id, academic_year_id, student_id, fee_id, mapping_id, due_date,
        amount, fine_amount, discount_amount, amount_paid, status, created_by, updated_by, created_at, updated_at`

// StudentFeeRepository owns the ledger rows: one obligation per student,
// fee and due date. Rows are never deleted.
type StudentFeeRepository struct {
	db *sqlx.DB
}

// NewStudentFeeRepository constructs the repository.
func NewStudentFeeRepository(db *sqlx.DB) *StudentFeeRepository {
	return &StudentFeeRepository{db: db}
}

// FindByID returns a ledger row by its ID.
func (r *StudentFeeRepository) FindByID(ctx context.Context, id string) (*models.StudentFee, error) {
	return r.findByID(ctx, r.db, id)
}

// FindByIDTx reads a ledger row through the caller's transaction, so the
// payment recorder sees post-increment totals before committing.
func (r *StudentFeeRepository) FindByIDTx(ctx context.Context, ext sqlx.ExtContext, id string) (*models.StudentFee, error) {
	return r.findByID(ctx, ext, id)
}

func (r *StudentFeeRepository) findByID(ctx context.Context, q sqlx.QueryerContext, id string) (*models.StudentFee, error) {
	query := `SELECT ` + studentFeeColumns + ` FROM student_fees WHERE id = $1`
	var row models.StudentFee
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// FindInMonth returns the ledger row for (student, fee) whose due date
// falls inside [monthStart, monthEnd], if any.
func (r *StudentFeeRepository) FindInMonth(ctx context.Context, studentID, feeID string, monthStart, monthEnd time.Time) (*models.StudentFee, error) {
	query := `SELECT ` + studentFeeColumns + ` FROM student_fees
        WHERE student_id = $1 AND fee_id = $2 AND due_date >= $3 AND due_date <= $4
        ORDER BY due_date DESC LIMIT 1`
	var row models.StudentFee
	if err := r.db.GetContext(ctx, &row, query, studentID, feeID, monthStart, monthEnd); err != nil {
		return nil, err
	}
	return &row, nil
}

// AnyPaid reports whether any row for (student, fee) has been fully paid.
// One-time and on-demand fees are satisfied for life once one row is paid.
func (r *StudentFeeRepository) AnyPaid(ctx context.Context, studentID, feeID string) (bool, error) {
	const query = `SELECT 1 FROM student_fees WHERE student_id = $1 AND fee_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, feeID, models.StudentFeePaid); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check paid rows: %w", err)
	}
	return true, nil
}

// FindLatestUnpaid returns the most recent row for (student, fee) that is
// not fully paid, regardless of month.
func (r *StudentFeeRepository) FindLatestUnpaid(ctx context.Context, studentID, feeID string) (*models.StudentFee, error) {
	query := `SELECT ` + studentFeeColumns + ` FROM student_fees
        WHERE student_id = $1 AND fee_id = $2 AND status <> $3
        ORDER BY due_date DESC NULLS LAST, created_at DESC LIMIT 1`
	var row models.StudentFee
	if err := r.db.GetContext(ctx, &row, query, studentID, feeID, models.StudentFeePaid); err != nil {
		return nil, err
	}
	return &row, nil
}

// ListLedger returns a student's ledger rows enriched with fee names.
func (r *StudentFeeRepository) ListLedger(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, error) {
	conditions := []string{"sf.school_id = $1", "sf.academic_year_id = $2", "sf.student_id = $3"}
	args := []interface{}{filter.SchoolID, filter.AcademicYearID, filter.StudentID}

	if filter.FeeID != "" {
		conditions = append(conditions, fmt.Sprintf("sf.fee_id = $%d", len(args)+1))
		args = append(args, filter.FeeID)
	}
	if !filter.IncludePaid {
		conditions = append(conditions, fmt.Sprintf("sf.status <> $%d", len(args)+1))
		args = append(args, models.StudentFeePaid)
	}
	if filter.OnlyDue {
		conditions = append(conditions, "sf.due_date IS NOT NULL AND sf.due_date <= CURRENT_DATE")
	}

	query := fmt.Sprintf(`SELECT sf.id, sf.school_id, sf.academic_year_id, sf.student_id, sf.fee_id, sf.mapping_id, sf.due_date,
        sf.amount, sf.fine_amount, sf.discount_amount, sf.amount_paid, sf.status, sf.created_by, sf.updated_by, sf.created_at, sf.updated_at,
        f.name AS fee_name
        FROM student_fees sf
        JOIN fees f ON f.id = sf.fee_id
        WHERE %s
        ORDER BY sf.due_date ASC NULLS LAST, f.name ASC`, strings.Join(conditions, " AND "))

	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	return entries, nil
}

// Insert persists a ledger row unconditionally.
func (r *StudentFeeRepository) Insert(ctx context.Context, row *models.StudentFee) error {
	prepareStudentFee(row)
	const query = `INSERT INTO student_fees (id, school_id, academic_year_id, student_id, fee_id, mapping_id, due_date,
        amount, fine_amount, discount_amount, amount_paid, status, created_by, updated_by, created_at, updated_at)
        VALUES (:id, :school_id, :academic_year_id, :student_id, :fee_id, :mapping_id, :due_date,
        :amount, :fine_amount, :discount_amount, :amount_paid, :status, :created_by, :updated_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert student fee: %w", err)
	}
	return nil
}

// InsertIfAbsent materializes a ledger row for the month window unless one
// already exists. It is safe to call concurrently for the same
// (student, fee, month): a unique-constraint race is recovered by
// re-reading the winning row instead of erroring. The bool reports whether
// this call created the row.
func (r *StudentFeeRepository) InsertIfAbsent(ctx context.Context, row *models.StudentFee, monthStart, monthEnd time.Time) (*models.StudentFee, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin ensure tx: %w", err)
	}

	selectQuery := `SELECT ` + studentFeeColumns + ` FROM student_fees
        WHERE student_id = $1 AND fee_id = $2 AND due_date >= $3 AND due_date <= $4
        ORDER BY due_date DESC LIMIT 1`
	var existing models.StudentFee
	err = sqlx.GetContext(ctx, tx, &existing, selectQuery, row.StudentID, row.FeeID, monthStart, monthEnd)
	if err == nil {
		tx.Rollback() //nolint:errcheck
		return &existing, false, nil
	}
	if err != sql.ErrNoRows {
		tx.Rollback() //nolint:errcheck
		return nil, false, fmt.Errorf("check existing row: %w", err)
	}

	prepareStudentFee(row)
	const insertQuery = `INSERT INTO student_fees (id, school_id, academic_year_id, student_id, fee_id, mapping_id, due_date,
        amount, fine_amount, discount_amount, amount_paid, status, created_by, updated_by, created_at, updated_at)
        VALUES (:id, :school_id, :academic_year_id, :student_id, :fee_id, :mapping_id, :due_date,
        :amount, :fine_amount, :discount_amount, :amount_paid, :status, :created_by, :updated_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, insertQuery, row); err != nil {
		tx.Rollback() //nolint:errcheck
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			// Lost the race; someone else materialized the month.
			var winner models.StudentFee
			if err := r.db.GetContext(ctx, &winner, selectQuery, row.StudentID, row.FeeID, monthStart, monthEnd); err != nil {
				return nil, false, fmt.Errorf("reread after conflict: %w", err)
			}
			return &winner, false, nil
		}
		return nil, false, fmt.Errorf("insert student fee: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit ensure tx: %w", err)
	}
	return row, true, nil
}

// ApplyPaymentDelta increments the paid and discount totals in a single
// UPDATE so concurrent payments on the same row never lose updates. Must
// be called inside the payment transaction.
func (r *StudentFeeRepository) ApplyPaymentDelta(ctx context.Context, ext sqlx.ExtContext, id string, paidDelta, discountDelta decimal.Decimal, updatedBy string) error {
	const query = `UPDATE student_fees
        SET amount_paid = amount_paid + $2, discount_amount = discount_amount + $3, updated_by = $4, updated_at = $5
        WHERE id = $1`
	res, err := ext.ExecContext(ctx, query, id, paidDelta, discountDelta, updatedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("apply payment delta: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateDerived caches the freshly computed fine and status on the row.
func (r *StudentFeeRepository) UpdateDerived(ctx context.Context, ext sqlx.ExtContext, id string, fine decimal.Decimal, status models.StudentFeeStatus, updatedBy string) error {
	const query = `UPDATE student_fees SET fine_amount = $2, status = $3, updated_by = $4, updated_at = $5 WHERE id = $1`
	if _, err := ext.ExecContext(ctx, query, id, fine, status, updatedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("update derived fields: %w", err)
	}
	return nil
}

func prepareStudentFee(row *models.StudentFee) {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	if row.Status == "" {
		row.Status = models.StudentFeePending
	}
	if row.UpdatedBy == "" {
		row.UpdatedBy = row.CreatedBy
	}
}
