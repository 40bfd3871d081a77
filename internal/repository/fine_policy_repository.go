package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

// FinePolicyRepository handles persistence of late-payment policies.
type FinePolicyRepository struct {
	db *sqlx.DB
}

// NewFinePolicyRepository constructs the repository.
func NewFinePolicyRepository(db *sqlx.DB) *FinePolicyRepository {
	return &FinePolicyRepository{db: db}
}

// Create persists a new fine policy.
func (r *FinePolicyRepository) Create(ctx context.Context, policy *models.FinePolicy) error {
	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO fine_policies (id, school_id, academic_year_id, fee_id, apply_type, amount, grace_days, max_amount, active, created_by, created_at)
        VALUES (:id, :school_id, :academic_year_id, :fee_id, :apply_type, :amount, :grace_days, :max_amount, :active, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, policy); err != nil {
		return fmt.Errorf("create fine policy: %w", err)
	}
	return nil
}

// List returns policies matching the filter.
func (r *FinePolicyRepository) List(ctx context.Context, filter models.FinePolicyFilter) ([]models.FinePolicy, error) {
	var conditions []string
	var args []interface{}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.FeeID != "" {
		conditions = append(conditions, fmt.Sprintf("fee_id = $%d", len(args)+1))
		args = append(args, filter.FeeID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := `SELECT id, school_id, academic_year_id, fee_id, apply_type, amount, grace_days, max_amount, active, created_by, created_at
        FROM fine_policies` + clause + ` ORDER BY created_at ASC`

	var policies []models.FinePolicy
	if err := r.db.SelectContext(ctx, &policies, query, args...); err != nil {
		return nil, fmt.Errorf("list fine policies: %w", err)
	}
	return policies, nil
}

// ListApplicable returns the active policies that apply to one fee in a
// school year: fee-specific rows first, then global (NULL fee_id) rows.
func (r *FinePolicyRepository) ListApplicable(ctx context.Context, schoolID, academicYearID, feeID string) ([]models.FinePolicy, error) {
	const query = `SELECT id, school_id, academic_year_id, fee_id, apply_type, amount, grace_days, max_amount, active, created_by, created_at
        FROM fine_policies
        WHERE school_id = $1 AND academic_year_id = $2 AND active = TRUE AND (fee_id = $3 OR fee_id IS NULL)
        ORDER BY fee_id NULLS LAST, created_at ASC`
	var policies []models.FinePolicy
	if err := r.db.SelectContext(ctx, &policies, query, schoolID, academicYearID, feeID); err != nil {
		return nil, fmt.Errorf("list applicable fine policies: %w", err)
	}
	return policies, nil
}

// SetActive toggles a policy's active flag.
func (r *FinePolicyRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE fine_policies SET active = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("set fine policy active: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
