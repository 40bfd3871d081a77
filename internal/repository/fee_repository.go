package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

// FeeRepository handles persistence of fees, their schedules and
// class/section amount mappings.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs the repository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// Create persists a new fee.
func (r *FeeRepository) Create(ctx context.Context, fee *models.Fee) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if fee.CreatedAt.IsZero() {
		fee.CreatedAt = now
	}
	fee.UpdatedAt = now
	const query = `INSERT INTO fees (id, school_id, academic_year_id, name, active, created_by, updated_by, created_at, updated_at)
        VALUES (:id, :school_id, :academic_year_id, :name, :active, :created_by, :updated_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("create fee: %w", err)
	}
	return nil
}

// CreateSchedule persists a schedule for a fee.
func (r *FeeRepository) CreateSchedule(ctx context.Context, schedule *models.FeeSchedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO fee_schedules (id, fee_id, schedule_type, interval_months, day_of_month, start_date, end_date, created_at)
        VALUES (:id, :fee_id, :schedule_type, :interval_months, :day_of_month, :start_date, :end_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create fee schedule: %w", err)
	}
	return nil
}

// FindByID returns a fee by its ID.
func (r *FeeRepository) FindByID(ctx context.Context, id string) (*models.Fee, error) {
	const query = `SELECT id, school_id, academic_year_id, name, active, created_by, updated_by, created_at, updated_at
        FROM fees WHERE id = $1`
	var fee models.Fee
	if err := r.db.GetContext(ctx, &fee, query, id); err != nil {
		return nil, err
	}
	return &fee, nil
}

// FindScheduleByFee returns the fee's current schedule. The legacy schema
// allowed several rows per fee; the most recent one wins.
func (r *FeeRepository) FindScheduleByFee(ctx context.Context, feeID string) (*models.FeeSchedule, error) {
	const query = `SELECT id, fee_id, schedule_type, interval_months, day_of_month, start_date, end_date, created_at
        FROM fee_schedules WHERE fee_id = $1 ORDER BY created_at DESC LIMIT 1`
	var schedule models.FeeSchedule
	if err := r.db.GetContext(ctx, &schedule, query, feeID); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// List returns fees matching the filter with a total count.
func (r *FeeRepository) List(ctx context.Context, filter models.FeeFilter) ([]models.Fee, int, error) {
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
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, school_id, academic_year_id, name, active, created_by, updated_by, created_at, updated_at
        FROM fees%s ORDER BY name ASC LIMIT %d OFFSET %d`, clause, size, offset)

	var fees []models.Fee
	if err := r.db.SelectContext(ctx, &fees, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fees: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM fees" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count fees: %w", err)
	}
	return fees, total, nil
}

// ListActive returns all active fees for a school year.
func (r *FeeRepository) ListActive(ctx context.Context, schoolID, academicYearID string) ([]models.Fee, error) {
	const query = `SELECT id, school_id, academic_year_id, name, active, created_by, updated_by, created_at, updated_at
        FROM fees WHERE school_id = $1 AND academic_year_id = $2 AND active = TRUE ORDER BY name ASC`
	var fees []models.Fee
	if err := r.db.SelectContext(ctx, &fees, query, schoolID, academicYearID); err != nil {
		return nil, fmt.Errorf("list active fees: %w", err)
	}
	return fees, nil
}

// LatestSchedules returns the current schedule for each of the given fees.
func (r *FeeRepository) LatestSchedules(ctx context.Context, feeIDs []string) (map[string]models.FeeSchedule, error) {
	result := make(map[string]models.FeeSchedule, len(feeIDs))
	if len(feeIDs) == 0 {
		return result, nil
	}
	placeholders := make([]string, len(feeIDs))
	args := make([]interface{}, len(feeIDs))
	for i, id := range feeIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT DISTINCT ON (fee_id) id, fee_id, schedule_type, interval_months, day_of_month, start_date, end_date, created_at
        FROM fee_schedules WHERE fee_id IN (%s) ORDER BY fee_id, created_at DESC`, strings.Join(placeholders, ","))
	var schedules []models.FeeSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, fmt.Errorf("load fee schedules: %w", err)
	}
	for _, s := range schedules {
		result[s.FeeID] = s
	}
	return result, nil
}

// SetActive toggles a fee's active flag.
func (r *FeeRepository) SetActive(ctx context.Context, id string, active bool, updatedBy string) error {
	const query = `UPDATE fees SET active = $2, updated_by = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, active, updatedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set fee active: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateMapping persists a class/section amount mapping.
func (r *FeeRepository) CreateMapping(ctx context.Context, mapping *models.ClassSectionMapping) error {
	if mapping.ID == "" {
		mapping.ID = uuid.NewString()
	}
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO class_section_mappings (id, fee_id, class_id, section_id, amount, active, created_by, created_at)
        VALUES (:id, :fee_id, :class_id, :section_id, :amount, :active, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mapping); err != nil {
		return fmt.Errorf("create mapping: %w", err)
	}
	return nil
}

// ListMappings returns all mappings for a fee.
func (r *FeeRepository) ListMappings(ctx context.Context, feeID string) ([]models.ClassSectionMapping, error) {
	const query = `SELECT id, fee_id, class_id, section_id, amount, active, created_by, created_at
        FROM class_section_mappings WHERE fee_id = $1 ORDER BY class_id, section_id NULLS FIRST`
	var mappings []models.ClassSectionMapping
	if err := r.db.SelectContext(ctx, &mappings, query, feeID); err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	return mappings, nil
}

type mappingAmount struct {
	ID     string          `db:"id"`
	Amount decimal.Decimal `db:"amount"`
}

// ResolveAmount resolves the amount a student owes for a fee through the
// mapping fallback chain: exact class+section match, then class-only
// mapping, then the minimum active amount for the fee. A zero amount with
// no mapping ID means the fee is unassignable for this class/section.
func (r *FeeRepository) ResolveAmount(ctx context.Context, feeID, classID string, sectionID *string) (decimal.Decimal, *string, error) {
	var m mappingAmount

	if sectionID != nil && *sectionID != "" {
		const exact = `SELECT id, amount FROM class_section_mappings
            WHERE fee_id = $1 AND class_id = $2 AND section_id = $3 AND active = TRUE LIMIT 1`
		err := r.db.GetContext(ctx, &m, exact, feeID, classID, *sectionID)
		if err == nil {
			return m.Amount, &m.ID, nil
		}
		if err != sql.ErrNoRows {
			return decimal.Zero, nil, fmt.Errorf("resolve amount (exact): %w", err)
		}
	}

	const classOnly = `SELECT id, amount FROM class_section_mappings
        WHERE fee_id = $1 AND class_id = $2 AND section_id IS NULL AND active = TRUE LIMIT 1`
	err := r.db.GetContext(ctx, &m, classOnly, feeID, classID)
	if err == nil {
		return m.Amount, &m.ID, nil
	}
	if err != sql.ErrNoRows {
		return decimal.Zero, nil, fmt.Errorf("resolve amount (class): %w", err)
	}

	const minimum = `SELECT id, amount FROM class_section_mappings
        WHERE fee_id = $1 AND active = TRUE ORDER BY amount ASC LIMIT 1`
	err = r.db.GetContext(ctx, &m, minimum, feeID)
	if err == nil {
		return m.Amount, &m.ID, nil
	}
	if err != sql.ErrNoRows {
		return decimal.Zero, nil, fmt.Errorf("resolve amount (minimum): %w", err)
	}

	return decimal.Zero, nil, nil
}
