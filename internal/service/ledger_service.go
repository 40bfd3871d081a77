package service

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

type ledgerFeeReader interface {
	FindByID(ctx context.Context, id string) (*models.Fee, error)
	FindScheduleByFee(ctx context.Context, feeID string) (*models.FeeSchedule, error)
	ListActive(ctx context.Context, schoolID, academicYearID string) ([]models.Fee, error)
	LatestSchedules(ctx context.Context, feeIDs []string) (map[string]models.FeeSchedule, error)
	ResolveAmount(ctx context.Context, feeID, classID string, sectionID *string) (decimal.Decimal, *string, error)
}

type ledgerPolicyReader interface {
	ListApplicable(ctx context.Context, schoolID, academicYearID, feeID string) ([]models.FinePolicy, error)
}

type ledgerRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentFee, error)
	FindInMonth(ctx context.Context, studentID, feeID string, monthStart, monthEnd time.Time) (*models.StudentFee, error)
	AnyPaid(ctx context.Context, studentID, feeID string) (bool, error)
	FindLatestUnpaid(ctx context.Context, studentID, feeID string) (*models.StudentFee, error)
	ListLedger(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, error)
	Insert(ctx context.Context, row *models.StudentFee) error
	InsertIfAbsent(ctx context.Context, row *models.StudentFee, monthStart, monthEnd time.Time) (*models.StudentFee, bool, error)
}

type placementReader interface {
	FindPlacement(ctx context.Context, studentID string) (*models.StudentPlacement, error)
}

type ledgerMetrics interface {
	CountPlanBuilt()
	CountPlanCacheHit()
	CountRowEnsured(created bool)
}

type planCache interface {
	GetPlan(ctx context.Context, schoolID, academicYearID, studentID string, year, month int, dest interface{}) error
	SetPlan(ctx context.Context, schoolID, academicYearID, studentID string, year, month int, value interface{}, ttl time.Duration) error
	InvalidateStudent(ctx context.Context, studentID string) error
}

// MonthlyPlanRequest identifies the student-month to project.
type MonthlyPlanRequest struct {
	SchoolID       string `json:"school_id" validate:"required"`
	AcademicYearID string `json:"academic_year_id" validate:"required"`
	StudentID      string `json:"student_id" validate:"required"`
	Year           int    `json:"year" validate:"required,min=2000,max=2100"`
	Month          int    `json:"month" validate:"required,min=1,max=12"`
}

// EnsureRowRequest materializes one fee's obligation for a month.
type EnsureRowRequest struct {
	SchoolID       string `json:"school_id" validate:"required"`
	AcademicYearID string `json:"academic_year_id" validate:"required"`
	StudentID      string `json:"student_id" validate:"required"`
	FeeID          string `json:"fee_id" validate:"required"`
	Year           int    `json:"year" validate:"required,min=2000,max=2100"`
	Month          int    `json:"month" validate:"required,min=1,max=12"`
	Actor          string `json:"-"`
}

// AssignFeeRequest creates a ledger row directly, outside plan generation.
type AssignFeeRequest struct {
	SchoolID       string     `json:"school_id" validate:"required"`
	AcademicYearID string     `json:"academic_year_id" validate:"required"`
	StudentID      string     `json:"student_id" validate:"required"`
	FeeID          string     `json:"fee_id" validate:"required"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Actor          string     `json:"-"`
}

// LedgerResponse pairs a student's rows with their aggregated totals.
type LedgerResponse struct {
	Entries []models.LedgerEntry `json:"entries"`
	Summary models.LedgerSummary `json:"summary"`
}

// LedgerService builds monthly plans, materializes obligations and serves
// the ledger. It combines the schedule resolver, the amount resolver and
// existing ledger state; existing rows always win over fresh projections.
type LedgerService struct {
	fees       ledgerFeeReader
	policies   ledgerPolicyReader
	ledger     ledgerRepository
	placements placementReader
	cache      planCache
	metrics    ledgerMetrics
	cacheTTL   time.Duration
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewLedgerService constructs LedgerService. cache and metrics may be nil.
func NewLedgerService(fees ledgerFeeReader, policies ledgerPolicyReader, ledger ledgerRepository, placements placementReader, cache planCache, metrics ledgerMetrics, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *LedgerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &LedgerService{
		fees:       fees,
		policies:   policies,
		ledger:     ledger,
		placements: placements,
		cache:      cache,
		metrics:    metrics,
		cacheTTL:   cacheTTL,
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// BuildMonthlyPlan projects every active fee onto the target month,
// merging schedule output with existing ledger rows.
func (s *LedgerService) BuildMonthlyPlan(ctx context.Context, req MonthlyPlanRequest) ([]models.PlanRow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan request")
	}

	if s.cache != nil {
		var cached []models.PlanRow
		if err := s.cache.GetPlan(ctx, req.SchoolID, req.AcademicYearID, req.StudentID, req.Year, req.Month, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.CountPlanCacheHit()
			}
			return cached, nil
		}
	}

	placement, err := s.placements.FindPlacement(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student placement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student placement")
	}

	fees, err := s.fees.ListActive(ctx, req.SchoolID, req.AcademicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fees")
	}
	feeIDs := make([]string, 0, len(fees))
	for _, fee := range fees {
		feeIDs = append(feeIDs, fee.ID)
	}
	schedules, err := s.fees.LatestSchedules(ctx, feeIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules")
	}

	rows := make([]models.PlanRow, 0, len(fees))
	for _, fee := range fees {
		schedule, ok := schedules[fee.ID]
		if !ok {
			continue
		}
		row, err := s.planRowForFee(ctx, req, placement, fee, schedule)
		if err != nil {
			return nil, err
		}
		if row != nil {
			rows = append(rows, *row)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		di, dj := rows[i].DueDate, rows[j].DueDate
		if di == nil && dj == nil {
			return rows[i].FeeName < rows[j].FeeName
		}
		if di == nil {
			return false
		}
		if dj == nil {
			return true
		}
		if !di.Equal(*dj) {
			return di.Before(*dj)
		}
		return rows[i].FeeName < rows[j].FeeName
	})

	if s.cache != nil {
		if err := s.cache.SetPlan(ctx, req.SchoolID, req.AcademicYearID, req.StudentID, req.Year, req.Month, rows, s.cacheTTL); err != nil {
			s.logger.Warn("plan cache write failed", zap.Error(err))
		}
	}
	if s.metrics != nil {
		s.metrics.CountPlanBuilt()
	}
	return rows, nil
}

// planRowForFee applies the plan precedence for one fee. A nil row means
// the fee contributes nothing to this month.
func (s *LedgerService) planRowForFee(ctx context.Context, req MonthlyPlanRequest, placement *models.StudentPlacement, fee models.Fee, schedule models.FeeSchedule) (*models.PlanRow, error) {
	month := time.Month(req.Month)
	monthStart, monthEnd := MonthBounds(req.Year, month)
	now := s.now()

	scheduleDue := DueDateForMonth(schedule, req.Year, month)

	existing, err := s.ledger.FindInMonth(ctx, req.StudentID, fee.ID, monthStart, monthEnd)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect ledger")
	}
	if existing != nil {
		// A paid one-time fee must not reappear in its month.
		if existing.Status == models.StudentFeePaid {
			return nil, nil
		}
		return s.rowFromLedger(ctx, fee, schedule, existing, now)
	}

	if schedule.Type == models.ScheduleTypeOneTime || schedule.Type == models.ScheduleTypeOnDemand {
		paid, err := s.ledger.AnyPaid(ctx, req.StudentID, fee.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect ledger")
		}
		if paid {
			// Satisfied for life, not per month.
			return nil, nil
		}
		unpaid, err := s.ledger.FindLatestUnpaid(ctx, req.StudentID, fee.ID)
		if err != nil && err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect ledger")
		}
		if unpaid != nil {
			// Surface the missed obligation instead of projecting a duplicate.
			return s.rowFromLedger(ctx, fee, schedule, unpaid, now)
		}
		if scheduleDue == nil && schedule.Type == models.ScheduleTypeOnDemand {
			scheduleDue = onDemandCarryForward(schedule, req.Year, month)
		}
	}

	if scheduleDue == nil {
		return nil, nil
	}
	return s.projectRow(ctx, req, placement, fee, schedule, scheduleDue, now)
}

// onDemandCarryForward keeps a just-expired on-demand obligation visible
// for one more month under its original due date, so it reads as overdue
// instead of silently vanishing.
func onDemandCarryForward(schedule models.FeeSchedule, year int, month time.Month) *time.Time {
	if schedule.EndDate == nil {
		return nil
	}
	end := dateOnly(*schedule.EndDate)
	if end.Year()*12+int(end.Month())+1 != year*12+int(month) {
		return nil
	}
	return &end
}

func (s *LedgerService) rowFromLedger(ctx context.Context, fee models.Fee, schedule models.FeeSchedule, row *models.StudentFee, now time.Time) (*models.PlanRow, error) {
	policies, err := s.policies.ListApplicable(ctx, row.SchoolID, row.AcademicYearID, fee.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fine policies")
	}
	fine := ComputeFine(policies, row.DueDate, row.Amount, now)
	status := DeriveStatus(row.Amount, fine, row.DiscountAmount, row.AmountPaid, row.DueDate, now)

	plan := models.PlanRow{
		StudentFee:   *row,
		FeeName:      fee.Name,
		ScheduleType: schedule.Type,
		Outstanding:  Outstanding(row.Amount, fine, row.DiscountAmount, row.AmountPaid),
	}
	plan.FineAmount = fine
	plan.Status = status
	return &plan, nil
}

func (s *LedgerService) projectRow(ctx context.Context, req MonthlyPlanRequest, placement *models.StudentPlacement, fee models.Fee, schedule models.FeeSchedule, due *time.Time, now time.Time) (*models.PlanRow, error) {
	amount, mappingID, err := s.fees.ResolveAmount(ctx, fee.ID, placement.ClassID, placement.SectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve amount")
	}
	if !amount.IsPositive() {
		// Unassignable for this class/section.
		return nil, nil
	}
	policies, err := s.policies.ListApplicable(ctx, req.SchoolID, req.AcademicYearID, fee.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fine policies")
	}
	fine := ComputeFine(policies, due, amount, now)
	status := DeriveStatus(amount, fine, decimal.Zero, decimal.Zero, due, now)

	return &models.PlanRow{
		StudentFee: models.StudentFee{
			SchoolID:       req.SchoolID,
			AcademicYearID: req.AcademicYearID,
			StudentID:      req.StudentID,
			FeeID:          fee.ID,
			MappingID:      mappingID,
			DueDate:        due,
			Amount:         amount,
			FineAmount:     fine,
			DiscountAmount: decimal.Zero,
			AmountPaid:     decimal.Zero,
			Status:         status,
		},
		FeeName:      fee.Name,
		ScheduleType: schedule.Type,
		Outstanding:  Outstanding(amount, fine, decimal.Zero, decimal.Zero),
		Projected:    true,
	}, nil
}

// EnsureMonthlyRow materializes the month's obligation for one fee. It
// re-derives the same due date and amount the plan builder would, then
// inserts only when no row exists in the month window. Idempotent: calling
// it twice creates exactly one row.
func (s *LedgerService) EnsureMonthlyRow(ctx context.Context, req EnsureRowRequest) (*models.StudentFee, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ensure request")
	}

	fee, err := s.fees.FindByID(ctx, req.FeeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee")
	}
	schedule, err := s.fees.FindScheduleByFee(ctx, req.FeeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "fee schedule not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	placement, err := s.placements.FindPlacement(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student placement not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student placement")
	}

	planReq := MonthlyPlanRequest{
		SchoolID:       req.SchoolID,
		AcademicYearID: req.AcademicYearID,
		StudentID:      req.StudentID,
		Year:           req.Year,
		Month:          req.Month,
	}
	monthStart, monthEnd := MonthBounds(req.Year, time.Month(req.Month))
	plan, err := s.planRowForFee(ctx, planReq, placement, *fee, *schedule)
	if err != nil {
		return nil, false, err
	}
	if plan == nil {
		// A settled row still occupies the month; re-running the sweep
		// after payments must stay a no-op, not an error.
		settled, err := s.ledger.FindInMonth(ctx, req.StudentID, req.FeeID, monthStart, monthEnd)
		if err != nil && err != sql.ErrNoRows {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect ledger")
		}
		if settled != nil {
			return settled, false, nil
		}
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "fee produces no obligation for this month")
	}
	if !plan.Projected {
		existing := plan.StudentFee
		return &existing, false, nil
	}

	row := plan.StudentFee
	row.CreatedBy = req.Actor
	row.UpdatedBy = req.Actor
	inserted, created, err := s.ledger.InsertIfAbsent(ctx, &row, monthStart, monthEnd)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to materialize row")
	}
	if s.metrics != nil {
		s.metrics.CountRowEnsured(created)
	}
	if created {
		s.invalidatePlans(ctx, req.StudentID)
	}
	return inserted, created, nil
}

// GetLedger returns a student's obligations with freshly derived fines,
// statuses and totals.
func (s *LedgerService) GetLedger(ctx context.Context, filter models.LedgerFilter) (*LedgerResponse, error) {
	if filter.SchoolID == "" || filter.AcademicYearID == "" || filter.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "school, academic year and student are required")
	}
	entries, err := s.ledger.ListLedger(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledger")
	}

	now := s.now()
	summary := models.LedgerSummary{
		Amount:      decimal.Zero,
		FineAmount:  decimal.Zero,
		Discount:    decimal.Zero,
		AmountPaid:  decimal.Zero,
		Outstanding: decimal.Zero,
	}
	policiesByFee := make(map[string][]models.FinePolicy)
	for i := range entries {
		entry := &entries[i]
		policies, ok := policiesByFee[entry.FeeID]
		if !ok {
			policies, err = s.policies.ListApplicable(ctx, filter.SchoolID, filter.AcademicYearID, entry.FeeID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fine policies")
			}
			policiesByFee[entry.FeeID] = policies
		}
		fine := ComputeFine(policies, entry.DueDate, entry.Amount, now)
		entry.FineAmount = fine
		entry.Status = DeriveStatus(entry.Amount, fine, entry.DiscountAmount, entry.AmountPaid, entry.DueDate, now)
		entry.Outstanding = Outstanding(entry.Amount, fine, entry.DiscountAmount, entry.AmountPaid)

		summary.Amount = summary.Amount.Add(entry.Amount)
		summary.FineAmount = summary.FineAmount.Add(fine)
		summary.Discount = summary.Discount.Add(entry.DiscountAmount)
		summary.AmountPaid = summary.AmountPaid.Add(entry.AmountPaid)
		summary.Outstanding = summary.Outstanding.Add(entry.Outstanding)
	}
	return &LedgerResponse{Entries: entries, Summary: summary}, nil
}

// AssignFee creates a ledger row for one student and fee directly. The
// resolved amount is frozen into the row; later mapping edits never touch
// it.
func (s *LedgerService) AssignFee(ctx context.Context, req AssignFeeRequest) (*models.StudentFee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if _, err := s.fees.FindByID(ctx, req.FeeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee")
	}
	placement, err := s.placements.FindPlacement(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student placement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student placement")
	}

	amount, mappingID, err := s.fees.ResolveAmount(ctx, req.FeeID, placement.ClassID, placement.SectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve amount")
	}
	if !amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrUnassignableFee, "")
	}

	policies, err := s.policies.ListApplicable(ctx, req.SchoolID, req.AcademicYearID, req.FeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fine policies")
	}
	now := s.now()
	fine := ComputeFine(policies, req.DueDate, amount, now)

	row := &models.StudentFee{
		SchoolID:       req.SchoolID,
		AcademicYearID: req.AcademicYearID,
		StudentID:      req.StudentID,
		FeeID:          req.FeeID,
		MappingID:      mappingID,
		DueDate:        req.DueDate,
		Amount:         amount,
		FineAmount:     fine,
		DiscountAmount: decimal.Zero,
		AmountPaid:     decimal.Zero,
		Status:         DeriveStatus(amount, fine, decimal.Zero, decimal.Zero, req.DueDate, now),
		CreatedBy:      req.Actor,
		UpdatedBy:      req.Actor,
	}
	if err := s.ledger.Insert(ctx, row); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign fee")
	}
	s.invalidatePlans(ctx, req.StudentID)
	return row, nil
}

func (s *LedgerService) invalidatePlans(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateStudent(ctx, studentID); err != nil {
		s.logger.Warn("plan cache invalidation failed", zap.String("student_id", studentID), zap.Error(err))
	}
}
