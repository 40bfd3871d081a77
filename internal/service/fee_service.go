package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

type feeRepository interface {
	Create(ctx context.Context, fee *models.Fee) error
	CreateSchedule(ctx context.Context, schedule *models.FeeSchedule) error
	FindByID(ctx context.Context, id string) (*models.Fee, error)
	FindScheduleByFee(ctx context.Context, feeID string) (*models.FeeSchedule, error)
	List(ctx context.Context, filter models.FeeFilter) ([]models.Fee, int, error)
	SetActive(ctx context.Context, id string, active bool, updatedBy string) error
	CreateMapping(ctx context.Context, mapping *models.ClassSectionMapping) error
	ListMappings(ctx context.Context, feeID string) ([]models.ClassSectionMapping, error)
}

type finePolicyRepository interface {
	Create(ctx context.Context, policy *models.FinePolicy) error
	List(ctx context.Context, filter models.FinePolicyFilter) ([]models.FinePolicy, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// CreateFeeRequest creates a fee together with its schedule.
type CreateFeeRequest struct {
	SchoolID       string              `json:"school_id" validate:"required"`
	AcademicYearID string              `json:"academic_year_id" validate:"required"`
	Name           string              `json:"name" validate:"required,min=2,max=120"`
	ScheduleType   models.ScheduleType `json:"schedule_type" validate:"required,oneof=ONE_TIME RECURRING ON_DEMAND"`
	IntervalMonths int                 `json:"interval_months" validate:"min=0,max=12"`
	DayOfMonth     int                 `json:"day_of_month" validate:"min=0,max=31"`
	StartDate      *time.Time          `json:"start_date,omitempty"`
	EndDate        *time.Time          `json:"end_date,omitempty"`
	Actor          string              `json:"-"`
}

// CreateMappingRequest attaches a class/section amount to a fee.
type CreateMappingRequest struct {
	FeeID     string          `json:"fee_id" validate:"required"`
	ClassID   string          `json:"class_id" validate:"required"`
	SectionID *string         `json:"section_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Actor     string          `json:"-"`
}

// CreatePolicyRequest creates a fine policy. A nil FeeID makes it global.
type CreatePolicyRequest struct {
	SchoolID       string               `json:"school_id" validate:"required"`
	AcademicYearID string               `json:"academic_year_id" validate:"required"`
	FeeID          *string              `json:"fee_id,omitempty"`
	ApplyType      models.FineApplyType `json:"apply_type" validate:"required,oneof=FIXED PER_DAY PERCENTAGE"`
	Amount         decimal.Decimal      `json:"amount"`
	GraceDays      int                  `json:"grace_days" validate:"min=0"`
	MaxAmount      *decimal.Decimal     `json:"max_amount,omitempty"`
	Actor          string               `json:"-"`
}

// FeeService manages the fee catalog: fees, schedules, class/section
// amount mappings and fine policies.
type FeeService struct {
	fees     feeRepository
	policies finePolicyRepository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewFeeService wires catalog dependencies.
func NewFeeService(fees feeRepository, policies finePolicyRepository, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{fees: fees, policies: policies, validate: validate, logger: logger}
}

// CreateFee creates a fee and its schedule.
func (s *FeeService) CreateFee(ctx context.Context, req CreateFeeRequest) (*models.FeeDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee payload")
	}
	if req.ScheduleType == models.ScheduleTypeOneTime && req.StartDate == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "one-time fees require a start date")
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date cannot precede start date")
	}

	fee := &models.Fee{
		SchoolID:       req.SchoolID,
		AcademicYearID: req.AcademicYearID,
		Name:           req.Name,
		Active:         true,
		CreatedBy:      req.Actor,
		UpdatedBy:      req.Actor,
	}
	if err := s.fees.Create(ctx, fee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee")
	}

	schedule := &models.FeeSchedule{
		FeeID:          fee.ID,
		Type:           req.ScheduleType,
		IntervalMonths: req.IntervalMonths,
		DayOfMonth:     req.DayOfMonth,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	}
	if err := s.fees.CreateSchedule(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee schedule")
	}

	s.logger.Info("fee created",
		zap.String("fee_id", fee.ID),
		zap.String("school_id", fee.SchoolID),
		zap.String("schedule_type", string(schedule.Type)))
	return &models.FeeDetail{Fee: *fee, Schedule: schedule}, nil
}

// GetFee returns a fee with its current schedule.
func (s *FeeService) GetFee(ctx context.Context, id string) (*models.FeeDetail, error) {
	fee, err := s.fees.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee")
	}
	detail := &models.FeeDetail{Fee: *fee}
	schedule, err := s.fees.FindScheduleByFee(ctx, id)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee schedule")
	}
	if err == nil {
		detail.Schedule = schedule
	}
	return detail, nil
}

// ListFees returns fees matching the filter with a total count.
func (s *FeeService) ListFees(ctx context.Context, filter models.FeeFilter) ([]models.Fee, int, error) {
	fees, total, err := s.fees.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fees")
	}
	return fees, total, nil
}

// SetFeeActive toggles a fee. Deactivated fees drop out of future plans;
// ledger rows already written keep their frozen amounts.
func (s *FeeService) SetFeeActive(ctx context.Context, id string, active bool, actor string) error {
	if err := s.fees.SetActive(ctx, id, active, actor); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fee")
	}
	return nil
}

// CreateMapping attaches an amount to a fee for a class or class+section.
func (s *FeeService) CreateMapping(ctx context.Context, req CreateMappingRequest) (*models.ClassSectionMapping, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mapping payload")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mapping amount must be positive")
	}
	if _, err := s.fees.FindByID(ctx, req.FeeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee")
	}

	mapping := &models.ClassSectionMapping{
		FeeID:     req.FeeID,
		ClassID:   req.ClassID,
		SectionID: req.SectionID,
		Amount:    req.Amount,
		Active:    true,
		CreatedBy: req.Actor,
	}
	if err := s.fees.CreateMapping(ctx, mapping); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create mapping")
	}
	return mapping, nil
}

// ListMappings returns all amount mappings of a fee.
func (s *FeeService) ListMappings(ctx context.Context, feeID string) ([]models.ClassSectionMapping, error) {
	mappings, err := s.fees.ListMappings(ctx, feeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mappings")
	}
	return mappings, nil
}

// CreatePolicy creates a fine policy.
func (s *FeeService) CreatePolicy(ctx context.Context, req CreatePolicyRequest) (*models.FinePolicy, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid policy payload")
	}
	if req.Amount.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "policy amount cannot be negative")
	}
	if req.MaxAmount != nil && !req.MaxAmount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max amount must be positive when set")
	}
	if req.FeeID != nil {
		if _, err := s.fees.FindByID(ctx, *req.FeeID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "fee not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee")
		}
	}

	policy := &models.FinePolicy{
		SchoolID:       req.SchoolID,
		AcademicYearID: req.AcademicYearID,
		FeeID:          req.FeeID,
		ApplyType:      req.ApplyType,
		Amount:         req.Amount,
		GraceDays:      req.GraceDays,
		Active:         true,
		CreatedBy:      req.Actor,
	}
	if req.MaxAmount != nil {
		policy.MaxAmount = decimal.NewNullDecimal(*req.MaxAmount)
	}
	if err := s.policies.Create(ctx, policy); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fine policy")
	}
	s.logger.Info("fine policy created",
		zap.String("policy_id", policy.ID),
		zap.String("apply_type", string(policy.ApplyType)),
		zap.Bool("global", policy.FeeID == nil))
	return policy, nil
}

// ListPolicies returns policies matching the filter.
func (s *FeeService) ListPolicies(ctx context.Context, filter models.FinePolicyFilter) ([]models.FinePolicy, error) {
	policies, err := s.policies.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fine policies")
	}
	return policies, nil
}

// SetPolicyActive toggles a fine policy.
func (s *FeeService) SetPolicyActive(ctx context.Context, id string, active bool) error {
	if err := s.policies.SetActive(ctx, id, active); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "fine policy not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fine policy")
	}
	return nil
}
