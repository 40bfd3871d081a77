package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-fees-api/internal/models"
	"github.com/noah-isme/sma-fees-api/internal/service"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
	"github.com/noah-isme/sma-fees-api/pkg/response"
)

// FeeHandler exposes fee catalog endpoints: fees, schedules, amount
// mappings and fine policies.
type FeeHandler struct {
	fees *service.FeeService
}

// NewFeeHandler constructs handler.
func NewFeeHandler(fees *service.FeeService) *FeeHandler {
	return &FeeHandler{fees: fees}
}

// Create godoc
// @Summary Create a fee with its schedule
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body service.CreateFeeRequest true "Fee payload"
// @Success 201 {object} response.Envelope
// @Router /fees [post]
func (h *FeeHandler) Create(c *gin.Context) {
	var req service.CreateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.Actor = actorFromContext(c)
	fee, err := h.fees.CreateFee(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fee)
}

// Get godoc
// @Summary Get a fee with its schedule
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 200 {object} response.Envelope
// @Router /fees/{id} [get]
func (h *FeeHandler) Get(c *gin.Context) {
	fee, err := h.fees.GetFee(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// List godoc
// @Summary List fees
// @Tags Fees
// @Produce json
// @Param schoolId query string false "Filter by school"
// @Param academicYearId query string false "Filter by academic year"
// @Param active query boolean false "Filter by active flag"
// @Success 200 {object} response.Envelope
// @Router /fees [get]
func (h *FeeHandler) List(c *gin.Context) {
	filter := models.FeeFilter{
		SchoolID:       c.Query("schoolId"),
		AcademicYearID: c.Query("academicYearId"),
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active must be a boolean"))
			return
		}
		filter.Active = &active
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	fees, total, err := h.fees.ListFees(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, fees, pagination)
}

// SetActive godoc
// @Summary Activate or deactivate a fee
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param payload body handler.setActiveRequest true "Active flag"
// @Success 200 {object} response.Envelope
// @Router /fees/{id}/active [patch]
func (h *FeeHandler) SetActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.fees.SetFeeActive(c.Request.Context(), c.Param("id"), req.Active, actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"active": req.Active}, nil)
}

// CreateMapping godoc
// @Summary Attach a class/section amount to a fee
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param payload body service.CreateMappingRequest true "Mapping payload"
// @Success 201 {object} response.Envelope
// @Router /fees/{id}/mappings [post]
func (h *FeeHandler) CreateMapping(c *gin.Context) {
	var req service.CreateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.FeeID = c.Param("id")
	req.Actor = actorFromContext(c)
	mapping, err := h.fees.CreateMapping(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, mapping)
}

// ListMappings godoc
// @Summary List a fee's amount mappings
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 200 {object} response.Envelope
// @Router /fees/{id}/mappings [get]
func (h *FeeHandler) ListMappings(c *gin.Context) {
	mappings, err := h.fees.ListMappings(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mappings, nil)
}

// CreatePolicy godoc
// @Summary Create a fine policy
// @Tags Fine Policies
// @Accept json
// @Produce json
// @Param payload body service.CreatePolicyRequest true "Policy payload"
// @Success 201 {object} response.Envelope
// @Router /fine-policies [post]
func (h *FeeHandler) CreatePolicy(c *gin.Context) {
	var req service.CreatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.Actor = actorFromContext(c)
	policy, err := h.fees.CreatePolicy(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, policy)
}

// ListPolicies godoc
// @Summary List fine policies
// @Tags Fine Policies
// @Produce json
// @Param schoolId query string false "Filter by school"
// @Param academicYearId query string false "Filter by academic year"
// @Param feeId query string false "Filter by fee"
// @Success 200 {object} response.Envelope
// @Router /fine-policies [get]
func (h *FeeHandler) ListPolicies(c *gin.Context) {
	filter := models.FinePolicyFilter{
		SchoolID:       c.Query("schoolId"),
		AcademicYearID: c.Query("academicYearId"),
		FeeID:          c.Query("feeId"),
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active must be a boolean"))
			return
		}
		filter.Active = &active
	}
	policies, err := h.fees.ListPolicies(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policies, nil)
}

// SetPolicyActive godoc
// @Summary Activate or deactivate a fine policy
// @Tags Fine Policies
// @Accept json
// @Produce json
// @Param id path string true "Policy ID"
// @Param payload body handler.setActiveRequest true "Active flag"
// @Success 200 {object} response.Envelope
// @Router /fine-policies/{id}/active [patch]
func (h *FeeHandler) SetPolicyActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.fees.SetPolicyActive(c.Request.Context(), c.Param("id"), req.Active); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"active": req.Active}, nil)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}
