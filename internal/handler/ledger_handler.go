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

// LedgerHandler exposes monthly plan and ledger endpoints.
type LedgerHandler struct {
	ledger *service.LedgerService
}

// NewLedgerHandler constructs handler.
func NewLedgerHandler(ledger *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// MonthlyPlan godoc
// @Summary Project a student's fee plan for a month
// @Tags Ledger
// @Produce json
// @Param studentId path string true "Student ID"
// @Param schoolId query string true "School ID"
// @Param academicYearId query string true "Academic year ID"
// @Param year query int true "Year"
// @Param month query int true "Month (1-12)"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/plan [get]
func (h *LedgerHandler) MonthlyPlan(c *gin.Context) {
	year, _ := strconv.Atoi(c.Query("year"))
	month, _ := strconv.Atoi(c.Query("month"))
	req := service.MonthlyPlanRequest{
		SchoolID:       c.Query("schoolId"),
		AcademicYearID: c.Query("academicYearId"),
		StudentID:      c.Param("studentId"),
		Year:           year,
		Month:          month,
	}
	rows, err := h.ledger.BuildMonthlyPlan(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// EnsureRow godoc
// @Summary Materialize one fee's obligation for a month
// @Tags Ledger
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param payload body service.EnsureRowRequest true "Ensure payload"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/ledger/ensure [post]
func (h *LedgerHandler) EnsureRow(c *gin.Context) {
	var req service.EnsureRowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.StudentID = c.Param("studentId")
	req.Actor = actorFromContext(c)
	row, created, err := h.ledger.EnsureMonthlyRow(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.JSON(c, status, row, nil, map[string]interface{}{"created": created})
}

// AssignFee godoc
// @Summary Assign a fee to a student directly
// @Tags Ledger
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param payload body service.AssignFeeRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /students/{studentId}/ledger [post]
func (h *LedgerHandler) AssignFee(c *gin.Context) {
	var req service.AssignFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.StudentID = c.Param("studentId")
	req.Actor = actorFromContext(c)
	row, err := h.ledger.AssignFee(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, row)
}

// GetLedger godoc
// @Summary List a student's ledger with derived totals
// @Tags Ledger
// @Produce json
// @Param studentId path string true "Student ID"
// @Param schoolId query string true "School ID"
// @Param academicYearId query string true "Academic year ID"
// @Param feeId query string false "Filter by fee"
// @Param onlyDue query boolean false "Only rows past their due date"
// @Param includePaid query boolean false "Include fully paid rows"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/ledger [get]
func (h *LedgerHandler) GetLedger(c *gin.Context) {
	filter := models.LedgerFilter{
		SchoolID:       c.Query("schoolId"),
		AcademicYearID: c.Query("academicYearId"),
		StudentID:      c.Param("studentId"),
		FeeID:          c.Query("feeId"),
	}
	filter.OnlyDue, _ = strconv.ParseBool(c.DefaultQuery("onlyDue", "false"))
	filter.IncludePaid, _ = strconv.ParseBool(c.DefaultQuery("includePaid", "true"))

	result, err := h.ledger.GetLedger(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
