package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fees-api/internal/service"
	"github.com/noah-isme/sma-fees-api/pkg/response"
)

// Parameter validation fires before any repository is touched, so the
// service can be built without dependencies for these paths.
func newLedgerHandlerTest() *LedgerHandler {
	svc := service.NewLedgerService(nil, nil, nil, nil, nil, nil, 0, nil, nil)
	return NewLedgerHandler(svc)
}

func TestLedgerHandlerMonthlyPlanMissingParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newLedgerHandlerTest()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students/student-1/plan?schoolId=school-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "studentId", Value: "student-1"}}
	asAdmin(c)

	handler.MonthlyPlan(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
}

func TestLedgerHandlerMonthlyPlanRejectsBadMonth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newLedgerHandlerTest()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet,
		"/students/student-1/plan?schoolId=school-1&academicYearId=ay-2025&year=2025&month=13", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "studentId", Value: "student-1"}}
	asAdmin(c)

	handler.MonthlyPlan(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLedgerHandlerEnsureRowInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newLedgerHandlerTest()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/students/student-1/ledger/ensure", bytes.NewBufferString(`{`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "studentId", Value: "student-1"}}
	asAdmin(c)

	handler.EnsureRow(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLedgerHandlerAssignFeeMissingFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newLedgerHandlerTest()

	payload, _ := json.Marshal(map[string]interface{}{
		"school_id": "school-1",
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/students/student-1/ledger", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "studentId", Value: "student-1"}}
	asAdmin(c)

	handler.AssignFee(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
