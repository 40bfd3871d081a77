package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fees-api/internal/middleware"
	"github.com/noah-isme/sma-fees-api/internal/models"
	"github.com/noah-isme/sma-fees-api/internal/service"
	"github.com/noah-isme/sma-fees-api/pkg/response"
)

type feeRepoMock struct {
	fees      map[string]models.Fee
	schedules map[string]models.FeeSchedule
	created   []models.Fee
}

func (m *feeRepoMock) Create(ctx context.Context, fee *models.Fee) error {
	if fee.ID == "" {
		fee.ID = "fee-new"
	}
	if m.fees == nil {
		m.fees = make(map[string]models.Fee)
	}
	m.fees[fee.ID] = *fee
	m.created = append(m.created, *fee)
	return nil
}

func (m *feeRepoMock) CreateSchedule(ctx context.Context, schedule *models.FeeSchedule) error {
	if schedule.ID == "" {
		schedule.ID = "sch-new"
	}
	if m.schedules == nil {
		m.schedules = make(map[string]models.FeeSchedule)
	}
	m.schedules[schedule.FeeID] = *schedule
	return nil
}

func (m *feeRepoMock) FindByID(ctx context.Context, id string) (*models.Fee, error) {
	fee, ok := m.fees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &fee, nil
}

func (m *feeRepoMock) FindScheduleByFee(ctx context.Context, feeID string) (*models.FeeSchedule, error) {
	schedule, ok := m.schedules[feeID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &schedule, nil
}

func (m *feeRepoMock) List(ctx context.Context, filter models.FeeFilter) ([]models.Fee, int, error) {
	var fees []models.Fee
	for _, fee := range m.fees {
		fees = append(fees, fee)
	}
	return fees, len(fees), nil
}

func (m *feeRepoMock) SetActive(ctx context.Context, id string, active bool, updatedBy string) error {
	fee, ok := m.fees[id]
	if !ok {
		return sql.ErrNoRows
	}
	fee.Active = active
	m.fees[id] = fee
	return nil
}

func (m *feeRepoMock) CreateMapping(ctx context.Context, mapping *models.ClassSectionMapping) error {
	if mapping.ID == "" {
		mapping.ID = "map-new"
	}
	return nil
}

func (m *feeRepoMock) ListMappings(ctx context.Context, feeID string) ([]models.ClassSectionMapping, error) {
	return nil, nil
}

type policyRepoMock struct {
	policies []models.FinePolicy
}

func (m *policyRepoMock) Create(ctx context.Context, policy *models.FinePolicy) error {
	if policy.ID == "" {
		policy.ID = "pol-new"
	}
	m.policies = append(m.policies, *policy)
	return nil
}

func (m *policyRepoMock) List(ctx context.Context, filter models.FinePolicyFilter) ([]models.FinePolicy, error) {
	return m.policies, nil
}

func (m *policyRepoMock) SetActive(ctx context.Context, id string, active bool) error {
	return sql.ErrNoRows
}

func newFeeHandlerTest() (*FeeHandler, *feeRepoMock) {
	repo := &feeRepoMock{}
	svc := service.NewFeeService(repo, &policyRepoMock{}, nil, nil)
	return NewFeeHandler(svc), repo
}

func asAdmin(c *gin.Context) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Username: "admin", Role: models.RoleAdmin})
}

func TestFeeHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newFeeHandlerTest()

	payload, _ := json.Marshal(map[string]interface{}{
		"school_id":        "school-1",
		"academic_year_id": "ay-2025",
		"name":             "Tuition",
		"schedule_type":    "RECURRING",
		"interval_months":  1,
		"day_of_month":     5,
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/fees", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	asAdmin(c)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "admin", repo.created[0].CreatedBy)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Nil(t, envelope.Error)
}

func TestFeeHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newFeeHandlerTest()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/fees", bytes.NewBufferString(`{"name":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	asAdmin(c)

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeeHandlerCreateMissingSchedule(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newFeeHandlerTest()

	// One-time fees without a start date are rejected before any write.
	payload, _ := json.Marshal(map[string]interface{}{
		"school_id":        "school-1",
		"academic_year_id": "ay-2025",
		"name":             "Admission",
		"schedule_type":    "ONE_TIME",
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/fees", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	asAdmin(c)

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeeHandlerSetActiveNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newFeeHandlerTest()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/fees/missing/active", bytes.NewBufferString(`{"active":false}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	asAdmin(c)

	handler.SetActive(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestFeeHandlerCreatePolicyGlobal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newFeeHandlerTest()

	payload, _ := json.Marshal(map[string]interface{}{
		"school_id":        "school-1",
		"academic_year_id": "ay-2025",
		"apply_type":       "PER_DAY",
		"amount":           "10",
		"grace_days":       3,
		"max_amount":       "200",
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/fine-policies", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	asAdmin(c)

	handler.CreatePolicy(c)
	require.Equal(t, http.StatusCreated, w.Code)
}
