package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

func newFinePolicyRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestFinePolicyRepositoryListApplicable(t *testing.T) {
	db, mock, cleanup := newFinePolicyRepoMock(t)
	defer cleanup()

	repo := NewFinePolicyRepository(db)
	rows := sqlmock.NewRows([]string{"id", "school_id", "academic_year_id", "fee_id", "apply_type", "amount", "grace_days", "max_amount", "active", "created_by", "created_at"}).
		AddRow("pol-1", "school-1", "ay-2025", "fee-1", "FIXED", "50", 3, nil, true, "admin", time.Now()).
		AddRow("pol-2", "school-1", "ay-2025", nil, "PER_DAY", "10", 0, "200", true, "admin", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("fee_id = $3 OR fee_id IS NULL")).
		WithArgs("school-1", "ay-2025", "fee-1").
		WillReturnRows(rows)

	policies, err := repo.ListApplicable(context.Background(), "school-1", "ay-2025", "fee-1")
	require.NoError(t, err)
	require.Len(t, policies, 2)

	// Fee-specific rows come before global ones.
	require.NotNil(t, policies[0].FeeID)
	require.Nil(t, policies[1].FeeID)
	require.True(t, policies[1].MaxAmount.Valid)
	require.True(t, policies[1].MaxAmount.Decimal.Equal(decimal.NewFromInt(200)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinePolicyRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newFinePolicyRepoMock(t)
	defer cleanup()

	repo := NewFinePolicyRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fine_policies")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	policy := &models.FinePolicy{
		SchoolID:       "school-1",
		AcademicYearID: "ay-2025",
		ApplyType:      models.FineApplyFixed,
		Amount:         decimal.NewFromInt(50),
		GraceDays:      3,
		Active:         true,
		CreatedBy:      "admin",
	}
	require.NoError(t, repo.Create(context.Background(), policy))
	require.NotEmpty(t, policy.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
