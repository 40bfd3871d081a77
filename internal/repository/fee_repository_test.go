package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

func newFeeRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func mappingRows(id, amount string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "amount"}).AddRow(id, amount)
}

func TestFeeRepositoryResolveAmountExactMatch(t *testing.T) {
	db, mock, cleanup := newFeeRepoMock(t)
	defer cleanup()

	repo := NewFeeRepository(db)
	section := "sec-a"
	mock.ExpectQuery(regexp.QuoteMeta("section_id = $3")).
		WithArgs("fee-1", "class-1", "sec-a").
		WillReturnRows(mappingRows("map-1", "1500"))

	amount, mappingID, err := repo.ResolveAmount(context.Background(), "fee-1", "class-1", &section)
	require.NoError(t, err)
	require.True(t, amount.Equal(decimal.NewFromInt(1500)))
	require.NotNil(t, mappingID)
	require.Equal(t, "map-1", *mappingID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryResolveAmountFallsBackToClass(t *testing.T) {
	db, mock, cleanup := newFeeRepoMock(t)
	defer cleanup()

	repo := NewFeeRepository(db)
	section := "sec-a"
	mock.ExpectQuery(regexp.QuoteMeta("section_id = $3")).
		WithArgs("fee-1", "class-1", "sec-a").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("section_id IS NULL")).
		WithArgs("fee-1", "class-1").
		WillReturnRows(mappingRows("map-2", "1200"))

	amount, mappingID, err := repo.ResolveAmount(context.Background(), "fee-1", "class-1", &section)
	require.NoError(t, err)
	require.True(t, amount.Equal(decimal.NewFromInt(1200)))
	require.Equal(t, "map-2", *mappingID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryResolveAmountFallsBackToMinimum(t *testing.T) {
	db, mock, cleanup := newFeeRepoMock(t)
	defer cleanup()

	repo := NewFeeRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("section_id IS NULL")).
		WithArgs("fee-1", "class-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY amount ASC")).
		WithArgs("fee-1").
		WillReturnRows(mappingRows("map-3", "900"))

	// No section: the exact-match query is skipped entirely.
	amount, mappingID, err := repo.ResolveAmount(context.Background(), "fee-1", "class-1", nil)
	require.NoError(t, err)
	require.True(t, amount.Equal(decimal.NewFromInt(900)))
	require.Equal(t, "map-3", *mappingID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryResolveAmountUnassignable(t *testing.T) {
	db, mock, cleanup := newFeeRepoMock(t)
	defer cleanup()

	repo := NewFeeRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("section_id IS NULL")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY amount ASC")).
		WillReturnError(sql.ErrNoRows)

	amount, mappingID, err := repo.ResolveAmount(context.Background(), "fee-1", "class-1", nil)
	require.NoError(t, err)
	require.True(t, amount.IsZero())
	require.Nil(t, mappingID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newFeeRepoMock(t)
	defer cleanup()

	repo := NewFeeRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fees")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	fee := &models.Fee{
		SchoolID:       "school-1",
		AcademicYearID: "ay-2025",
		Name:           "Tuition",
		Active:         true,
		CreatedBy:      "admin",
		UpdatedBy:      "admin",
	}
	require.NoError(t, repo.Create(context.Background(), fee))
	require.NotEmpty(t, fee.ID)
	require.False(t, fee.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryLatestSchedules(t *testing.T) {
	db, mock, cleanup := newFeeRepoMock(t)
	defer cleanup()

	repo := NewFeeRepository(db)
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "fee_id", "schedule_type", "interval_months", "day_of_month", "start_date", "end_date", "created_at"}).
		AddRow("sch-1", "fee-1", "RECURRING", 1, 5, start, nil, time.Now()).
		AddRow("sch-2", "fee-2", "ONE_TIME", 0, 0, start, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ON (fee_id)")).
		WithArgs("fee-1", "fee-2").
		WillReturnRows(rows)

	schedules, err := repo.LatestSchedules(context.Background(), []string{"fee-1", "fee-2"})
	require.NoError(t, err)
	require.Len(t, schedules, 2)
	require.Equal(t, models.ScheduleTypeRecurring, schedules["fee-1"].Type)
	require.Equal(t, models.ScheduleTypeOneTime, schedules["fee-2"].Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryLatestSchedulesEmpty(t *testing.T) {
	db, _, cleanup := newFeeRepoMock(t)
	defer cleanup()

	repo := NewFeeRepository(db)
	schedules, err := repo.LatestSchedules(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, schedules)
}
