package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/edudist/btd-api/internal/models"
)

func TestWindowRepositoryGetByTier(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWindowRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "tier", "start_date", "end_date", "created_by", "created_at", "updated_at"}).
		AddRow("w-1", models.WindowTierBlock, now.Add(-time.Hour), now.Add(time.Hour), "user-state", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM requisition_windows WHERE tier = $1")).
		WithArgs(models.WindowTierBlock).
		WillReturnRows(rows)

	window, err := repo.GetByTier(context.Background(), models.WindowTierBlock)
	require.NoError(t, err)
	require.Equal(t, models.WindowTierBlock, window.Tier)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWindowRepositoryGetByTierUnconfigured(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWindowRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM requisition_windows WHERE tier = $1")).
		WithArgs(models.WindowTierSchool).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByTier(context.Background(), models.WindowTierSchool)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWindowRepositoryUpsertReplacesTier(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWindowRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (tier) DO UPDATE SET start_date = EXCLUDED.start_date")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	window := &models.RequisitionWindow{
		Tier:      models.WindowTierBlock,
		StartDate: time.Now().UTC(),
		EndDate:   time.Now().UTC().Add(48 * time.Hour),
		CreatedBy: "user-state",
	}
	require.NoError(t, repo.Upsert(context.Background(), window))
	require.NotEmpty(t, window.ID)
	require.False(t, window.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
