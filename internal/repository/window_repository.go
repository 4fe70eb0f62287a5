package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edudist/btd-api/internal/models"
)

// WindowRepository persists per-tier requisition windows.
type WindowRepository struct {
	db *sqlx.DB
}

// NewWindowRepository constructs the repository.
func NewWindowRepository(db *sqlx.DB) *WindowRepository {
	return &WindowRepository{db: db}
}

// ListAll returns every configured window.
func (r *WindowRepository) ListAll(ctx context.Context) ([]models.RequisitionWindow, error) {
	const query = `SELECT id, tier, start_date, end_date, created_by, created_at, updated_at FROM requisition_windows ORDER BY tier`
	var windows []models.RequisitionWindow
	if err := r.db.SelectContext(ctx, &windows, query); err != nil {
		return nil, fmt.Errorf("list requisition windows: %w", err)
	}
	return windows, nil
}

// GetByTier fetches the window for one tier. sql.ErrNoRows means no window
// is configured, which callers must treat as a distinct state.
func (r *WindowRepository) GetByTier(ctx context.Context, tier models.WindowTier) (*models.RequisitionWindow, error) {
	const query = `SELECT id, tier, start_date, end_date, created_by, created_at, updated_at FROM requisition_windows WHERE tier = $1`
	var window models.RequisitionWindow
	if err := r.db.GetContext(ctx, &window, query, tier); err != nil {
		return nil, err
	}
	return &window, nil
}

// Upsert creates or replaces the single window of a tier.
func (r *WindowRepository) Upsert(ctx context.Context, window *models.RequisitionWindow) error {
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if window.CreatedAt.IsZero() {
		window.CreatedAt = now
	}
	window.UpdatedAt = now
	const query = `INSERT INTO requisition_windows (id, tier, start_date, end_date, created_by, created_at, updated_at)
VALUES (:id, :tier, :start_date, :end_date, :created_by, :created_at, :updated_at)
ON CONFLICT (tier) DO UPDATE SET start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date,
	created_by = EXCLUDED.created_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("upsert requisition window: %w", err)
	}
	return nil
}
