package dto

import (
	"time"

	"github.com/edudist/btd-api/internal/models"
)

// UpsertWindowRequest creates or replaces the submission window for one tier.
// Only state accounts may call it.
type UpsertWindowRequest struct {
	Tier      models.WindowTier `json:"tier" validate:"required"`
	StartDate time.Time         `json:"start_date" validate:"required"`
	EndDate   time.Time         `json:"end_date" validate:"required"`
}
