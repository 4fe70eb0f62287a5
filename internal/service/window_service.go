package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edudist/btd-api/internal/dto"
	"github.com/edudist/btd-api/internal/models"
	appErrors "github.com/edudist/btd-api/pkg/errors"
)

type windowRepository interface {
	ListAll(ctx context.Context) ([]models.RequisitionWindow, error)
	GetByTier(ctx context.Context, tier models.WindowTier) (*models.RequisitionWindow, error)
	Upsert(ctx context.Context, window *models.RequisitionWindow) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// WindowService owns requisition window configuration and the submission
// gate derived from it.
type WindowService struct {
	repo     windowRepository
	audit    auditLogger
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewWindowService constructs the service.
func NewWindowService(repo windowRepository, audit auditLogger, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *WindowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WindowService{repo: repo, audit: audit, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// ListAll returns every configured window. State tier only.
func (s *WindowService) ListAll(ctx context.Context, actor *models.JWTClaims) ([]models.RequisitionWindow, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleState {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the state tier manages requisition windows")
	}
	windows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requisition windows")
	}
	return windows, nil
}

// Status derives the gate for one tier at the current instant. A missing
// window is a valid "none" state, not an error; a failed fetch is an error so
// callers can distinguish the two.
func (s *WindowService) Status(ctx context.Context, tier models.WindowTier) (models.WindowState, error) {
	if !models.ValidWindowTier(tier) {
		return models.WindowState{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown window tier: %s", tier))
	}

	window, err := s.windowForTier(ctx, tier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NoWindowState(tier), nil
		}
		return models.WindowState{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requisition window")
	}
	return window.StateAt(time.Now().UTC()), nil
}

// GateRole rejects mutating requisition actions for tiers whose window is not
// open. The state tier owns the windows and is always exempt.
func (s *WindowService) GateRole(ctx context.Context, role models.UserRole) error {
	tier, gated := windowTierForRole(role)
	if !gated {
		return nil
	}
	state, err := s.Status(ctx, tier)
	if err != nil {
		return err
	}
	if !state.IsOpen {
		return appErrors.Clone(appErrors.ErrWindowClosed, state.Message)
	}
	return nil
}

// Upsert creates or replaces a tier's window. State tier only.
func (s *WindowService) Upsert(ctx context.Context, req dto.UpsertWindowRequest, actor *models.JWTClaims) (*models.RequisitionWindow, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleState {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the state tier manages requisition windows")
	}
	if !models.ValidWindowTier(req.Tier) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown window tier: %s", req.Tier))
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date and end_date are required")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be after start_date")
	}

	window := &models.RequisitionWindow{
		Tier:      req.Tier,
		StartDate: req.StartDate.UTC(),
		EndDate:   req.EndDate.UTC(),
		CreatedBy: actor.UserID,
	}
	if err := s.repo.Upsert(ctx, window); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save requisition window")
	}

	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, fmt.Sprintf("window:%s", req.Tier))
	}
	s.emitAudit(ctx, actor.UserID, window)
	return window, nil
}

func (s *WindowService) windowForTier(ctx context.Context, tier models.WindowTier) (*models.RequisitionWindow, error) {
	key := fmt.Sprintf("window:%s", tier)
	if s.cache != nil {
		var cached models.RequisitionWindow
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}
	window, err := s.repo.GetByTier(ctx, tier)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, window, s.cacheTTL)
	}
	return window, nil
}

func (s *WindowService) emitAudit(ctx context.Context, userID string, window *models.RequisitionWindow) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(window)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionWindowConfigure,
		Resource:   "requisition_window",
		ResourceID: &window.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "window-service",
	}); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// windowTierForRole maps a reviewing role to the window that gates it.
func windowTierForRole(role models.UserRole) (models.WindowTier, bool) {
	switch role {
	case models.RoleSchool:
		return models.WindowTierSchool, true
	case models.RoleBlock:
		return models.WindowTierBlock, true
	case models.RoleDistrict:
		return models.WindowTierDistrict, true
	default:
		return "", false
	}
}
