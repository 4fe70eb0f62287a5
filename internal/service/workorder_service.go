package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/edudist/btd-api/internal/models"
	"github.com/edudist/btd-api/internal/repository"
	appErrors "github.com/edudist/btd-api/pkg/errors"
)

type workOrderStore interface {
	WorkOrderLines(ctx context.Context) ([]models.WorkOrderLine, error)
	SendInstallment(ctx context.Context, params repository.InstallmentParams) (*models.Installment, *models.Requisition, error)
}

// WorkOrderService computes the state tier's procurement snapshot and sends
// stock-backed installments against approved requisitions.
type WorkOrderService struct {
	repo          workOrderStore
	audit         auditLogger
	cache         *CacheService
	metrics       *MetricsService
	maxAdditional int
	snapshotTTL   time.Duration
	logger        *zap.Logger
}

// NewWorkOrderService constructs the service. maxAdditional caps the buffer
// percentage an operator may request.
func NewWorkOrderService(repo workOrderStore, audit auditLogger, cache *CacheService, metrics *MetricsService, maxAdditional int, snapshotTTL time.Duration, logger *zap.Logger) *WorkOrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAdditional <= 0 {
		maxAdditional = 15
	}
	return &WorkOrderService{
		repo:          repo,
		audit:         audit,
		cache:         cache,
		metrics:       metrics,
		maxAdditional: maxAdditional,
		snapshotTTL:   snapshotTTL,
		logger:        logger,
	}
}

// Compute aggregates outstanding demand per book, subtracts central stock and
// applies the operator buffer. The per-book aggregates are cached; derived
// columns are recomputed per request because the buffer is caller-chosen.
func (s *WorkOrderService) Compute(ctx context.Context, additionalPercent int) (*models.WorkOrder, error) {
	if additionalPercent < 0 || additionalPercent > s.maxAdditional {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("additional percent must be between 0 and %d", s.maxAdditional))
	}

	lines, err := s.workOrderLines(ctx)
	if err != nil {
		return nil, err
	}

	order := &models.WorkOrder{AdditionalPercent: additionalPercent, Lines: lines}
	for i := range order.Lines {
		line := &order.Lines[i]
		shortfall := line.TotalRequisition - line.TotalReceived - line.CurrentStock
		if shortfall < 0 {
			shortfall = 0
		}
		line.CalculatedRequisition = shortfall
		buffer := int(math.Round(float64(shortfall) * float64(additionalPercent) / 100.0))
		line.ActualRequisition = shortfall + buffer
		order.TotalCalculated += line.CalculatedRequisition
		order.TotalActual += line.ActualRequisition
	}
	return order, nil
}

// SendInstallment ships part of an approved requisition. The repository runs
// the whole mutation in one transaction; this layer only maps outcomes and
// invalidates the snapshot cache.
func (s *WorkOrderService) SendInstallment(ctx context.Context, requisitionID string, quantity int, idempotencyKey string, actor *models.JWTClaims) (*models.Installment, *models.Requisition, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleState {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only the state tier sends installments")
	}
	if quantity <= 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "quantity must be positive")
	}

	installment, requisition, err := s.repo.SendInstallment(ctx, repository.InstallmentParams{
		RequisitionID:  requisitionID,
		Quantity:       quantity,
		IdempotencyKey: idempotencyKey,
		SentBy:         actor.UserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil, appErrors.ErrNotFound
		case errors.Is(err, repository.ErrRequisitionNotApproved):
			return nil, nil, appErrors.Clone(appErrors.ErrInvalidTransition, "requisition is not approved for fulfillment")
		case errors.Is(err, repository.ErrQuantityExceedsRemaining):
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "quantity exceeds remaining requirement")
		case errors.Is(err, repository.ErrInsufficientStock):
			return nil, nil, appErrors.Clone(appErrors.ErrInsufficientStock, "central stock is insufficient for this installment")
		default:
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send installment")
		}
	}

	s.metrics.RecordInstallment(installment.Quantity)
	s.invalidateSnapshot(ctx)
	s.emitAudit(ctx, actor.UserID, installment, requisition)
	return installment, requisition, nil
}

func (s *WorkOrderService) workOrderLines(ctx context.Context) ([]models.WorkOrderLine, error) {
	const cacheKey = "workorder:lines"
	if s.cache != nil {
		var cached []models.WorkOrderLine
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return cached, nil
		}
	}

	lines, err := s.repo.WorkOrderLines(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate work order lines")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, lines, s.snapshotTTL); err != nil {
			s.logger.Warn("failed to cache work order lines", zap.Error(err))
		}
	}
	return lines, nil
}

func (s *WorkOrderService) invalidateSnapshot(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "workorder:*"); err != nil {
		s.logger.Warn("failed to invalidate work order cache", zap.Error(err))
	}
}

func (s *WorkOrderService) emitAudit(ctx context.Context, userID string, installment *models.Installment, requisition *models.Requisition) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"installment_id": installment.ID,
		"quantity":       installment.Quantity,
		"status":         requisition.Status,
	})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionInstallmentSend,
		Resource:   "requisition",
		ResourceID: &requisition.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "workorder-service",
	}); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
