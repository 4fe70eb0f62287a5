package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edudist/btd-api/internal/dto"
	"github.com/edudist/btd-api/internal/models"
	"github.com/edudist/btd-api/internal/repository"
	appErrors "github.com/edudist/btd-api/pkg/errors"
)

type requisitionStore interface {
	List(ctx context.Context, filter models.RequisitionFilter) ([]models.Requisition, int, error)
	GetByID(ctx context.Context, id string) (*models.Requisition, error)
	UpdateReview(ctx context.Context, params repository.UpdateReviewParams) error
	SaveRemark(ctx context.Context, id, remarkColumn, remark string) error
}

type schoolDirectory interface {
	ListSchools(ctx context.Context, blockCode, districtCode string) ([]models.School, error)
	GetSchoolByUDISE(ctx context.Context, udise string) (*models.School, error)
}

type submissionGate interface {
	GateRole(ctx context.Context, role models.UserRole) error
}

// RequisitionService runs the tier review workflow. Block and district share
// one engine parametrised by models.ReviewTier; the status transition table
// in the models package is the single source of allowed moves.
type RequisitionService struct {
	repo    requisitionStore
	schools schoolDirectory
	gate    submissionGate
	audit   auditLogger
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRequisitionService constructs the service.
func NewRequisitionService(repo requisitionStore, schools schoolDirectory, gate submissionGate, audit auditLogger, metrics *MetricsService, logger *zap.Logger) *RequisitionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequisitionService{repo: repo, schools: schools, gate: gate, audit: audit, metrics: metrics, logger: logger}
}

// List returns requisitions visible to the actor with pagination. Reads are
// never gated by the submission window.
func (s *RequisitionService) List(ctx context.Context, query dto.RequisitionQuery, actor *models.JWTClaims) ([]models.Requisition, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.RequisitionFilter{
		Status:      query.Status,
		BookID:      query.BookID,
		SchoolUDISE: query.SchoolUDISE,
		Page:        query.Page,
		PageSize:    query.PageSize,
	}
	if err := applyScope(&filter, actor); err != nil {
		return nil, nil, err
	}
	if query.PendingOnly {
		tier, ok := models.ReviewTierFor(actor.Role)
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "tier does not review requisitions")
		}
		filter.Status = []models.RequisitionStatus{tier.PendingStatus}
	}

	requisitions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requisitions")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	return requisitions, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// ListPendingGrouped returns the actor tier's pending queue bucketed by
// school for display.
func (s *RequisitionService) ListPendingGrouped(ctx context.Context, actor *models.JWTClaims) ([]dto.SchoolRequisitionGroup, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	tier, ok := models.ReviewTierFor(actor.Role)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "tier does not review requisitions")
	}

	filter := models.RequisitionFilter{
		Status:   []models.RequisitionStatus{tier.PendingStatus},
		PageSize: 200,
	}
	if err := applyScope(&filter, actor); err != nil {
		return nil, err
	}
	requisitions, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending requisitions")
	}

	schools, err := s.schools.ListSchools(ctx, filter.BlockCode, filter.DistrictCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve schools")
	}
	names := make(map[string]string, len(schools))
	for _, school := range schools {
		names[school.UDISECode] = school.Name
	}

	groupIndex := make(map[string]int)
	groups := make([]dto.SchoolRequisitionGroup, 0, len(schools))
	for _, requisition := range requisitions {
		idx, ok := groupIndex[requisition.SchoolUDISE]
		if !ok {
			groups = append(groups, dto.SchoolRequisitionGroup{
				SchoolUDISE: requisition.SchoolUDISE,
				SchoolName:  names[requisition.SchoolUDISE],
			})
			idx = len(groups) - 1
			groupIndex[requisition.SchoolUDISE] = idx
		}
		groups[idx].Requisitions = append(groups[idx].Requisitions, requisition)
	}
	return groups, nil
}

// Review applies an approve or reject decision at the actor's tier. Approval
// requires a non-empty remark; nothing is persisted when validation fails.
func (s *RequisitionService) Review(ctx context.Context, id string, req dto.ReviewRequisitionRequest, actor *models.JWTClaims) (*models.Requisition, error) {
	tier, requisition, err := s.loadForReview(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	var newStatus models.RequisitionStatus
	remark := strings.TrimSpace(req.Remark)
	switch req.Action {
	case dto.ReviewActionApprove:
		if remark == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "remark is required to approve")
		}
		newStatus = tier.ForwardStatus
	case dto.ReviewActionReject:
		newStatus = tier.RejectedStatus
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "action must be approve or reject")
	}

	if requisition.Status != tier.PendingStatus {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "requisition is not pending at this tier")
	}
	if !models.CanTransition(requisition.Status, newStatus) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "status transition not allowed")
	}

	params := repository.UpdateReviewParams{
		ID:             requisition.ID,
		ExpectedStatus: requisition.Status,
		NewStatus:      newStatus,
		RemarkColumn:   tier.RemarkColumn,
		UpdatedAt:      time.Now().UTC(),
	}
	if remark != "" {
		params.Remark = &remark
	}
	if err := s.repo.UpdateReview(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "requisition was reviewed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update requisition")
	}

	s.metrics.RecordReview("requisition", string(actor.Role), string(req.Action))
	s.emitReviewAudit(ctx, actor.UserID, requisition.ID, requisition.Status, newStatus)
	return s.reload(ctx, requisition.ID)
}

// Reapprove moves a requisition rejected at the actor's own tier forward,
// exactly as an initial approval would.
func (s *RequisitionService) Reapprove(ctx context.Context, id string, actor *models.JWTClaims) (*models.Requisition, error) {
	tier, requisition, err := s.loadForReview(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if requisition.Status != tier.RejectedStatus {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "requisition is not rejected at this tier")
	}

	if err := s.repo.UpdateReview(ctx, repository.UpdateReviewParams{
		ID:             requisition.ID,
		ExpectedStatus: requisition.Status,
		NewStatus:      tier.ForwardStatus,
		UpdatedAt:      time.Now().UTC(),
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "requisition was reviewed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update requisition")
	}

	s.metrics.RecordReview("requisition", string(actor.Role), "reapprove")
	s.emitReviewAudit(ctx, actor.UserID, requisition.ID, requisition.Status, tier.ForwardStatus)
	return s.reload(ctx, requisition.ID)
}

// SaveRemark persists a remark into the actor tier's own column without
// touching the status, including on already-decided requests.
func (s *RequisitionService) SaveRemark(ctx context.Context, id string, req dto.SaveRemarkRequest, actor *models.JWTClaims) (*models.Requisition, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	tier, ok := models.ReviewTierFor(actor.Role)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "tier does not review requisitions")
	}
	remark := strings.TrimSpace(req.Remark)
	if remark == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "remark is required")
	}

	requisition, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requisition")
	}
	if err := s.checkScope(ctx, requisition.SchoolUDISE, actor); err != nil {
		return nil, err
	}

	if err := s.repo.SaveRemark(ctx, requisition.ID, tier.RemarkColumn, remark); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save remark")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionRequisitionRemark, requisition.ID, map[string]string{"remark": remark})
	return s.reload(ctx, requisition.ID)
}

func (s *RequisitionService) loadForReview(ctx context.Context, id string, actor *models.JWTClaims) (models.ReviewTier, *models.Requisition, error) {
	if actor == nil {
		return models.ReviewTier{}, nil, appErrors.ErrUnauthorized
	}
	tier, ok := models.ReviewTierFor(actor.Role)
	if !ok {
		return models.ReviewTier{}, nil, appErrors.Clone(appErrors.ErrForbidden, "tier does not review requisitions")
	}
	if err := s.gate.GateRole(ctx, actor.Role); err != nil {
		return models.ReviewTier{}, nil, err
	}

	requisition, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ReviewTier{}, nil, appErrors.ErrNotFound
		}
		return models.ReviewTier{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requisition")
	}
	if err := s.checkScope(ctx, requisition.SchoolUDISE, actor); err != nil {
		return models.ReviewTier{}, nil, err
	}
	return tier, requisition, nil
}

// checkScope verifies the requisition's school falls inside the actor's
// region using structural school columns.
func (s *RequisitionService) checkScope(ctx context.Context, udise string, actor *models.JWTClaims) error {
	switch actor.Role {
	case models.RoleState:
		return nil
	case models.RoleSchool:
		if actor.RegionCode != udise {
			return appErrors.Clone(appErrors.ErrForbidden, "requisition outside caller scope")
		}
		return nil
	}

	school, err := s.schools.GetSchoolByUDISE(ctx, udise)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve school")
	}
	switch actor.Role {
	case models.RoleBlock:
		if school.BlockCode != actor.RegionCode {
			return appErrors.Clone(appErrors.ErrForbidden, "requisition outside caller scope")
		}
	case models.RoleDistrict:
		if school.DistrictCode != actor.RegionCode {
			return appErrors.Clone(appErrors.ErrForbidden, "requisition outside caller scope")
		}
	}
	return nil
}

// reload returns the authoritative row after a mutation; quantities and
// cross-tier remarks may have changed concurrently.
func (s *RequisitionService) reload(ctx context.Context, id string) (*models.Requisition, error) {
	requisition, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload requisition")
	}
	return requisition, nil
}

func (s *RequisitionService) emitReviewAudit(ctx context.Context, userID, requisitionID string, from, to models.RequisitionStatus) {
	s.emitAudit(ctx, userID, models.AuditActionRequisitionReview, requisitionID, map[string]string{
		"from": string(from),
		"to":   string(to),
	})
}

func (s *RequisitionService) emitAudit(ctx context.Context, userID, action, resourceID string, values map[string]string) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(values)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "requisition",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "requisition-service",
	}); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// applyScope narrows a filter to the actor's region. State sees everything.
func applyScope(filter *models.RequisitionFilter, actor *models.JWTClaims) error {
	switch actor.Role {
	case models.RoleState:
		return nil
	case models.RoleDistrict:
		if actor.RegionCode == "" {
			return appErrors.Clone(appErrors.ErrForbidden, "district account has no region code")
		}
		filter.DistrictCode = actor.RegionCode
	case models.RoleBlock:
		if actor.RegionCode == "" {
			return appErrors.Clone(appErrors.ErrForbidden, "block account has no region code")
		}
		filter.BlockCode = actor.RegionCode
	case models.RoleSchool:
		if actor.RegionCode == "" {
			return appErrors.Clone(appErrors.ErrForbidden, "school account has no region code")
		}
		filter.SchoolUDISE = actor.RegionCode
	default:
		return appErrors.ErrForbidden
	}
	return nil
}
