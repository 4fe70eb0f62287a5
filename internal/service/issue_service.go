package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edudist/btd-api/internal/dto"
	"github.com/edudist/btd-api/internal/models"
	"github.com/edudist/btd-api/internal/repository"
	appErrors "github.com/edudist/btd-api/pkg/errors"
)

type issueStore interface {
	Create(ctx context.Context, issue *models.Issue) error
	GetByID(ctx context.Context, id string) (*models.Issue, error)
	List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error)
	UpdateReview(ctx context.Context, params repository.UpdateIssueReviewParams) error
}

// IssueService runs the problem-report escalation workflow. Each tier resolves,
// rejects or escalates; escalation carries earlier tiers' remarks along
// untouched.
type IssueService struct {
	repo      issueStore
	schools   schoolDirectory
	validator *validator.Validate
	audit     auditLogger
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewIssueService constructs the service.
func NewIssueService(repo issueStore, schools schoolDirectory, validate *validator.Validate, audit auditLogger, metrics *MetricsService, logger *zap.Logger) *IssueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &IssueService{repo: repo, schools: schools, validator: validate, audit: audit, metrics: metrics, logger: logger}
}

// Create raises a new issue for a school. School accounts may only raise
// issues against themselves.
func (s *IssueService) Create(ctx context.Context, req dto.CreateIssueRequest, actor *models.JWTClaims) (*models.Issue, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid issue payload")
	}
	if actor.Role == models.RoleSchool && actor.RegionCode != req.SchoolUDISE {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "school outside caller scope")
	}

	if _, err := s.schools.GetSchoolByUDISE(ctx, req.SchoolUDISE); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve school")
	}

	now := time.Now().UTC()
	issue := &models.Issue{
		ID:          uuid.NewString(),
		IssueCode:   newIssueCode(now),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Priority:    req.Priority,
		Status:      models.IssueStatusPendingBlock,
		SchoolUDISE: req.SchoolUDISE,
		RaisedBy:    actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, issue); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create issue")
	}
	return issue, nil
}

// List returns issues visible to the actor with pagination.
func (s *IssueService) List(ctx context.Context, query dto.IssueQuery, actor *models.JWTClaims) ([]models.Issue, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.IssueFilter{
		Status:   query.Status,
		Priority: query.Priority,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	switch actor.Role {
	case models.RoleState:
	case models.RoleDistrict:
		filter.DistrictCode = actor.RegionCode
	case models.RoleBlock:
		filter.BlockCode = actor.RegionCode
	case models.RoleSchool:
		filter.SchoolUDISE = actor.RegionCode
	default:
		return nil, nil, appErrors.ErrForbidden
	}

	issues, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list issues")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	return issues, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// GetByID loads one issue, enforcing the actor's regional scope.
func (s *IssueService) GetByID(ctx context.Context, id string, actor *models.JWTClaims) (*models.Issue, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	issue, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issue")
	}
	if err := s.checkScope(ctx, issue.SchoolUDISE, actor); err != nil {
		return nil, err
	}
	return issue, nil
}

// Review applies resolve, reject or escalate at the actor's tier. Remarks are
// stamped into the tier's own column only; earlier tiers' remarks survive.
func (s *IssueService) Review(ctx context.Context, id string, req dto.ReviewIssueRequest, actor *models.JWTClaims) (*models.Issue, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	tier, ok := models.IssueTierFor(actor.Role)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "tier does not review issues")
	}

	issue, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issue")
	}
	if err := s.checkScope(ctx, issue.SchoolUDISE, actor); err != nil {
		return nil, err
	}
	if !tier.CanReview(issue.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "issue is not pending at this tier")
	}

	now := time.Now().UTC()
	params := repository.UpdateIssueReviewParams{
		ID:             issue.ID,
		ExpectedStatus: issue.Status,
		RemarkColumn:   tier.RemarkColumn,
		ReviewedColumn: tier.ReviewedColumn,
		ReviewedAt:     now,
	}
	remarks := strings.TrimSpace(req.Remarks)
	if remarks != "" {
		params.Remarks = &remarks
	}

	switch req.Action {
	case models.IssueActionResolve:
		params.NewStatus = models.IssueStatusResolved
		params.ResolvedAt = &now
	case models.IssueActionReject:
		if remarks == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "remarks are required to reject")
		}
		params.NewStatus = tier.RejectedStatus
		params.RejectedAt = &now
	case models.IssueActionEscalate:
		if tier.EscalateStatus == "" {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "issue cannot be escalated beyond the state tier")
		}
		params.NewStatus = tier.EscalateStatus
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "action must be resolve, reject or escalate")
	}

	if err := s.repo.UpdateReview(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "issue was reviewed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update issue")
	}

	s.metrics.RecordReview("issue", string(actor.Role), string(req.Action))
	s.emitAudit(ctx, actor.UserID, issue.ID, issue.Status, params.NewStatus)

	updated, err := s.repo.GetByID(ctx, issue.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload issue")
	}
	return updated, nil
}

func (s *IssueService) checkScope(ctx context.Context, udise string, actor *models.JWTClaims) error {
	switch actor.Role {
	case models.RoleState:
		return nil
	case models.RoleSchool:
		if actor.RegionCode != udise {
			return appErrors.Clone(appErrors.ErrForbidden, "issue outside caller scope")
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
			return appErrors.Clone(appErrors.ErrForbidden, "issue outside caller scope")
		}
	case models.RoleDistrict:
		if school.DistrictCode != actor.RegionCode {
			return appErrors.Clone(appErrors.ErrForbidden, "issue outside caller scope")
		}
	}
	return nil
}

func (s *IssueService) emitAudit(ctx context.Context, userID, issueID string, from, to models.IssueStatus) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"from": string(from), "to": string(to)})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionIssueReview,
		Resource:   "issue",
		ResourceID: &issueID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "issue-service",
	}); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// newIssueCode produces a short human-readable reference like ISS-20260828-1A2B3C.
func newIssueCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("ISS-%s-%s", now.Format("20060102"), suffix)
}
