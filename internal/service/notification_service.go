package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edudist/btd-api/internal/dto"
	"github.com/edudist/btd-api/internal/models"
	appErrors "github.com/edudist/btd-api/pkg/errors"
	"github.com/edudist/btd-api/pkg/jobs"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	CreateReceipts(ctx context.Context, notificationID string, recipientIDs []string) error
	ListForRecipient(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationWithReceipt, int, error)
	MarkRead(ctx context.Context, notificationID, recipientID string, readAt time.Time) error
	HasReceipt(ctx context.Context, notificationID, recipientID string) (bool, error)
	Stats(ctx context.Context, recipientID string) (*models.NotificationStats, error)
}

type recipientDirectory interface {
	ListAudienceIDs(ctx context.Context, role, senderTier models.UserRole, senderRegion string) ([]string, error)
}

// audienceRole maps each audience breadth to the recipient tier it targets.
var audienceRole = map[models.NotificationAudience]models.UserRole{
	models.NotificationAudienceDistricts: models.RoleDistrict,
	models.NotificationAudienceBlocks:    models.RoleBlock,
	models.NotificationAudienceSchools:   models.RoleSchool,
}

// audienceRank orders tiers top-down so a sender can only broadcast below
// itself.
var audienceRank = map[models.UserRole]int{
	models.RoleState:    0,
	models.RoleDistrict: 1,
	models.RoleBlock:    2,
	models.RoleSchool:   3,
}

// NotificationService creates broadcasts and serves per-recipient feeds.
// Receipt fan-out runs on the background queue so a slow insert never blocks
// the create response; CreateReceipts is idempotent, so retries are safe.
type NotificationService struct {
	repo       notificationStore
	recipients recipientDirectory
	validator  *validator.Validate
	audit      auditLogger
	cache      *CacheService
	fanout     *jobs.Queue
	statsTTL   time.Duration
	logger     *zap.Logger
}

type fanoutPayload struct {
	NotificationID string
	Audience       models.NotificationAudience
	SenderTier     models.UserRole
	RegionCode     string
}

// NewNotificationService constructs the service and its fan-out queue. Call
// StartFanout before serving traffic and StopFanout on shutdown.
func NewNotificationService(repo notificationStore, recipients recipientDirectory, validate *validator.Validate, audit auditLogger, cache *CacheService, queueCfg jobs.QueueConfig, statsTTL time.Duration, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	s := &NotificationService{
		repo:       repo,
		recipients: recipients,
		validator:  validate,
		audit:      audit,
		cache:      cache,
		statsTTL:   statsTTL,
		logger:     logger,
	}
	if queueCfg.Logger == nil {
		queueCfg.Logger = logger
	}
	s.fanout = jobs.NewQueue("notification-fanout", s.handleFanout, queueCfg)
	return s
}

// StartFanout starts the receipt fan-out workers.
func (s *NotificationService) StartFanout(ctx context.Context) {
	s.fanout.Start(ctx)
}

// StopFanout drains and stops the fan-out workers.
func (s *NotificationService) StopFanout() {
	s.fanout.Stop()
}

// Create broadcasts a notification to exactly one audience breadth strictly
// below the sender's tier. Receipts are written asynchronously.
func (s *NotificationService) Create(ctx context.Context, req dto.CreateNotificationRequest, actor *models.JWTClaims) (*models.Notification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}
	targetRole, ok := audienceRole[req.Audience]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "audience must be DISTRICTS, BLOCKS or SCHOOLS")
	}
	senderRank, ok := audienceRank[actor.Role]
	if !ok || senderRank >= audienceRank[targetRole] {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "audience must be below the sender's tier")
	}

	now := time.Now().UTC()
	notification := &models.Notification{
		ID:         uuid.NewString(),
		Type:       req.Type,
		Priority:   req.Priority,
		Title:      strings.TrimSpace(req.Title),
		Message:    strings.TrimSpace(req.Message),
		SenderTier: actor.Role,
		SenderID:   actor.UserID,
		Audience:   req.Audience,
		RegionCode: actor.RegionCode,
		CreatedAt:  now,
	}
	if req.ExpiresInDays > 0 {
		expires := now.AddDate(0, 0, req.ExpiresInDays)
		notification.ExpiresAt = &expires
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}

	if err := s.fanout.Enqueue(jobs.Job{
		ID:   notification.ID,
		Type: "fanout",
		Payload: fanoutPayload{
			NotificationID: notification.ID,
			Audience:       notification.Audience,
			SenderTier:     notification.SenderTier,
			RegionCode:     notification.RegionCode,
		},
	}); err != nil {
		// Fall back to a synchronous fan-out so the broadcast still lands.
		s.logger.Warn("fan-out queue unavailable, writing receipts inline", zap.Error(err))
		if err := s.writeReceipts(ctx, notification.ID, notification.Audience, notification.SenderTier, notification.RegionCode); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deliver notification")
		}
	}

	s.emitAudit(ctx, actor.UserID, notification)
	return notification, nil
}

// List returns the caller's feed, newest first, with the per-recipient read
// flag joined in.
func (s *NotificationService) List(ctx context.Context, query dto.NotificationQuery, actor *models.JWTClaims) ([]models.NotificationWithReceipt, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.NotificationFilter{
		RecipientID: actor.UserID,
		Type:        query.Type,
		UnreadOnly:  query.UnreadOnly,
		Page:        query.Page,
		PageSize:    query.PageSize,
	}
	notifications, total, err := s.repo.ListForRecipient(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	return notifications, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// MarkRead flips the caller's receipt to read. Repeat calls succeed without
// changing anything; marking a notification that never targeted the caller is
// a not-found.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	targeted, err := s.repo.HasReceipt(ctx, notificationID, actor.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check notification receipt")
	}
	if !targeted {
		return appErrors.ErrNotFound
	}
	if err := s.repo.MarkRead(ctx, notificationID, actor.UserID, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	s.invalidateStats(ctx, actor.UserID)
	return nil
}

// Stats returns total and unread counts for the caller, cached briefly.
func (s *NotificationService) Stats(ctx context.Context, actor *models.JWTClaims) (*models.NotificationStats, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	key := statsCacheKey(actor.UserID)
	if s.cache != nil {
		var cached models.NotificationStats
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	stats, err := s.repo.Stats(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification stats")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.statsTTL); err != nil {
			s.logger.Warn("failed to cache notification stats", zap.Error(err))
		}
	}
	return stats, nil
}

func (s *NotificationService) handleFanout(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(fanoutPayload)
	if !ok {
		s.logger.Error("fan-out job carried unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.writeReceipts(ctx, payload.NotificationID, payload.Audience, payload.SenderTier, payload.RegionCode)
}

// writeReceipts resolves the audience within the sender's region and inserts
// one unread receipt per recipient. A district broadcast never reaches blocks
// or schools of another district; state broadcasts span the whole tier.
func (s *NotificationService) writeReceipts(ctx context.Context, notificationID string, audience models.NotificationAudience, senderTier models.UserRole, senderRegion string) error {
	recipientIDs, err := s.recipients.ListAudienceIDs(ctx, audienceRole[audience], senderTier, senderRegion)
	if err != nil {
		return err
	}
	if len(recipientIDs) == 0 {
		return nil
	}
	if err := s.repo.CreateReceipts(ctx, notificationID, recipientIDs); err != nil {
		return err
	}
	if s.cache != nil {
		for _, id := range recipientIDs {
			s.invalidateStats(ctx, id)
		}
	}
	return nil
}

func (s *NotificationService) invalidateStats(ctx context.Context, recipientID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, statsCacheKey(recipientID)); err != nil {
		s.logger.Warn("failed to invalidate notification stats cache", zap.Error(err))
	}
}

func (s *NotificationService) emitAudit(ctx context.Context, userID string, notification *models.Notification) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionNotificationCreate,
		Resource:   "notification",
		ResourceID: &notification.ID,
		IPAddress:  "system",
		UserAgent:  "notification-service",
	}); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func statsCacheKey(recipientID string) string {
	return "notification:stats:" + recipientID
}
