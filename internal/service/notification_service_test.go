package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edudist/btd-api/internal/dto"
	"github.com/edudist/btd-api/internal/models"
	appErrors "github.com/edudist/btd-api/pkg/errors"
	"github.com/edudist/btd-api/pkg/jobs"
)

type notificationRepoStub struct {
	notifications map[string]*models.Notification
	receipts      map[string]map[string]*models.NotificationReceipt
	stats         models.NotificationStats
	statsCalls    int
}

func newNotificationRepoStub() *notificationRepoStub {
	return &notificationRepoStub{
		notifications: make(map[string]*models.Notification),
		receipts:      make(map[string]map[string]*models.NotificationReceipt),
	}
}

func (m *notificationRepoStub) Create(ctx context.Context, notification *models.Notification) error {
	m.notifications[notification.ID] = notification
	return nil
}

func (m *notificationRepoStub) CreateReceipts(ctx context.Context, notificationID string, recipientIDs []string) error {
	bucket, ok := m.receipts[notificationID]
	if !ok {
		bucket = make(map[string]*models.NotificationReceipt)
		m.receipts[notificationID] = bucket
	}
	for _, id := range recipientIDs {
		if _, exists := bucket[id]; exists {
			continue
		}
		bucket[id] = &models.NotificationReceipt{NotificationID: notificationID, RecipientID: id}
	}
	return nil
}

func (m *notificationRepoStub) ListForRecipient(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationWithReceipt, int, error) {
	result := make([]models.NotificationWithReceipt, 0)
	for id, bucket := range m.receipts {
		receipt, ok := bucket[filter.RecipientID]
		if !ok {
			continue
		}
		if filter.UnreadOnly && receipt.IsRead {
			continue
		}
		result = append(result, models.NotificationWithReceipt{
			Notification: *m.notifications[id],
			IsRead:       receipt.IsRead,
			ReadAt:       receipt.ReadAt,
		})
	}
	return result, len(result), nil
}

func (m *notificationRepoStub) MarkRead(ctx context.Context, notificationID, recipientID string, readAt time.Time) error {
	if bucket, ok := m.receipts[notificationID]; ok {
		if receipt, ok := bucket[recipientID]; ok && !receipt.IsRead {
			receipt.IsRead = true
			receipt.ReadAt = &readAt
		}
	}
	return nil
}

func (m *notificationRepoStub) HasReceipt(ctx context.Context, notificationID, recipientID string) (bool, error) {
	bucket, ok := m.receipts[notificationID]
	if !ok {
		return false, nil
	}
	_, ok = bucket[recipientID]
	return ok, nil
}

func (m *notificationRepoStub) Stats(ctx context.Context, recipientID string) (*models.NotificationStats, error) {
	m.statsCalls++
	stats := m.stats
	return &stats, nil
}

type recipientDirectoryStub struct {
	byRole     map[models.UserRole][]string
	byRegion   map[string][]string
	lastSender models.UserRole
	lastRegion string
}

func (m *recipientDirectoryStub) ListAudienceIDs(ctx context.Context, role, senderTier models.UserRole, senderRegion string) ([]string, error) {
	m.lastSender = senderTier
	m.lastRegion = senderRegion
	if senderTier != models.RoleState {
		return m.byRegion[senderRegion], nil
	}
	return m.byRole[role], nil
}

func newTestNotificationService(repo *notificationRepoStub, recipients *recipientDirectoryStub) *NotificationService {
	// Queue left unstarted so Create falls back to inline receipt writes,
	// keeping the tests synchronous.
	return NewNotificationService(repo, recipients, NewValidator(), &auditStub{}, nil, jobs.QueueConfig{}, time.Minute, nil)
}

func TestNotificationCreateFansOutToAudience(t *testing.T) {
	repo := newNotificationRepoStub()
	recipients := &recipientDirectoryStub{byRole: map[models.UserRole][]string{
		models.RoleBlock: {"block-1", "block-2"},
	}}
	svc := newTestNotificationService(repo, recipients)

	actor := &models.JWTClaims{UserID: "user-state", Role: models.RoleState}
	notification, err := svc.Create(context.Background(), dto.CreateNotificationRequest{
		Type:     models.NotificationTypeDistribution,
		Priority: models.NotificationPriorityHigh,
		Title:    "Dispatch schedule",
		Message:  "Installments ship Monday.",
		Audience: models.NotificationAudienceBlocks,
	}, actor)
	require.NoError(t, err)
	require.Equal(t, models.RoleState, notification.SenderTier)
	require.Nil(t, notification.ExpiresAt)
	require.Len(t, repo.receipts[notification.ID], 2)
}

func TestNotificationCreateScopesFanoutToSenderRegion(t *testing.T) {
	repo := newNotificationRepoStub()
	recipients := &recipientDirectoryStub{
		byRole: map[models.UserRole][]string{
			models.RoleBlock: {"block-in-dst-01", "block-in-dst-02"},
		},
		byRegion: map[string][]string{
			"DST-01": {"block-in-dst-01"},
		},
	}
	svc := newTestNotificationService(repo, recipients)

	district := &models.JWTClaims{UserID: "user-district", Role: models.RoleDistrict, RegionCode: "DST-01"}
	notification, err := svc.Create(context.Background(), dto.CreateNotificationRequest{
		Type:     models.NotificationTypeRequisition,
		Priority: models.NotificationPriorityNormal,
		Title:    "Review backlog",
		Message:  "Clear pending requisitions this week.",
		Audience: models.NotificationAudienceBlocks,
	}, district)
	require.NoError(t, err)

	// The audience lookup carries the sender's tier and region, and no
	// receipt lands outside that district.
	require.Equal(t, models.RoleDistrict, recipients.lastSender)
	require.Equal(t, "DST-01", recipients.lastRegion)
	require.Contains(t, repo.receipts[notification.ID], "block-in-dst-01")
	require.NotContains(t, repo.receipts[notification.ID], "block-in-dst-02")
}

func TestNotificationCreateAudienceMustBeBelowSender(t *testing.T) {
	svc := newTestNotificationService(newNotificationRepoStub(), &recipientDirectoryStub{})

	block := &models.JWTClaims{UserID: "user-block", Role: models.RoleBlock, RegionCode: "BLK-01"}
	_, err := svc.Create(context.Background(), dto.CreateNotificationRequest{
		Type:     models.NotificationTypeGeneral,
		Priority: models.NotificationPriorityNormal,
		Title:    "x",
		Message:  "y",
		Audience: models.NotificationAudienceDistricts,
	}, block)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestNotificationCreateRejectsUnknownEnums(t *testing.T) {
	repo := newNotificationRepoStub()
	svc := newTestNotificationService(repo, &recipientDirectoryStub{})
	actor := &models.JWTClaims{UserID: "user-state", Role: models.RoleState}

	base := dto.CreateNotificationRequest{
		Type:     models.NotificationTypeGeneral,
		Priority: models.NotificationPriorityNormal,
		Title:    "Stock update",
		Message:  "New stock arriving.",
		Audience: models.NotificationAudienceBlocks,
	}

	bogusPriority := base
	bogusPriority.Priority = models.NotificationPriority("SHOUTING")
	_, err := svc.Create(context.Background(), bogusPriority, actor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	bogusType := base
	bogusType.Type = models.NotificationType("GOSSIP")
	_, err = svc.Create(context.Background(), bogusType, actor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	blankTitle := base
	blankTitle.Title = "   "
	_, err = svc.Create(context.Background(), blankTitle, actor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	require.Empty(t, repo.notifications)
}

func TestNotificationCreateExpiry(t *testing.T) {
	repo := newNotificationRepoStub()
	svc := newTestNotificationService(repo, &recipientDirectoryStub{})

	actor := &models.JWTClaims{UserID: "user-state", Role: models.RoleState}
	notification, err := svc.Create(context.Background(), dto.CreateNotificationRequest{
		Type:          models.NotificationTypeUrgent,
		Priority:      models.NotificationPriorityHigh,
		Title:         "Window closing",
		Message:       "Submit before Friday.",
		Audience:      models.NotificationAudienceSchools,
		ExpiresInDays: 7,
	}, actor)
	require.NoError(t, err)
	require.NotNil(t, notification.ExpiresAt)
	require.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 7), *notification.ExpiresAt, time.Minute)
}

func TestNotificationMarkReadIdempotent(t *testing.T) {
	repo := newNotificationRepoStub()
	repo.notifications["n-1"] = &models.Notification{ID: "n-1"}
	repo.receipts["n-1"] = map[string]*models.NotificationReceipt{
		"user-1": {NotificationID: "n-1", RecipientID: "user-1"},
	}
	svc := newTestNotificationService(repo, &recipientDirectoryStub{})

	actor := &models.JWTClaims{UserID: "user-1", Role: models.RoleBlock}
	require.NoError(t, svc.MarkRead(context.Background(), "n-1", actor))
	first := repo.receipts["n-1"]["user-1"].ReadAt
	require.NotNil(t, first)

	// A second call succeeds and leaves the original read timestamp alone.
	require.NoError(t, svc.MarkRead(context.Background(), "n-1", actor))
	require.Equal(t, first, repo.receipts["n-1"]["user-1"].ReadAt)
}

func TestNotificationMarkReadNotTargeted(t *testing.T) {
	repo := newNotificationRepoStub()
	repo.notifications["n-1"] = &models.Notification{ID: "n-1"}
	repo.receipts["n-1"] = map[string]*models.NotificationReceipt{}
	svc := newTestNotificationService(repo, &recipientDirectoryStub{})

	actor := &models.JWTClaims{UserID: "outsider", Role: models.RoleSchool}
	err := svc.MarkRead(context.Background(), "n-1", actor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestNotificationListFiltersUnread(t *testing.T) {
	repo := newNotificationRepoStub()
	repo.notifications["n-1"] = &models.Notification{ID: "n-1", Title: "read one"}
	repo.notifications["n-2"] = &models.Notification{ID: "n-2", Title: "unread one"}
	readAt := time.Now().UTC()
	repo.receipts["n-1"] = map[string]*models.NotificationReceipt{
		"user-1": {NotificationID: "n-1", RecipientID: "user-1", IsRead: true, ReadAt: &readAt},
	}
	repo.receipts["n-2"] = map[string]*models.NotificationReceipt{
		"user-1": {NotificationID: "n-2", RecipientID: "user-1"},
	}
	svc := newTestNotificationService(repo, &recipientDirectoryStub{})

	actor := &models.JWTClaims{UserID: "user-1", Role: models.RoleDistrict}
	feed, _, err := svc.List(context.Background(), dto.NotificationQuery{UnreadOnly: true}, actor)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Equal(t, "n-2", feed[0].ID)
}

func TestNotificationStats(t *testing.T) {
	repo := newNotificationRepoStub()
	repo.stats = models.NotificationStats{Total: 8, Unread: 3}
	svc := newTestNotificationService(repo, &recipientDirectoryStub{})

	actor := &models.JWTClaims{UserID: "user-1", Role: models.RoleBlock}
	stats, err := svc.Stats(context.Background(), actor)
	require.NoError(t, err)
	require.Equal(t, 8, stats.Total)
	require.Equal(t, 3, stats.Unread)
}
