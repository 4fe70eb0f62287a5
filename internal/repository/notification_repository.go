package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edudist/btd-api/internal/models"
)

// NotificationRepository persists broadcasts and per-recipient receipts.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, type, priority, title, message, sender_tier, sender_id, audience, region_code, expires_at, created_at)
VALUES (:id, :type, :priority, :title, :message, :sender_tier, :sender_id, :audience, :region_code, :expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// CreateReceipts inserts unread receipts for the given recipients. Conflicts
// are ignored so a retried fan-out job stays idempotent.
func (r *NotificationRepository) CreateReceipts(ctx context.Context, notificationID string, recipientIDs []string) error {
	if len(recipientIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO notification_receipts (id, notification_id, recipient_id, is_read)
SELECT gen_random_uuid(), $1, r.id, FALSE FROM unnest($2::text[]) AS r(id)
ON CONFLICT (notification_id, recipient_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, notificationID, pq.Array(recipientIDs)); err != nil {
		return fmt.Errorf("create notification receipts: %w", err)
	}
	return nil
}

// ListForRecipient returns the recipient's feed newest first with a total
// count. Expired notifications are included; expiry never hides history.
func (r *NotificationRepository) ListForRecipient(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationWithReceipt, int, error) {
	base := `FROM notifications n JOIN notification_receipts nr ON nr.notification_id = n.id`
	conditions := []string{"nr.recipient_id = $1"}
	args := []interface{}{filter.RecipientID}

	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("n.type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.UnreadOnly {
		conditions = append(conditions, "nr.is_read = FALSE")
	}
	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT n.id, n.type, n.priority, n.title, n.message, n.sender_tier, n.sender_id, n.audience, n.region_code, n.expires_at, n.created_at,
       nr.is_read, nr.read_at
%s%s ORDER BY n.created_at DESC LIMIT %d OFFSET %d`, base, whereClause, pageSize, offset)
	var notifications []models.NotificationWithReceipt
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s%s", base, whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return notifications, total, nil
}

// MarkRead flips one receipt to read. Marking an already-read receipt is a
// no-op; the caller cannot drive the unread count negative.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID, recipientID string, readAt time.Time) error {
	const query = `UPDATE notification_receipts SET is_read = TRUE, read_at = $3
WHERE notification_id = $1 AND recipient_id = $2 AND is_read = FALSE`
	result, err := r.db.ExecContext(ctx, query, notificationID, recipientID, readAt)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if _, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("check mark read rows: %w", err)
	}
	return nil
}

// HasReceipt reports whether the recipient was targeted by the notification.
func (r *NotificationRepository) HasReceipt(ctx context.Context, notificationID, recipientID string) (bool, error) {
	const query = `SELECT 1 FROM notification_receipts WHERE notification_id = $1 AND recipient_id = $2`
	var one int
	if err := r.db.GetContext(ctx, &one, query, notificationID, recipientID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check notification receipt: %w", err)
	}
	return true, nil
}

// Stats returns total and unread counts for a recipient. Unread is computed
// from the receipts table, so it is never negative.
func (r *NotificationRepository) Stats(ctx context.Context, recipientID string) (*models.NotificationStats, error) {
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE is_read = FALSE) AS unread
FROM notification_receipts WHERE recipient_id = $1`
	var stats models.NotificationStats
	if err := r.db.GetContext(ctx, &stats, query, recipientID); err != nil {
		return nil, fmt.Errorf("notification stats: %w", err)
	}
	return &stats, nil
}
