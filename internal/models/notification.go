package models

import "time"

// NotificationType classifies broadcast messages.
type NotificationType string

const (
	NotificationTypeGeneral      NotificationType = "GENERAL"
	NotificationTypeRequisition  NotificationType = "REQUISITION"
	NotificationTypeDistribution NotificationType = "DISTRIBUTION"
	NotificationTypeUrgent       NotificationType = "URGENT"
)

// NotificationPriority orders the feed alongside recency.
type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "LOW"
	NotificationPriorityNormal NotificationPriority = "NORMAL"
	NotificationPriorityHigh   NotificationPriority = "HIGH"
)

// NotificationAudience is the single target breadth of a broadcast. Exactly
// one is selected per notification; breadths are never combined.
type NotificationAudience string

const (
	NotificationAudienceDistricts NotificationAudience = "DISTRICTS"
	NotificationAudienceBlocks    NotificationAudience = "BLOCKS"
	NotificationAudienceSchools   NotificationAudience = "SCHOOLS"
)

// Notification is a broadcast created by a tier for its downward audience.
// Expired notifications stay readable; expiry only stops new deliveries.
type Notification struct {
	ID         string               `db:"id" json:"id"`
	Type       NotificationType     `db:"type" json:"type"`
	Priority   NotificationPriority `db:"priority" json:"priority"`
	Title      string               `db:"title" json:"title"`
	Message    string               `db:"message" json:"message"`
	SenderTier UserRole             `db:"sender_tier" json:"sender_tier"`
	SenderID   string               `db:"sender_id" json:"sender_id"`
	Audience   NotificationAudience `db:"audience" json:"audience"`
	RegionCode string               `db:"region_code" json:"region_code"`
	ExpiresAt  *time.Time           `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt  time.Time            `db:"created_at" json:"created_at"`
}

// NotificationReceipt tracks per-recipient read state.
type NotificationReceipt struct {
	ID             string     `db:"id" json:"id"`
	NotificationID string     `db:"notification_id" json:"notification_id"`
	RecipientID    string     `db:"recipient_id" json:"recipient_id"`
	IsRead         bool       `db:"is_read" json:"is_read"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
}

// NotificationWithReceipt joins a notification with the caller's read flag.
type NotificationWithReceipt struct {
	Notification
	IsRead bool       `db:"is_read" json:"is_read"`
	ReadAt *time.Time `db:"read_at" json:"read_at,omitempty"`
}

// NotificationStats summarises the caller's feed.
type NotificationStats struct {
	Total  int `db:"total" json:"total"`
	Unread int `db:"unread" json:"unread"`
}

// NotificationFilter constrains feed queries to one recipient.
type NotificationFilter struct {
	RecipientID string
	Type        NotificationType
	UnreadOnly  bool
	Page        int
	PageSize    int
}
