package dto

import "github.com/edudist/btd-api/internal/models"

// CreateNotificationRequest broadcasts a message to exactly one audience
// breadth. ExpiresInDays is converted to an absolute instant at creation;
// zero means no expiry.
type CreateNotificationRequest struct {
	Type          models.NotificationType     `json:"type" validate:"required,notificationtype"`
	Priority      models.NotificationPriority `json:"priority" validate:"required,notificationpriority"`
	Title         string                      `json:"title" validate:"required"`
	Message       string                      `json:"message" validate:"required"`
	Audience      models.NotificationAudience `json:"audience" validate:"required"`
	ExpiresInDays int                         `json:"expires_in_days" validate:"gte=0"`
}

// NotificationQuery mirrors supported feed filters.
type NotificationQuery struct {
	Type       models.NotificationType
	UnreadOnly bool
	Page       int
	PageSize   int
}
