package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/edudist/btd-api/internal/models"
)

// NewValidator builds the shared request validator with the domain enum
// validations registered.
func NewValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("issuepriority", func(fl validator.FieldLevel) bool {
		switch models.IssuePriority(fl.Field().String()) {
		case models.IssuePriorityLow, models.IssuePriorityMedium, models.IssuePriorityHigh, models.IssuePriorityCritical:
			return true
		}
		return false
	})
	_ = validate.RegisterValidation("notificationtype", func(fl validator.FieldLevel) bool {
		switch models.NotificationType(fl.Field().String()) {
		case models.NotificationTypeGeneral, models.NotificationTypeRequisition, models.NotificationTypeDistribution, models.NotificationTypeUrgent:
			return true
		}
		return false
	})
	_ = validate.RegisterValidation("notificationpriority", func(fl validator.FieldLevel) bool {
		switch models.NotificationPriority(fl.Field().String()) {
		case models.NotificationPriorityLow, models.NotificationPriorityNormal, models.NotificationPriorityHigh:
			return true
		}
		return false
	})
	return validate
}
