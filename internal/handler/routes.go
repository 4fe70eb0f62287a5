package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/edudist/btd-api/internal/middleware"
	"github.com/edudist/btd-api/internal/models"
	"github.com/edudist/btd-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth          *AuthHandler
	Requisitions  *RequisitionHandler
	WorkOrders    *WorkOrderHandler
	Issues        *IssueHandler
	Windows       *WindowHandler
	Notifications *NotificationHandler
	Lookups       *LookupHandler
	Metrics       *MetricsHandler
}

// RegisterRoutes attaches every endpoint under the API prefix. Identity is
// read from JWT claims only; no route accepts a caller-supplied identity.
// Mutating routes whose services do not emit their own audit entries get the
// audit middleware; the rest log from the service layer.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, authService *service.AuthService, audit middleware.AuditStore) {
	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", middleware.JWT(authService), h.Auth.Logout)
		auth.GET("/me", middleware.JWT(authService), h.Auth.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	requisitions := protected.Group("/requisitions")
	{
		requisitions.GET("", h.Requisitions.List)
		requisitions.GET("/pending", middleware.RequireRoles(models.RoleBlock, models.RoleDistrict), h.Requisitions.ListGrouped)
		requisitions.POST("/:id/review", middleware.RequireRoles(models.RoleBlock, models.RoleDistrict), h.Requisitions.Review)
		requisitions.POST("/:id/reapprove", middleware.RequireRoles(models.RoleBlock, models.RoleDistrict), h.Requisitions.Reapprove)
		requisitions.PUT("/:id/remark", middleware.RequireRoles(models.RoleBlock, models.RoleDistrict), h.Requisitions.SaveRemark)
		requisitions.POST("/:id/installments", middleware.RequireRoles(models.RoleState), h.WorkOrders.SendInstallment)
	}

	protected.GET("/work-orders", middleware.RequireRoles(models.RoleState), h.WorkOrders.Compute)

	issues := protected.Group("/issues")
	{
		issues.POST("", middleware.Audit(audit, models.AuditActionIssueCreate, "issue"), h.Issues.Create)
		issues.GET("", h.Issues.List)
		issues.GET("/:id", h.Issues.Get)
		issues.POST("/:id/review", middleware.RequireRoles(models.RoleBlock, models.RoleDistrict, models.RoleState), h.Issues.Review)
	}

	windows := protected.Group("/windows")
	{
		windows.GET("", middleware.RequireRoles(models.RoleState), h.Windows.List)
		windows.GET("/:tier/status", h.Windows.Status)
		windows.PUT("", middleware.RequireRoles(models.RoleState), h.Windows.Upsert)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.POST("", middleware.RequireRoles(models.RoleState, models.RoleDistrict, models.RoleBlock), h.Notifications.Create)
		notifications.GET("", h.Notifications.List)
		notifications.GET("/stats", h.Notifications.Stats)
		notifications.POST("/:id/read", middleware.Audit(audit, models.AuditActionNotificationRead, "notification"), h.Notifications.MarkRead)
	}

	protected.GET("/districts", h.Lookups.ListDistricts)
	protected.GET("/blocks", h.Lookups.ListBlocks)
	protected.GET("/schools", h.Lookups.ListSchools)
	protected.GET("/schools/:udise", h.Lookups.GetSchool)
	protected.GET("/books", h.Lookups.ListBooks)
	protected.GET("/books/:id", h.Lookups.GetBook)

	if h.Metrics != nil {
		r.GET("/metrics", h.Metrics.Prometheus)
	}
}
