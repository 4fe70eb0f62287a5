package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edudist/btd-api/internal/dto"
	"github.com/edudist/btd-api/internal/models"
	appErrors "github.com/edudist/btd-api/pkg/errors"
	"github.com/edudist/btd-api/pkg/response"
)

type requisitionService interface {
	List(ctx context.Context, query dto.RequisitionQuery, actor *models.JWTClaims) ([]models.Requisition, *models.Pagination, error)
	ListPendingGrouped(ctx context.Context, actor *models.JWTClaims) ([]dto.SchoolRequisitionGroup, error)
	Review(ctx context.Context, id string, req dto.ReviewRequisitionRequest, actor *models.JWTClaims) (*models.Requisition, error)
	Reapprove(ctx context.Context, id string, actor *models.JWTClaims) (*models.Requisition, error)
	SaveRemark(ctx context.Context, id string, req dto.SaveRemarkRequest, actor *models.JWTClaims) (*models.Requisition, error)
}

// RequisitionHandler exposes REST endpoints for the requisition workflow.
type RequisitionHandler struct {
	service requisitionService
}

// NewRequisitionHandler constructs the handler.
func NewRequisitionHandler(service requisitionService) *RequisitionHandler {
	return &RequisitionHandler{service: service}
}

// List godoc
// @Summary List requisitions in scope
// @Tags Requisitions
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param book_id query string false "Book ID"
// @Param school_udise query string false "School UDISE code"
// @Param pending query bool false "Only the caller tier's pending queue"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requisitions [get]
func (h *RequisitionHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "requisition service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	query := dto.RequisitionQuery{
		BookID:      strings.TrimSpace(c.Query("book_id")),
		SchoolUDISE: strings.TrimSpace(c.Query("school_udise")),
		PendingOnly: c.Query("pending") == "true",
		Page:        parseIntQuery(c, "page", 1),
		PageSize:    parseIntQuery(c, "page_size", 50),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.RequisitionStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.RequisitionStatus(part))
		}
		query.Status = statuses
	}

	requisitions, pagination, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requisitions, pagination)
}

// ListGrouped godoc
// @Summary Pending requisitions grouped by school
// @Tags Requisitions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requisitions/pending [get]
func (h *RequisitionHandler) ListGrouped(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "requisition service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	groups, err := h.service.ListPendingGrouped(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// Review godoc
// @Summary Approve or reject a requisition at the caller's tier
// @Tags Requisitions
// @Accept json
// @Produce json
// @Param id path string true "Requisition ID"
// @Param payload body dto.ReviewRequisitionRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requisitions/{id}/review [post]
func (h *RequisitionHandler) Review(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "requisition service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ReviewRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	requisition, err := h.service.Review(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requisition, nil)
}

// Reapprove godoc
// @Summary Move a requisition rejected at the caller's tier forward
// @Tags Requisitions
// @Produce json
// @Param id path string true "Requisition ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requisitions/{id}/reapprove [post]
func (h *RequisitionHandler) Reapprove(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "requisition service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requisition, err := h.service.Reapprove(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requisition, nil)
}

// SaveRemark godoc
// @Summary Save a remark without changing status
// @Tags Requisitions
// @Accept json
// @Produce json
// @Param id path string true "Requisition ID"
// @Param payload body dto.SaveRemarkRequest true "Remark payload"
// @Success 200 {object} response.Envelope
// @Router /requisitions/{id}/remark [put]
func (h *RequisitionHandler) SaveRemark(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "requisition service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SaveRemarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid remark payload"))
		return
	}
	requisition, err := h.service.SaveRemark(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requisition, nil)
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
