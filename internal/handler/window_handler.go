package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edudist/btd-api/internal/dto"
	"github.com/edudist/btd-api/internal/models"
	appErrors "github.com/edudist/btd-api/pkg/errors"
	"github.com/edudist/btd-api/pkg/response"
)

type windowService interface {
	ListAll(ctx context.Context, actor *models.JWTClaims) ([]models.RequisitionWindow, error)
	Status(ctx context.Context, tier models.WindowTier) (models.WindowState, error)
	Upsert(ctx context.Context, req dto.UpsertWindowRequest, actor *models.JWTClaims) (*models.RequisitionWindow, error)
}

// WindowHandler exposes the requisition window endpoints.
type WindowHandler struct {
	service windowService
}

// NewWindowHandler constructs the handler.
func NewWindowHandler(service windowService) *WindowHandler {
	return &WindowHandler{service: service}
}

// List godoc
// @Summary List configured windows
// @Tags Windows
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /windows [get]
func (h *WindowHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "window service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	windows, err := h.service.ListAll(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// Status godoc
// @Summary Derived window state for one tier
// @Tags Windows
// @Produce json
// @Param tier path string true "Window tier (SCHOOL, BLOCK or DISTRICT)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /windows/{tier}/status [get]
func (h *WindowHandler) Status(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "window service not configured"))
		return
	}
	tier := models.WindowTier(strings.ToUpper(strings.TrimSpace(c.Param("tier"))))
	if !models.ValidWindowTier(tier) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "tier must be SCHOOL, BLOCK or DISTRICT"))
		return
	}
	state, err := h.service.Status(c.Request.Context(), tier)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Upsert godoc
// @Summary Create or replace a tier's submission window
// @Tags Windows
// @Accept json
// @Produce json
// @Param payload body dto.UpsertWindowRequest true "Window payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /windows [put]
func (h *WindowHandler) Upsert(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "window service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpsertWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid window payload"))
		return
	}
	window, err := h.service.Upsert(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, window, nil)
}
