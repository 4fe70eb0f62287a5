package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edudist/btd-api/internal/dto"
	"github.com/edudist/btd-api/internal/models"
	appErrors "github.com/edudist/btd-api/pkg/errors"
	"github.com/edudist/btd-api/pkg/response"
)

type workOrderService interface {
	Compute(ctx context.Context, additionalPercent int) (*models.WorkOrder, error)
	SendInstallment(ctx context.Context, requisitionID string, quantity int, idempotencyKey string, actor *models.JWTClaims) (*models.Installment, *models.Requisition, error)
}

// WorkOrderHandler exposes the state tier's fulfillment endpoints.
type WorkOrderHandler struct {
	service workOrderService
}

// NewWorkOrderHandler constructs the handler.
func NewWorkOrderHandler(service workOrderService) *WorkOrderHandler {
	return &WorkOrderHandler{service: service}
}

// Compute godoc
// @Summary Compute the procurement work order
// @Description Aggregate outstanding demand per book and apply the buffer percent
// @Tags WorkOrders
// @Produce json
// @Param additional_percent query int false "Buffer percent on top of the shortfall"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /work-orders [get]
func (h *WorkOrderHandler) Compute(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "work order service not configured"))
		return
	}
	additionalPercent := 0
	if raw := c.Query("additional_percent"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "additional_percent must be an integer"))
			return
		}
		additionalPercent = value
	}

	order, err := h.service.Compute(c.Request.Context(), additionalPercent)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, order, nil)
}

// SendInstallment godoc
// @Summary Send a stock-backed installment against an approved requisition
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param id path string true "Requisition ID"
// @Param payload body dto.SendInstallmentRequest true "Installment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requisitions/{id}/installments [post]
func (h *WorkOrderHandler) SendInstallment(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "work order service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SendInstallmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid installment payload"))
		return
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}

	installment, requisition, err := h.service.SendInstallment(c.Request.Context(), c.Param("id"), req.Quantity, req.IdempotencyKey, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{
		"installment": installment,
		"requisition": requisition,
	}, nil)
}
