package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/edudist/btd-api/internal/middleware"
	"github.com/edudist/btd-api/internal/models"
)

type fakeWorkOrderSrv struct {
	order       *models.WorkOrder
	computeErr  error
	lastPercent int
	installment *models.Installment
	requisition *models.Requisition
	sendErr     error
	lastSend    struct {
		requisitionID  string
		quantity       int
		idempotencyKey string
	}
}

func (f *fakeWorkOrderSrv) Compute(_ context.Context, additionalPercent int) (*models.WorkOrder, error) {
	f.lastPercent = additionalPercent
	return f.order, f.computeErr
}

func (f *fakeWorkOrderSrv) SendInstallment(_ context.Context, requisitionID string, quantity int, idempotencyKey string, _ *models.JWTClaims) (*models.Installment, *models.Requisition, error) {
	f.lastSend.requisitionID = requisitionID
	f.lastSend.quantity = quantity
	f.lastSend.idempotencyKey = idempotencyKey
	return f.installment, f.requisition, f.sendErr
}

func TestWorkOrderHandlerComputePassesPercent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeWorkOrderSrv{order: &models.WorkOrder{AdditionalPercent: 10}}
	handler := NewWorkOrderHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/work-orders?additional_percent=10", nil)

	handler.Compute(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, service.lastPercent)
}

func TestWorkOrderHandlerComputeRejectsNonInteger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewWorkOrderHandler(&fakeWorkOrderSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/work-orders?additional_percent=ten", nil)

	handler.Compute(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkOrderHandlerSendInstallmentHeaderKeyFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeWorkOrderSrv{
		installment: &models.Installment{ID: "inst-1"},
		requisition: &models.Requisition{ID: "req-1"},
	}
	handler := NewWorkOrderHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/requisitions/req-1/installments",
		strings.NewReader(`{"quantity":200}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Header.Set("Idempotency-Key", "retry-1")
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-state", Role: models.RoleState})

	handler.SendInstallment(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "req-1", service.lastSend.requisitionID)
	assert.Equal(t, 200, service.lastSend.quantity)
	assert.Equal(t, "retry-1", service.lastSend.idempotencyKey)
}

func TestWorkOrderHandlerSendInstallmentBodyKeyWins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeWorkOrderSrv{
		installment: &models.Installment{ID: "inst-1"},
		requisition: &models.Requisition{ID: "req-1"},
	}
	handler := NewWorkOrderHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/requisitions/req-1/installments",
		strings.NewReader(`{"quantity":200,"idempotency_key":"body-key"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Header.Set("Idempotency-Key", "header-key")
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-state", Role: models.RoleState})

	handler.SendInstallment(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "body-key", service.lastSend.idempotencyKey)
}
