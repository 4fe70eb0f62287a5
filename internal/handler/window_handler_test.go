package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/edudist/btd-api/internal/dto"
	"github.com/edudist/btd-api/internal/middleware"
	"github.com/edudist/btd-api/internal/models"
)

type fakeWindowSrv struct {
	state      models.WindowState
	statusErr  error
	lastTier   models.WindowTier
	upsertResp *models.RequisitionWindow
	upsertErr  error
	lastUpsert dto.UpsertWindowRequest
}

func (f *fakeWindowSrv) ListAll(context.Context, *models.JWTClaims) ([]models.RequisitionWindow, error) {
	return nil, nil
}

func (f *fakeWindowSrv) Status(_ context.Context, tier models.WindowTier) (models.WindowState, error) {
	f.lastTier = tier
	return f.state, f.statusErr
}

func (f *fakeWindowSrv) Upsert(_ context.Context, req dto.UpsertWindowRequest, _ *models.JWTClaims) (*models.RequisitionWindow, error) {
	f.lastUpsert = req
	return f.upsertResp, f.upsertErr
}

func TestWindowHandlerStatusNormalizesTier(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeWindowSrv{state: models.NoWindowState(models.WindowTierBlock)}
	handler := NewWindowHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/windows/block/status", nil)
	c.Params = gin.Params{{Key: "tier", Value: "block"}}

	handler.Status(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.WindowTierBlock, service.lastTier)

	var envelope struct {
		Data models.WindowState `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "No window set.", envelope.Data.Message)
}

func TestWindowHandlerStatusRejectsUnknownTier(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewWindowHandler(&fakeWindowSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/windows/STATE/status", nil)
	c.Params = gin.Params{{Key: "tier", Value: "STATE"}}

	handler.Status(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWindowHandlerUpsertPassesPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeWindowSrv{upsertResp: &models.RequisitionWindow{Tier: models.WindowTierBlock}}
	handler := NewWindowHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/windows",
		strings.NewReader(`{"tier":"BLOCK","start_date":"2026-04-01T00:00:00Z","end_date":"2026-04-30T23:59:59Z"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-state", Role: models.RoleState})

	handler.Upsert(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.WindowTierBlock, service.lastUpsert.Tier)
	assert.Equal(t, "2026-04-01T00:00:00Z", service.lastUpsert.StartDate.Format("2006-01-02T15:04:05Z07:00"))
}

func TestWindowHandlerUpsertRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewWindowHandler(&fakeWindowSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/windows", strings.NewReader(`{}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Upsert(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
