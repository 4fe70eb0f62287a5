package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/edudist/btd-api/internal/dto"
	"github.com/edudist/btd-api/internal/middleware"
	"github.com/edudist/btd-api/internal/models"
	appErrors "github.com/edudist/btd-api/pkg/errors"
)

type fakeRequisitionSrv struct {
	listResp   []models.Requisition
	listErr    error
	lastQuery  dto.RequisitionQuery
	reviewResp *models.Requisition
	reviewErr  error
	lastReview struct {
		id  string
		req dto.ReviewRequisitionRequest
	}
}

func (f *fakeRequisitionSrv) List(_ context.Context, query dto.RequisitionQuery, _ *models.JWTClaims) ([]models.Requisition, *models.Pagination, error) {
	f.lastQuery = query
	return f.listResp, &models.Pagination{Page: query.Page, PageSize: query.PageSize}, f.listErr
}

func (f *fakeRequisitionSrv) ListPendingGrouped(context.Context, *models.JWTClaims) ([]dto.SchoolRequisitionGroup, error) {
	return nil, nil
}

func (f *fakeRequisitionSrv) Review(_ context.Context, id string, req dto.ReviewRequisitionRequest, _ *models.JWTClaims) (*models.Requisition, error) {
	f.lastReview.id = id
	f.lastReview.req = req
	return f.reviewResp, f.reviewErr
}

func (f *fakeRequisitionSrv) Reapprove(_ context.Context, id string, _ *models.JWTClaims) (*models.Requisition, error) {
	return f.reviewResp, f.reviewErr
}

func (f *fakeRequisitionSrv) SaveRemark(_ context.Context, id string, req dto.SaveRemarkRequest, _ *models.JWTClaims) (*models.Requisition, error) {
	return f.reviewResp, f.reviewErr
}

func blockTestClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-block", Role: models.RoleBlock, RegionCode: "BLK-01"}
}

func TestRequisitionHandlerListRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRequisitionHandler(&fakeRequisitionSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/requisitions", nil)

	handler.List(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequisitionHandlerListParsesQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeRequisitionSrv{}
	handler := NewRequisitionHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/requisitions?status=pending_block_approval,rejected_by_block&pending=true&page=2&page_size=10", nil)
	c.Set(middleware.ContextUserKey, blockTestClaims())

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.RequisitionStatus{models.RequisitionStatusPendingBlock, models.RequisitionStatusRejectedBlock}, service.lastQuery.Status)
	assert.True(t, service.lastQuery.PendingOnly)
	assert.Equal(t, 2, service.lastQuery.Page)
	assert.Equal(t, 10, service.lastQuery.PageSize)
}

func TestRequisitionHandlerListDefaultsPaging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeRequisitionSrv{}
	handler := NewRequisitionHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/requisitions?page=abc&page_size=-1", nil)
	c.Set(middleware.ContextUserKey, blockTestClaims())

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, service.lastQuery.Page)
	assert.Equal(t, 50, service.lastQuery.PageSize)
}

func TestRequisitionHandlerReviewBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRequisitionHandler(&fakeRequisitionSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/requisitions/req-1/review", strings.NewReader("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextUserKey, blockTestClaims())

	handler.Review(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequisitionHandlerReviewPassesDecision(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeRequisitionSrv{
		reviewResp: &models.Requisition{ID: "req-1", Status: models.RequisitionStatusPendingDistrict},
	}
	handler := NewRequisitionHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/requisitions/req-1/review",
		strings.NewReader(`{"action":"approve","remark":"stock verified"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextUserKey, blockTestClaims())

	handler.Review(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", service.lastReview.id)
	assert.Equal(t, dto.ReviewActionApprove, service.lastReview.req.Action)
	assert.Equal(t, "stock verified", service.lastReview.req.Remark)
}

func TestRequisitionHandlerReviewConflictPassthrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRequisitionHandler(&fakeRequisitionSrv{
		reviewErr: appErrors.Clone(appErrors.ErrConflict, "requisition was reviewed concurrently"),
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/requisitions/req-1/review",
		strings.NewReader(`{"action":"reject","remark":"duplicate"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextUserKey, blockTestClaims())

	handler.Review(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}
