package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edudist/btd-api/internal/dto"
	"github.com/edudist/btd-api/internal/models"
	"github.com/edudist/btd-api/internal/repository"
	appErrors "github.com/edudist/btd-api/pkg/errors"
)

type requisitionRepoStub struct {
	requisitions map[string]*models.Requisition
	filter       models.RequisitionFilter
	remarks      map[string]string
}

func newRequisitionRepoStub() *requisitionRepoStub {
	return &requisitionRepoStub{
		requisitions: make(map[string]*models.Requisition),
		remarks:      make(map[string]string),
	}
}

func (m *requisitionRepoStub) List(ctx context.Context, filter models.RequisitionFilter) ([]models.Requisition, int, error) {
	m.filter = filter
	result := make([]models.Requisition, 0, len(m.requisitions))
	for _, req := range m.requisitions {
		result = append(result, *req)
	}
	return result, len(result), nil
}

func (m *requisitionRepoStub) GetByID(ctx context.Context, id string) (*models.Requisition, error) {
	if req, ok := m.requisitions[id]; ok {
		copy := *req
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *requisitionRepoStub) UpdateReview(ctx context.Context, params repository.UpdateReviewParams) error {
	req, ok := m.requisitions[params.ID]
	if !ok || req.Status != params.ExpectedStatus {
		return sql.ErrNoRows
	}
	req.Status = params.NewStatus
	if params.Remark != nil {
		m.remarks[params.RemarkColumn] = *params.Remark
	}
	return nil
}

func (m *requisitionRepoStub) SaveRemark(ctx context.Context, id, remarkColumn, remark string) error {
	if _, ok := m.requisitions[id]; !ok {
		return sql.ErrNoRows
	}
	m.remarks[remarkColumn] = remark
	return nil
}

type schoolDirectoryStub struct {
	schools map[string]*models.School
}

func newSchoolDirectoryStub(schools ...*models.School) *schoolDirectoryStub {
	m := &schoolDirectoryStub{schools: make(map[string]*models.School)}
	for _, school := range schools {
		m.schools[school.UDISECode] = school
	}
	return m
}

func (m *schoolDirectoryStub) ListSchools(ctx context.Context, blockCode, districtCode string) ([]models.School, error) {
	result := make([]models.School, 0, len(m.schools))
	for _, school := range m.schools {
		if blockCode != "" && school.BlockCode != blockCode {
			continue
		}
		if districtCode != "" && school.DistrictCode != districtCode {
			continue
		}
		result = append(result, *school)
	}
	return result, nil
}

func (m *schoolDirectoryStub) GetSchoolByUDISE(ctx context.Context, udise string) (*models.School, error) {
	if school, ok := m.schools[udise]; ok {
		copy := *school
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type gateStub struct {
	err error
}

func (m *gateStub) GateRole(ctx context.Context, role models.UserRole) error {
	return m.err
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func blockClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-block", Role: models.RoleBlock, RegionCode: "BLK-01"}
}

func seedRequisition(repo *requisitionRepoStub, status models.RequisitionStatus) *models.Requisition {
	req := &models.Requisition{
		ID:          "req-1",
		RequestCode: "REQ-001",
		BookID:      "book-1",
		SchoolUDISE: "UD-1",
		Quantity:    500,
		Received:    0,
		Status:      status,
	}
	repo.requisitions[req.ID] = req
	return req
}

func newTestRequisitionService(repo *requisitionRepoStub, gate *gateStub, audit *auditStub) (*RequisitionService, *schoolDirectoryStub) {
	schools := newSchoolDirectoryStub(&models.School{
		UDISECode:    "UD-1",
		Name:         "Govt HS One",
		BlockCode:    "BLK-01",
		DistrictCode: "DST-01",
	})
	return NewRequisitionService(repo, schools, gate, audit, nil, nil), schools
}

func TestRequisitionReviewApproveForwards(t *testing.T) {
	repo := newRequisitionRepoStub()
	seedRequisition(repo, models.RequisitionStatusPendingBlock)
	audit := &auditStub{}
	svc, _ := newTestRequisitionService(repo, &gateStub{}, audit)

	updated, err := svc.Review(context.Background(), "req-1", dto.ReviewRequisitionRequest{
		Action: dto.ReviewActionApprove,
		Remark: "verified enrolment numbers",
	}, blockClaims())
	require.NoError(t, err)
	require.Equal(t, models.RequisitionStatusPendingDistrict, updated.Status)
	require.Equal(t, "verified enrolment numbers", repo.remarks["block_remark"])
	require.Len(t, audit.logs, 1)
}

func TestRequisitionReviewApproveRequiresRemark(t *testing.T) {
	repo := newRequisitionRepoStub()
	seedRequisition(repo, models.RequisitionStatusPendingBlock)
	svc, _ := newTestRequisitionService(repo, &gateStub{}, &auditStub{})

	_, err := svc.Review(context.Background(), "req-1", dto.ReviewRequisitionRequest{
		Action: dto.ReviewActionApprove,
		Remark: "   ",
	}, blockClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Equal(t, models.RequisitionStatusPendingBlock, repo.requisitions["req-1"].Status)
}

func TestRequisitionReviewRejectWithoutRemark(t *testing.T) {
	repo := newRequisitionRepoStub()
	seedRequisition(repo, models.RequisitionStatusPendingBlock)
	svc, _ := newTestRequisitionService(repo, &gateStub{}, &auditStub{})

	updated, err := svc.Review(context.Background(), "req-1", dto.ReviewRequisitionRequest{
		Action: dto.ReviewActionReject,
	}, blockClaims())
	require.NoError(t, err)
	require.Equal(t, models.RequisitionStatusRejectedBlock, updated.Status)
}

func TestRequisitionReviewWrongTierStatus(t *testing.T) {
	repo := newRequisitionRepoStub()
	seedRequisition(repo, models.RequisitionStatusPendingDistrict)
	svc, _ := newTestRequisitionService(repo, &gateStub{}, &auditStub{})

	_, err := svc.Review(context.Background(), "req-1", dto.ReviewRequisitionRequest{
		Action: dto.ReviewActionApprove,
		Remark: "ok",
	}, blockClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestRequisitionReviewBlockedByWindow(t *testing.T) {
	repo := newRequisitionRepoStub()
	seedRequisition(repo, models.RequisitionStatusPendingBlock)
	gate := &gateStub{err: appErrors.Clone(appErrors.ErrWindowClosed, "Window has closed.")}
	svc, _ := newTestRequisitionService(repo, gate, &auditStub{})

	_, err := svc.Review(context.Background(), "req-1", dto.ReviewRequisitionRequest{
		Action: dto.ReviewActionApprove,
		Remark: "ok",
	}, blockClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrWindowClosed.Code, appErrors.FromError(err).Code)
}

func TestRequisitionReviewOutOfScope(t *testing.T) {
	repo := newRequisitionRepoStub()
	seedRequisition(repo, models.RequisitionStatusPendingBlock)
	svc, _ := newTestRequisitionService(repo, &gateStub{}, &auditStub{})

	actor := &models.JWTClaims{UserID: "user-other", Role: models.RoleBlock, RegionCode: "BLK-99"}
	_, err := svc.Review(context.Background(), "req-1", dto.ReviewRequisitionRequest{
		Action: dto.ReviewActionApprove,
		Remark: "ok",
	}, actor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRequisitionReapprove(t *testing.T) {
	repo := newRequisitionRepoStub()
	seedRequisition(repo, models.RequisitionStatusRejectedBlock)
	svc, _ := newTestRequisitionService(repo, &gateStub{}, &auditStub{})

	updated, err := svc.Reapprove(context.Background(), "req-1", blockClaims())
	require.NoError(t, err)
	require.Equal(t, models.RequisitionStatusPendingDistrict, updated.Status)
}

func TestRequisitionReapproveRequiresOwnRejection(t *testing.T) {
	repo := newRequisitionRepoStub()
	seedRequisition(repo, models.RequisitionStatusRejectedDistrict)
	svc, _ := newTestRequisitionService(repo, &gateStub{}, &auditStub{})

	_, err := svc.Reapprove(context.Background(), "req-1", blockClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestRequisitionSaveRemarkDoesNotTouchStatus(t *testing.T) {
	repo := newRequisitionRepoStub()
	seedRequisition(repo, models.RequisitionStatusApproved)
	svc, _ := newTestRequisitionService(repo, &gateStub{err: appErrors.ErrWindowClosed}, &auditStub{})

	// Remarks are allowed even when the window is shut.
	updated, err := svc.SaveRemark(context.Background(), "req-1", dto.SaveRemarkRequest{Remark: "partial delivery noted"}, blockClaims())
	require.NoError(t, err)
	require.Equal(t, models.RequisitionStatusApproved, updated.Status)
	require.Equal(t, "partial delivery noted", repo.remarks["block_remark"])
}

func TestRequisitionListAppliesScope(t *testing.T) {
	repo := newRequisitionRepoStub()
	seedRequisition(repo, models.RequisitionStatusPendingBlock)
	svc, _ := newTestRequisitionService(repo, &gateStub{}, &auditStub{})

	_, pagination, err := svc.List(context.Background(), dto.RequisitionQuery{PendingOnly: true}, blockClaims())
	require.NoError(t, err)
	require.Equal(t, "BLK-01", repo.filter.BlockCode)
	require.Equal(t, []models.RequisitionStatus{models.RequisitionStatusPendingBlock}, repo.filter.Status)
	require.NotNil(t, pagination)

	district := &models.JWTClaims{UserID: "u-d", Role: models.RoleDistrict, RegionCode: "DST-01"}
	_, _, err = svc.List(context.Background(), dto.RequisitionQuery{}, district)
	require.NoError(t, err)
	require.Equal(t, "DST-01", repo.filter.DistrictCode)
}

func TestRequisitionListPendingGrouped(t *testing.T) {
	repo := newRequisitionRepoStub()
	seedRequisition(repo, models.RequisitionStatusPendingBlock)
	second := &models.Requisition{
		ID:          "req-2",
		BookID:      "book-2",
		SchoolUDISE: "UD-1",
		Quantity:    120,
		Status:      models.RequisitionStatusPendingBlock,
	}
	repo.requisitions[second.ID] = second
	svc, _ := newTestRequisitionService(repo, &gateStub{}, &auditStub{})

	groups, err := svc.ListPendingGrouped(context.Background(), blockClaims())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "UD-1", groups[0].SchoolUDISE)
	require.Equal(t, "Govt HS One", groups[0].SchoolName)
	require.Len(t, groups[0].Requisitions, 2)
}
