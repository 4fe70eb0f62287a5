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

type issueRepoStub struct {
	issues     map[string]*models.Issue
	lastParams repository.UpdateIssueReviewParams
}

func newIssueRepoStub() *issueRepoStub {
	return &issueRepoStub{issues: make(map[string]*models.Issue)}
}

func (m *issueRepoStub) Create(ctx context.Context, issue *models.Issue) error {
	m.issues[issue.ID] = issue
	return nil
}

func (m *issueRepoStub) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	if issue, ok := m.issues[id]; ok {
		copy := *issue
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *issueRepoStub) List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error) {
	result := make([]models.Issue, 0, len(m.issues))
	for _, issue := range m.issues {
		result = append(result, *issue)
	}
	return result, len(result), nil
}

func (m *issueRepoStub) UpdateReview(ctx context.Context, params repository.UpdateIssueReviewParams) error {
	m.lastParams = params
	issue, ok := m.issues[params.ID]
	if !ok || issue.Status != params.ExpectedStatus {
		return sql.ErrNoRows
	}
	issue.Status = params.NewStatus
	if params.Remarks != nil {
		switch params.RemarkColumn {
		case "block_remarks":
			issue.BlockRemarks = params.Remarks
		case "district_remarks":
			issue.DistrictRemarks = params.Remarks
		case "state_remarks":
			issue.StateRemarks = params.Remarks
		}
	}
	issue.ResolvedAt = params.ResolvedAt
	issue.RejectedAt = params.RejectedAt
	return nil
}

func newTestIssueService(repo *issueRepoStub) *IssueService {
	schools := newSchoolDirectoryStub(&models.School{
		UDISECode:    "UD-1",
		Name:         "Govt HS One",
		BlockCode:    "BLK-01",
		DistrictCode: "DST-01",
	})
	return NewIssueService(repo, schools, NewValidator(), &auditStub{}, nil, nil)
}

func seedIssue(repo *issueRepoStub, status models.IssueStatus) *models.Issue {
	issue := &models.Issue{
		ID:          "iss-1",
		IssueCode:   "ISS-20260801-ABC123",
		Title:       "Damaged cartons",
		Description: "Half the shipment arrived water damaged.",
		Priority:    models.IssuePriorityHigh,
		Status:      status,
		SchoolUDISE: "UD-1",
		RaisedBy:    "user-school",
	}
	repo.issues[issue.ID] = issue
	return issue
}

func TestIssueCreateDefaultsToBlockReview(t *testing.T) {
	repo := newIssueRepoStub()
	svc := newTestIssueService(repo)

	actor := &models.JWTClaims{UserID: "user-school", Role: models.RoleSchool, RegionCode: "UD-1"}
	issue, err := svc.Create(context.Background(), dto.CreateIssueRequest{
		Title:       "Missing titles",
		Description: "Class 5 maths missing from delivery.",
		Priority:    models.IssuePriorityMedium,
		SchoolUDISE: "UD-1",
	}, actor)
	require.NoError(t, err)
	require.Equal(t, models.IssueStatusPendingBlock, issue.Status)
	require.NotEmpty(t, issue.IssueCode)
	require.Equal(t, "user-school", issue.RaisedBy)
}

func TestIssueCreateRejectsBlankTitle(t *testing.T) {
	repo := newIssueRepoStub()
	svc := newTestIssueService(repo)

	actor := &models.JWTClaims{UserID: "user-school", Role: models.RoleSchool, RegionCode: "UD-1"}
	_, err := svc.Create(context.Background(), dto.CreateIssueRequest{
		Title:       "   ",
		Description: "Class 5 maths missing from delivery.",
		Priority:    models.IssuePriorityMedium,
		SchoolUDISE: "UD-1",
	}, actor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	require.Empty(t, repo.issues)
}

func TestIssueCreateRejectsUnknownPriority(t *testing.T) {
	repo := newIssueRepoStub()
	svc := newTestIssueService(repo)

	actor := &models.JWTClaims{UserID: "user-school", Role: models.RoleSchool, RegionCode: "UD-1"}
	_, err := svc.Create(context.Background(), dto.CreateIssueRequest{
		Title:       "Missing titles",
		Description: "Class 5 maths missing from delivery.",
		Priority:    models.IssuePriority("BANANA"),
		SchoolUDISE: "UD-1",
	}, actor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	require.Empty(t, repo.issues)
}

func TestIssueCreateSchoolOutOfScope(t *testing.T) {
	svc := newTestIssueService(newIssueRepoStub())

	actor := &models.JWTClaims{UserID: "user-school", Role: models.RoleSchool, RegionCode: "UD-OTHER"}
	_, err := svc.Create(context.Background(), dto.CreateIssueRequest{
		Title:       "x",
		Description: "y",
		Priority:    models.IssuePriorityLow,
		SchoolUDISE: "UD-1",
	}, actor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestIssueEscalateKeepsEarlierRemarks(t *testing.T) {
	repo := newIssueRepoStub()
	issue := seedIssue(repo, models.IssueStatusPendingBlock)
	svc := newTestIssueService(repo)

	updated, err := svc.Review(context.Background(), issue.ID, dto.ReviewIssueRequest{
		Action:  models.IssueActionEscalate,
		Remarks: "needs district transport support",
	}, blockClaims())
	require.NoError(t, err)
	require.Equal(t, models.IssueStatusPendingDistrict, updated.Status)
	require.NotNil(t, updated.BlockRemarks)
	require.Equal(t, "needs district transport support", *updated.BlockRemarks)

	district := &models.JWTClaims{UserID: "user-district", Role: models.RoleDistrict, RegionCode: "DST-01"}
	updated, err = svc.Review(context.Background(), issue.ID, dto.ReviewIssueRequest{
		Action:  models.IssueActionEscalate,
		Remarks: "beyond district budget",
	}, district)
	require.NoError(t, err)
	require.Equal(t, models.IssueStatusPendingState, updated.Status)
	require.NotNil(t, updated.BlockRemarks, "block remarks must survive escalation")
	require.NotNil(t, updated.DistrictRemarks)
}

func TestIssueStateCannotEscalate(t *testing.T) {
	repo := newIssueRepoStub()
	issue := seedIssue(repo, models.IssueStatusPendingState)
	svc := newTestIssueService(repo)

	state := &models.JWTClaims{UserID: "user-state", Role: models.RoleState}
	_, err := svc.Review(context.Background(), issue.ID, dto.ReviewIssueRequest{
		Action: models.IssueActionEscalate,
	}, state)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestIssueResolveSetsResolvedAt(t *testing.T) {
	repo := newIssueRepoStub()
	issue := seedIssue(repo, models.IssueStatusPendingBlock)
	svc := newTestIssueService(repo)

	updated, err := svc.Review(context.Background(), issue.ID, dto.ReviewIssueRequest{
		Action:  models.IssueActionResolve,
		Remarks: "replacement stock dispatched",
	}, blockClaims())
	require.NoError(t, err)
	require.Equal(t, models.IssueStatusResolved, updated.Status)
	require.NotNil(t, updated.ResolvedAt)
}

func TestIssueRejectRequiresRemarks(t *testing.T) {
	repo := newIssueRepoStub()
	issue := seedIssue(repo, models.IssueStatusPendingBlock)
	svc := newTestIssueService(repo)

	_, err := svc.Review(context.Background(), issue.ID, dto.ReviewIssueRequest{
		Action: models.IssueActionReject,
	}, blockClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	require.Equal(t, models.IssueStatusPendingBlock, repo.issues[issue.ID].Status)
}

func TestIssueReviewNotPendingAtTier(t *testing.T) {
	repo := newIssueRepoStub()
	issue := seedIssue(repo, models.IssueStatusPendingDistrict)
	svc := newTestIssueService(repo)

	_, err := svc.Review(context.Background(), issue.ID, dto.ReviewIssueRequest{
		Action:  models.IssueActionResolve,
		Remarks: "done",
	}, blockClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}
