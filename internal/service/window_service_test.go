package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edudist/btd-api/internal/dto"
	"github.com/edudist/btd-api/internal/models"
	appErrors "github.com/edudist/btd-api/pkg/errors"
)

type windowRepoStub struct {
	windows map[models.WindowTier]*models.RequisitionWindow
}

func newWindowRepoStub() *windowRepoStub {
	return &windowRepoStub{windows: make(map[models.WindowTier]*models.RequisitionWindow)}
}

func (m *windowRepoStub) ListAll(ctx context.Context) ([]models.RequisitionWindow, error) {
	result := make([]models.RequisitionWindow, 0, len(m.windows))
	for _, window := range m.windows {
		result = append(result, *window)
	}
	return result, nil
}

func (m *windowRepoStub) GetByTier(ctx context.Context, tier models.WindowTier) (*models.RequisitionWindow, error) {
	if window, ok := m.windows[tier]; ok {
		copy := *window
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *windowRepoStub) Upsert(ctx context.Context, window *models.RequisitionWindow) error {
	m.windows[window.Tier] = window
	return nil
}

func newTestWindowService(repo *windowRepoStub) *WindowService {
	return NewWindowService(repo, &auditStub{}, nil, 0, nil)
}

func openWindow(tier models.WindowTier) *models.RequisitionWindow {
	return &models.RequisitionWindow{
		Tier:      tier,
		StartDate: time.Now().UTC().Add(-24 * time.Hour),
		EndDate:   time.Now().UTC().Add(24 * time.Hour),
	}
}

func closedWindow(tier models.WindowTier) *models.RequisitionWindow {
	return &models.RequisitionWindow{
		Tier:      tier,
		StartDate: time.Now().UTC().Add(-48 * time.Hour),
		EndDate:   time.Now().UTC().Add(-24 * time.Hour),
	}
}

func TestWindowStatusUnset(t *testing.T) {
	svc := newTestWindowService(newWindowRepoStub())

	state, err := svc.Status(context.Background(), models.WindowTierSchool)
	require.NoError(t, err)
	require.False(t, state.IsOpen)
	require.Equal(t, "No window set.", state.Message)
}

func TestWindowStatusRejectsUnknownTier(t *testing.T) {
	svc := newTestWindowService(newWindowRepoStub())

	_, err := svc.Status(context.Background(), models.WindowTier("STATE"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestWindowGateRole(t *testing.T) {
	repo := newWindowRepoStub()
	repo.windows[models.WindowTierBlock] = openWindow(models.WindowTierBlock)
	repo.windows[models.WindowTierDistrict] = closedWindow(models.WindowTierDistrict)
	svc := newTestWindowService(repo)

	require.NoError(t, svc.GateRole(context.Background(), models.RoleBlock))

	err := svc.GateRole(context.Background(), models.RoleDistrict)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrWindowClosed.Code, appErrors.FromError(err).Code)

	// No window configured means closed for gated tiers.
	err = svc.GateRole(context.Background(), models.RoleSchool)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrWindowClosed.Code, appErrors.FromError(err).Code)

	// The state tier owns the windows and is never gated.
	require.NoError(t, svc.GateRole(context.Background(), models.RoleState))
}

func TestWindowUpsertStateOnly(t *testing.T) {
	svc := newTestWindowService(newWindowRepoStub())

	block := &models.JWTClaims{UserID: "user-block", Role: models.RoleBlock}
	_, err := svc.Upsert(context.Background(), dto.UpsertWindowRequest{
		Tier:      models.WindowTierSchool,
		StartDate: time.Now().UTC(),
		EndDate:   time.Now().UTC().Add(time.Hour),
	}, block)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestWindowUpsertValidatesRange(t *testing.T) {
	svc := newTestWindowService(newWindowRepoStub())

	state := &models.JWTClaims{UserID: "user-state", Role: models.RoleState}
	_, err := svc.Upsert(context.Background(), dto.UpsertWindowRequest{
		Tier:      models.WindowTierSchool,
		StartDate: time.Now().UTC().Add(time.Hour),
		EndDate:   time.Now().UTC(),
	}, state)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestWindowUpsertReplacesExisting(t *testing.T) {
	repo := newWindowRepoStub()
	repo.windows[models.WindowTierSchool] = closedWindow(models.WindowTierSchool)
	svc := newTestWindowService(repo)

	state := &models.JWTClaims{UserID: "user-state", Role: models.RoleState}
	start := time.Now().UTC()
	end := start.Add(14 * 24 * time.Hour)
	window, err := svc.Upsert(context.Background(), dto.UpsertWindowRequest{
		Tier:      models.WindowTierSchool,
		StartDate: start,
		EndDate:   end,
	}, state)
	require.NoError(t, err)
	require.Equal(t, models.WindowTierSchool, window.Tier)

	gateErr := svc.GateRole(context.Background(), models.RoleSchool)
	require.NoError(t, gateErr)
}
