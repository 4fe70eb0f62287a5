package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindowStateAt(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)
	window := &RequisitionWindow{Tier: WindowTierSchool, StartDate: start, EndDate: end}

	before := window.StateAt(time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC))
	require.False(t, before.IsOpen)
	require.False(t, before.HasStarted)
	require.False(t, before.HasEnded)
	require.Equal(t, "Window has not started yet.", before.Message)

	during := window.StateAt(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	require.True(t, during.IsOpen)
	require.True(t, during.HasStarted)
	require.False(t, during.HasEnded)
	require.Equal(t, "Window is open.", during.Message)

	after := window.StateAt(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	require.False(t, after.IsOpen)
	require.True(t, after.HasStarted)
	require.True(t, after.HasEnded)
	require.Equal(t, "Window has closed.", after.Message)
}

func TestWindowStateAtBoundsInclusive(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	window := &RequisitionWindow{Tier: WindowTierBlock, StartDate: start, EndDate: end}

	require.True(t, window.StateAt(start).IsOpen)
	require.True(t, window.StateAt(end).IsOpen)
}

func TestNoWindowState(t *testing.T) {
	state := NoWindowState(WindowTierDistrict)
	require.Equal(t, WindowTierDistrict, state.Tier)
	require.False(t, state.IsOpen)
	require.Equal(t, "No window set.", state.Message)
	require.Nil(t, state.StartDate)
	require.Nil(t, state.EndDate)
}

func TestValidWindowTier(t *testing.T) {
	require.True(t, ValidWindowTier(WindowTierSchool))
	require.True(t, ValidWindowTier(WindowTierBlock))
	require.True(t, ValidWindowTier(WindowTierDistrict))
	require.False(t, ValidWindowTier(WindowTier("STATE")))
	require.False(t, ValidWindowTier(WindowTier("")))
}
