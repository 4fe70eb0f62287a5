package models

import "time"

// WindowTier identifies which tier a requisition window applies to. The state
// tier owns the windows and is never gated by them.
type WindowTier string

const (
	WindowTierSchool   WindowTier = "SCHOOL"
	WindowTierBlock    WindowTier = "BLOCK"
	WindowTierDistrict WindowTier = "DISTRICT"
)

// ValidWindowTier reports whether the value names a gated tier.
func ValidWindowTier(tier WindowTier) bool {
	switch tier {
	case WindowTierSchool, WindowTierBlock, WindowTierDistrict:
		return true
	default:
		return false
	}
}

// RequisitionWindow holds one submission period per tier.
type RequisitionWindow struct {
	ID        string     `db:"id" json:"id"`
	Tier      WindowTier `db:"tier" json:"tier"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   time.Time  `db:"end_date" json:"end_date"`
	CreatedBy string     `db:"created_by" json:"created_by"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// WindowState is the derived gate for a tier at a point in time.
type WindowState struct {
	Tier       WindowTier `json:"tier"`
	IsOpen     bool       `json:"is_open"`
	HasStarted bool       `json:"has_started"`
	HasEnded   bool       `json:"has_ended"`
	Message    string     `json:"message"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
}

// StateAt derives the gate from the window's date range. The zero comparison
// is inclusive on both ends of [start, end].
func (w *RequisitionWindow) StateAt(now time.Time) WindowState {
	state := WindowState{
		Tier:      w.Tier,
		StartDate: &w.StartDate,
		EndDate:   &w.EndDate,
	}
	switch {
	case now.Before(w.StartDate):
		state.Message = "Window has not started yet."
	case now.After(w.EndDate):
		state.HasStarted = true
		state.HasEnded = true
		state.Message = "Window has closed."
	default:
		state.HasStarted = true
		state.IsOpen = true
		state.Message = "Window is open."
	}
	return state
}

// NoWindowState is the gate reported when no window is configured for a tier.
func NoWindowState(tier WindowTier) WindowState {
	return WindowState{Tier: tier, Message: "No window set."}
}
