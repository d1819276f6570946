package models

// Requests for dashboard HTTP and WebSocket endpoints. Empty dates mean the
// full available range.

type DashboardRequest struct {
	Start string `query:"start" json:"start" validate:"omitempty,datetime=2006-01-02"`
	End   string `query:"end" json:"end" validate:"omitempty,datetime=2006-01-02"`
}
