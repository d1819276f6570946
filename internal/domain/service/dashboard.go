package service

import (
	"context"

	"EconDash/internal/domain/models"
)

// DashboardRenderer runs the full indicator pipeline for a date range.
type DashboardRenderer interface {
	Render(ctx context.Context, r models.DateRange) (models.RenderedOutput, error)
	Bounds(ctx context.Context) (models.DateRange, error)
}
