package repository

import (
	"context"
	"errors"
	"time"

	"EconDash/internal/domain/models"
)

// ErrSourceUnavailable wraps every failure to obtain raw input data.
var ErrSourceUnavailable = errors.New("source unavailable")

// SeriesSource loads one raw indicator series.
type SeriesSource interface {
	Name() string
	Load(ctx context.Context) (models.TimeSeries, error)
}

// MarketData fetches daily adjusted closes for a symbol over [from, to).
type MarketData interface {
	DailyAdjClose(ctx context.Context, symbol string, from, to time.Time) (models.TimeSeries, error)
}

// MarketCache drops cached market fetches for a symbol. An empty symbol
// drops everything.
type MarketCache interface {
	Invalidate(ctx context.Context, symbol string) error
}

type Metrics interface {
	RecordRun(result string)
	RecordError(kind string)
	RecordLatestValue(series string, value float64)
	RecordLatency(stage string, seconds float64)
}

// IndicatorStore persists indicator observations for warehouse-backed sources.
type IndicatorStore interface {
	StoreBatch(ctx context.Context, series string, points []models.Point) error
}

// EventPublisher announces that an upstream source has changed.
type EventPublisher interface {
	PublishSourceEvent(ctx context.Context, ev models.SourceEvent) error
	Close() error
}
