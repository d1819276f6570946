package usecase

import (
	"context"
	"fmt"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	applogger "EconDash/pkg/logger"
)

// Ingestor republishes configured sources as source events so consumers
// can persist them and drop stale caches.
type Ingestor struct {
	sources []domrepo.SeriesSource
	pub     domrepo.EventPublisher
	now     func() time.Time
	l       *applogger.Logger
}

func NewIngestor(sources []domrepo.SeriesSource, pub domrepo.EventPublisher, l *applogger.Logger) *Ingestor {
	if l == nil {
		l = applogger.Nop()
	}
	return &Ingestor{sources: sources, pub: pub, now: time.Now, l: l.With("ingest")}
}

// PublishSources loads every source and publishes its observations. It
// stops at the first failure and returns the number of events sent.
func (in *Ingestor) PublishSources(ctx context.Context) (int, error) {
	sent := 0
	for _, src := range in.sources {
		ts, err := src.Load(ctx)
		if err != nil {
			return sent, fmt.Errorf("load %s: %w", src.Name(), err)
		}
		ev := models.SourceEvent{Source: src.Name(), Points: ts.Points, At: in.now().UTC()}
		if err := in.pub.PublishSourceEvent(ctx, ev); err != nil {
			return sent, fmt.Errorf("publish %s: %w", src.Name(), err)
		}
		sent++
		in.l.Info("source published",
			applogger.String("source", src.Name()),
			applogger.Int("points", len(ts.Points)),
		)
	}
	return sent, nil
}

// InvalidateSymbol publishes a point-free event for a market symbol.
func (in *Ingestor) InvalidateSymbol(ctx context.Context, symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	ev := models.SourceEvent{Symbol: symbol, At: in.now().UTC()}
	if err := in.pub.PublishSourceEvent(ctx, ev); err != nil {
		return fmt.Errorf("publish %s: %w", symbol, err)
	}
	in.l.Info("market invalidation published", applogger.String("symbol", symbol))
	return nil
}
