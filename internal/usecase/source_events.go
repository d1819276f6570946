package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	pkgkafka "EconDash/pkg/kafka"
	applogger "EconDash/pkg/logger"
)

// SourceEventsHandler consumes source-change events. Observations carried
// by an event are written to the indicator store. An event naming a market
// symbol drops its cached fetches so the next render refetches.
type SourceEventsHandler struct {
	topic   string
	store   domrepo.IndicatorStore
	cache   domrepo.MarketCache
	metrics domrepo.Metrics
	l       *applogger.Logger
}

// NewSourceEventsHandler creates the handler. A nil store ignores carried
// observations.
func NewSourceEventsHandler(topic string, store domrepo.IndicatorStore, cache domrepo.MarketCache, metrics domrepo.Metrics, l *applogger.Logger) *SourceEventsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &SourceEventsHandler{topic: topic, store: store, cache: cache, metrics: metrics, l: l.With("source_events")}
}

func (h *SourceEventsHandler) Topic() string { return h.topic }

// incoming message schema: models.SourceEvent
func (h *SourceEventsHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.SourceEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode source event: %w", err)
	}
	if ev.Source == "" && ev.Symbol == "" {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("source event names neither source nor symbol")
	}
	if !ev.At.IsZero() {
		h.metrics.RecordLatency("source_event_lag", time.Since(ev.At).Seconds())
	}

	if len(ev.Points) > 0 && h.store != nil {
		if ev.Source == "" {
			h.metrics.RecordError("consumer_invalid")
			return fmt.Errorf("source event carries points without a source")
		}
		start := time.Now()
		err := h.store.StoreBatch(ctx, ev.Source, ev.Points)
		h.metrics.RecordLatency("indicator_store", time.Since(start).Seconds())
		if err != nil {
			h.metrics.RecordError("consumer_store")
			return err
		}
	}

	if h.cache != nil && ev.Symbol != "" {
		if err := h.cache.Invalidate(ctx, ev.Symbol); err != nil {
			h.metrics.RecordError("cache_invalidate")
			return fmt.Errorf("invalidate market cache: %w", err)
		}
	}

	h.l.Info("source event applied",
		applogger.String("source", ev.Source),
		applogger.String("symbol", ev.Symbol),
		applogger.Int("points", len(ev.Points)),
		applogger.String("trace_id", pkgkafka.TraceID(ctx)),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*SourceEventsHandler)(nil)
