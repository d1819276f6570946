package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	events []models.SourceEvent
	err    error
}

func (p *capturePublisher) PublishSourceEvent(_ context.Context, ev models.SourceEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func TestIngestorPublishesEverySource(t *testing.T) {
	pub := &capturePublisher{}
	in := NewIngestor([]domrepo.SeriesSource{gdpSource(), inflationSource()}, pub, nil)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in.now = func() time.Time { return at }

	n, err := in.PublishSources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.events, 2)
	assert.Equal(t, "GDP", pub.events[0].Source)
	assert.Len(t, pub.events[0].Points, 4)
	assert.Equal(t, at, pub.events[0].At)
	assert.Equal(t, "Inflation Rate", pub.events[1].Source)
}

func TestIngestorStopsOnFailure(t *testing.T) {
	broken := &fakeSource{name: "GDP", err: domrepo.ErrSourceUnavailable}
	pub := &capturePublisher{}
	n, err := NewIngestor([]domrepo.SeriesSource{broken, inflationSource()}, pub, nil).PublishSources(context.Background())
	assert.ErrorIs(t, err, domrepo.ErrSourceUnavailable)
	assert.Zero(t, n)
	assert.Empty(t, pub.events)

	pub.err = errors.New("broker down")
	_, err = NewIngestor([]domrepo.SeriesSource{gdpSource()}, pub, nil).PublishSources(context.Background())
	assert.ErrorContains(t, err, "broker down")
}

func TestIngestorInvalidateSymbol(t *testing.T) {
	pub := &capturePublisher{}
	in := NewIngestor(nil, pub, nil)

	require.NoError(t, in.InvalidateSymbol(context.Background(), "^GSPC"))
	require.Len(t, pub.events, 1)
	assert.Equal(t, "^GSPC", pub.events[0].Symbol)
	assert.Empty(t, pub.events[0].Points)

	assert.Error(t, in.InvalidateSymbol(context.Background(), ""))
}
