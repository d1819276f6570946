package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestCollectorFoldsRepeatedEntries(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "econdash.logs",
		Service:        "econdash",
		Publisher:      pub,
	})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "source load failed", map[string]interface{}{"source": "GDP"}, "usecase/dashboard.go:10")
	}
	c.AddLog("error", "source load failed", map[string]interface{}{"source": "S&P 500"}, "usecase/dashboard.go:10")
	assert.Equal(t, 2, c.Pending())

	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "econdash.logs", pub.topic)

	counts := map[string]int{}
	for _, e := range pub.batches[0] {
		counts[e.Fields["source"].(string)] = e.Count
		assert.Equal(t, "econdash", e.Service)
	}
	assert.Equal(t, map[string]int{"GDP": 3, "S&P 500": 1}, counts)
}

func TestLoggerFeedsCollectorOnError(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Publisher: pub})

	l.Warn("not collected")
	l.Error("collected", Error(errors.New("boom")), String("stage", "align"))
	assert.Equal(t, 1, l.collector.Pending())

	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	entry := pub.batches[0][0]
	assert.Equal(t, "collected", entry.Message)
	assert.Equal(t, "boom", entry.Fields["error"])
	assert.Equal(t, "align", entry.Fields["stage"])
}
