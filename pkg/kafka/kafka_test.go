package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []kafka.Message
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type flakyHandler struct {
	mu       sync.Mutex
	failures map[string]int
	handled  []string
	traceIDs []string
}

func (h *flakyHandler) Topic() string { return "econdash.source-events" }

func (h *flakyHandler) Handle(ctx context.Context, b []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := string(b)
	if h.failures[key] > 0 {
		h.failures[key]--
		return errors.New("transient")
	}
	h.handled = append(h.handled, key)
	h.traceIDs = append(h.traceIDs, TraceID(ctx))
	return nil
}

func TestConsumerRetriesAndCommits(t *testing.T) {
	reader := newFakeReader(
		kafka.Message{Value: []byte("a"), Headers: []kafka.Header{{Key: "trace_id", Value: []byte("t-1")}}},
		kafka.Message{Value: []byte("b")},
		kafka.Message{Value: []byte("poison")},
	)
	handler := &flakyHandler{failures: map[string]int{"a": 1, "poison": 100}}

	c, err := NewConsumer(nil,
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	)
	require.NoError(t, err)
	c.SetReaderFactory(func(*ConsumerConfig, string) Reader { return reader })
	c.SetHook(NewHookChain(TraceHook(), nil))
	c.RegisterHandler(handler)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return reader.commits() == 3 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, handler.handled)
	assert.Equal(t, []string{"t-1", ""}, handler.traceIDs)
	assert.True(t, reader.closed)
}

func TestConsumerRequiresBrokersAndHandlers(t *testing.T) {
	_, err := NewConsumer(nil)
	assert.Error(t, err)

	c, err := NewConsumer(nil, WithConsumerBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)
	assert.Error(t, c.Start(context.Background()))
}

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *captureWriter) Close() error { return nil }

func TestProducerEncodesPayloads(t *testing.T) {
	w := &captureWriter{}
	p := NewProducerWithWriter(w, "gzip")

	require.NoError(t, p.PublishMessage(context.Background(), "econdash.logs", map[string]int{"count": 2}))
	require.NoError(t, p.Publish(context.Background(), "raw", []byte("k"), "text"))

	require.Len(t, w.msgs, 2)
	var decoded map[string]int
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, 2, decoded["count"])
	assert.Equal(t, "econdash.logs", w.msgs[0].Topic)
	assert.Equal(t, []byte("text"), w.msgs[1].Value)

	w.err = errors.New("broker down")
	assert.Error(t, p.PublishMessage(context.Background(), "econdash.logs", "x"))
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.LessOrEqual(t, d, 100*time.Millisecond)
		assert.Greater(t, d, time.Duration(0))
	}
}
