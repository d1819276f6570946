package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	applogger "EconDash/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Reader is the subset of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ReaderFactory builds a reader for one topic.
type ReaderFactory func(cfg *ConsumerConfig, topic string) Reader

func defaultReaderFactory(cfg *ConsumerConfig, topic string) Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
}

type message struct {
	topic  string
	reader Reader
	km     kafka.Message
}

// Consumer reads registered topics and fans messages out to a worker pool.
// Failed messages are retried with jittered backoff, then logged and
// committed so a poison message cannot stall the partition.
type Consumer struct {
	cfg       *ConsumerConfig
	log       *applogger.Logger
	newReader ReaderFactory
	handlers  map[string]MessageHandler
	readers   map[string]Reader
	hook      ConsumerHook
	msgs      chan *message
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(l *applogger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "econdash",
		WorkerCount: 1,
		BufferSize:  16,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if l == nil {
		l = applogger.Nop()
	}

	initConsumerMetrics()
	return &Consumer{
		cfg:       cfg,
		log:       l.With("kafka_consumer"),
		newReader: defaultReaderFactory,
		handlers:  make(map[string]MessageHandler),
		readers:   make(map[string]Reader),
		hook:      NoopHook{},
		msgs:      make(chan *message, cfg.BufferSize),
	}, nil
}

// SetReaderFactory replaces how topic readers are built.
func (c *Consumer) SetReaderFactory(f ReaderFactory) {
	if f != nil {
		c.newReader = f
	}
}

// SetHook sets a hook implementation for lifecycle events.
func (c *Consumer) SetHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler registers a message handler for its topic.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start launches readers and workers. It returns immediately.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	ctx, c.cancel = context.WithCancel(ctx)

	for topic := range c.handlers {
		c.readers[topic] = c.newReader(c.cfg, topic)
	}

	var workers sync.WaitGroup
	for i := 0; i < c.cfg.WorkerCount; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			c.work(ctx)
		}()
	}

	var fetchers sync.WaitGroup
	for topic, reader := range c.readers {
		fetchers.Add(1)
		go func(topic string, reader Reader) {
			defer fetchers.Done()
			c.fetch(ctx, topic, reader)
		}(topic, reader)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fetchers.Wait()
		close(c.msgs)
		workers.Wait()
	}()

	c.log.Info("kafka consumer started",
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.WorkerCount),
	)
	return nil
}

// Stop cancels reading, waits for in-flight messages and closes readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.log.Warn("reader close error", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		c.log.Info("kafka consumer stopped")
	})
	return stopErr
}

func (c *Consumer) fetch(ctx context.Context, topic string, reader Reader) {
	for {
		km, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.log.Warn("fetch error", applogger.String("topic", topic), applogger.Error(err))
			if !sleepCtx(ctx, c.cfg.BackoffMax) {
				return
			}
			continue
		}

		select {
		case c.msgs <- &message{topic: topic, reader: reader, km: km}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgs)))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) work(ctx context.Context) {
	for msg := range c.msgs {
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg *message) {
	handler := c.handlers[msg.topic]
	start := time.Now()
	defer func() {
		consumerHandleLatency.WithLabelValues(msg.topic).Observe(time.Since(start).Seconds())
	}()

	var err error
	for attempt := 1; ; attempt++ {
		err = c.handleOnce(ctx, handler, msg.km)
		if err == nil || attempt > c.cfg.RetryMax {
			break
		}
		if !sleepCtx(ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
			return
		}
	}

	if err != nil {
		consumerFailures.WithLabelValues(msg.topic).Inc()
		c.log.Error("message dropped after retries",
			applogger.String("topic", msg.topic),
			applogger.Int("partition", msg.km.Partition),
			applogger.Int("attempts", c.cfg.RetryMax+1),
			applogger.Error(err),
		)
	}

	commitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if cerr := msg.reader.CommitMessages(commitCtx, msg.km); cerr != nil {
		c.log.Warn("commit error", applogger.String("topic", msg.topic), applogger.Error(cerr))
	}
}

func (c *Consumer) handleOnce(ctx context.Context, handler MessageHandler, km kafka.Message) (err error) {
	hctx, err := c.hook.BeforeHandle(ctx, km)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		c.hook.AfterHandle(hctx, km, err)
	}()
	return handler.Handle(hctx, km.Value)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min << uint(attempt-1)
	if exp > max || exp <= 0 {
		exp = max
	}
	// up to 50% jitter
	return exp - time.Duration(rand.Int63n(int64(exp)/2+1))
}

var (
	consumerMetricsOnce   sync.Once
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerFailures      *prometheus.CounterVec
)

func initConsumerMetrics() {
	consumerMetricsOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "econdash_kafka_consumer_queue_depth", Help: "Messages waiting for a worker"},
			[]string{"topic"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "econdash_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
		consumerFailures = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "econdash_kafka_consumer_failures_total", Help: "Messages dropped after exhausting retries"},
			[]string{"topic"},
		)
	})
}
