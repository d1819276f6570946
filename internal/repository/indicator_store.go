package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	pkgkafka "EconDash/pkg/kafka"
)

// ClickHouseIndicatorStore writes indicator observations to the table
// ClickHouseSource reads. Rewriting a date replaces the earlier value once
// ClickHouse merges parts.
type ClickHouseIndicatorStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseIndicatorStore creates the ClickHouse writer.
func NewClickHouseIndicatorStore(db *sql.DB, table string) (*ClickHouseIndicatorStore, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ClickHouseIndicatorStore{db: db, table: table}, nil
}

// StoreBatch inserts points for series in chunks.
func (s *ClickHouseIndicatorStore) StoreBatch(ctx context.Context, series string, points []models.Point) error {
	if len(points) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(points); start += chunkSize {
		end := start + chunkSize
		if end > len(points) {
			end = len(points)
		}
		q, args := insertStatement(s.table, series, points[start:end])
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert %s into %s: %w", series, s.table, err)
		}
	}
	return nil
}

func (s *ClickHouseIndicatorStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func insertStatement(table, series string, points []models.Point) (string, []interface{}) {
	values := make([]string, len(points))
	args := make([]interface{}, 0, len(points)*3)
	for i, p := range points {
		values[i] = "(?, ?, ?)"
		args = append(args, series, p.Date, p.Value)
	}
	q := fmt.Sprintf("INSERT INTO %s (series, date, value) VALUES %s", table, strings.Join(values, ","))
	return q, args
}

// KafkaEventPublisher announces source changes on the source-events topic.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaEventPublisher creates a Kafka-backed event publisher.
func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

// PublishSourceEvent sends ev keyed by its source so events for one source
// stay ordered within a partition.
func (p *KafkaEventPublisher) PublishSourceEvent(ctx context.Context, ev models.SourceEvent) error {
	key := ev.Source
	if key == "" {
		key = ev.Symbol
	}
	return p.producer.Publish(ctx, p.topic, []byte(key), ev)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var (
	_ domrepo.IndicatorStore = (*ClickHouseIndicatorStore)(nil)
	_ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)
)
