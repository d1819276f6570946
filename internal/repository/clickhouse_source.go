package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	applogger "EconDash/pkg/logger"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// IndicatorSchema creates the table ClickHouseSource reads from.
func IndicatorSchema(table string) []string {
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (series LowCardinality(String), date Date, value Float64) ENGINE=ReplacingMergeTree ORDER BY (series, date)", table),
	}
}

// ClickHouseSource loads one indicator series from a ClickHouse table
// keyed by series name.
type ClickHouseSource struct {
	db        *sql.DB
	name      string
	table     string
	seriesKey string
	l         *applogger.Logger
}

// NewClickHouseSource creates a source reading rows where series = seriesKey.
// An empty seriesKey uses name.
func NewClickHouseSource(db *sql.DB, name, table, seriesKey string) (*ClickHouseSource, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if seriesKey == "" {
		seriesKey = name
	}
	return &ClickHouseSource{
		db:        db,
		name:      name,
		table:     table,
		seriesKey: seriesKey,
		l:         applogger.Nop(),
	}, nil
}

// SetLogger injects a structured logger.
func (s *ClickHouseSource) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *ClickHouseSource) Name() string { return s.name }

func (s *ClickHouseSource) Load(ctx context.Context) (models.TimeSeries, error) {
	start := time.Now()
	const qtpl = `
        SELECT date, value
        FROM %s FINAL
        WHERE series = ?
        ORDER BY date ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), s.seriesKey)
	if err != nil {
		s.l.Error("clickhouse series query error",
			applogger.String("table", s.table),
			applogger.String("series", s.seriesKey),
			applogger.Error(err),
		)
		return models.TimeSeries{}, fmt.Errorf("load %s: %w: %w", s.name, domrepo.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	points := make([]models.Point, 0, 1024)
	for rows.Next() {
		var p models.Point
		if err := rows.Scan(&p.Date, &p.Value); err != nil {
			return models.TimeSeries{}, fmt.Errorf("load %s: scan: %w: %w", s.name, domrepo.ErrSourceUnavailable, err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return models.TimeSeries{}, fmt.Errorf("load %s: rows: %w: %w", s.name, domrepo.ErrSourceUnavailable, err)
	}
	if len(points) == 0 {
		return models.TimeSeries{}, fmt.Errorf("load %s: %w: no rows for series %q", s.name, domrepo.ErrSourceUnavailable, s.seriesKey)
	}

	ts, err := models.NewTimeSeries(s.name, points)
	if err != nil {
		return models.TimeSeries{}, fmt.Errorf("load %s: %w: %w", s.name, domrepo.ErrSourceUnavailable, err)
	}

	s.l.Info("clickhouse series loaded",
		applogger.String("table", s.table),
		applogger.String("series", s.seriesKey),
		applogger.Int("rows", ts.Len()),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return ts, nil
}

var _ domrepo.SeriesSource = (*ClickHouseSource)(nil)
