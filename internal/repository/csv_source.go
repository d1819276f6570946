package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	applogger "EconDash/pkg/logger"
	"EconDash/pkg/util"
)

// CSVSource loads one indicator column from a date-indexed CSV file.
type CSVSource struct {
	name        string
	path        string
	dateColumn  string
	valueColumn string
	l           *applogger.Logger
}

// NewCSVSource creates a CSV-backed series source. The loaded series is
// named name. An empty valueColumn selects the first non-date column.
func NewCSVSource(name, path, dateColumn, valueColumn string) *CSVSource {
	return &CSVSource{
		name:        name,
		path:        path,
		dateColumn:  dateColumn,
		valueColumn: valueColumn,
		l:           applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (s *CSVSource) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CSVSource) Name() string { return s.name }

func (s *CSVSource) Load(ctx context.Context) (models.TimeSeries, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return models.TimeSeries{}, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return models.TimeSeries{}, fmt.Errorf("load %s: %w: %w", s.name, domrepo.ErrSourceUnavailable, err)
	}
	defer f.Close()

	tbl, err := ReadTable(f, s.dateColumn)
	if err != nil {
		s.l.Error("csv read error", applogger.String("path", s.path), applogger.Error(err))
		return models.TimeSeries{}, fmt.Errorf("load %s: %w: %w", s.name, domrepo.ErrSourceUnavailable, err)
	}

	column := s.valueColumn
	if column == "" {
		if len(tbl.Columns) == 0 {
			return models.TimeSeries{}, fmt.Errorf("load %s: %w: no value columns in %s", s.name, domrepo.ErrSourceUnavailable, s.path)
		}
		column = tbl.Columns[0]
	}
	ts, err := tbl.Series(column, s.name)
	if err != nil {
		return models.TimeSeries{}, fmt.Errorf("load %s: %w: %w", s.name, domrepo.ErrSourceUnavailable, err)
	}
	if ts.Empty() {
		return models.TimeSeries{}, fmt.Errorf("load %s: %w: no observations in %s", s.name, domrepo.ErrSourceUnavailable, s.path)
	}

	s.l.Debug("csv source loaded",
		applogger.String("source", s.name),
		applogger.String("column", column),
		applogger.Int("rows", ts.Len()),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return ts, nil
}

// ReadTable parses a CSV with a header row into a date-indexed table.
// Empty cells and the "." missing marker become NaN. Rows are returned in
// date order; a repeated date is an error.
func ReadTable(r io.Reader, dateColumn string) (models.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return models.Table{}, fmt.Errorf("empty file")
		}
		return models.Table{}, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	dateIdx := 0
	if dateColumn != "" {
		dateIdx = indexOf(header, dateColumn)
		if dateIdx < 0 {
			return models.Table{}, fmt.Errorf("date column %q not found", dateColumn)
		}
	}

	tbl := models.Table{Values: make(map[string][]float64, len(header)-1)}
	names := make(map[string]bool, len(header))
	for i, h := range header {
		key := strings.ToLower(h)
		if names[key] {
			return models.Table{}, fmt.Errorf("duplicate column %q", h)
		}
		names[key] = true
		if i != dateIdx {
			tbl.Columns = append(tbl.Columns, h)
		}
	}

	seen := make(map[time.Time]bool)
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return models.Table{}, fmt.Errorf("line %d: %w", line, err)
		}

		d, err := util.ParseDate(rec[dateIdx])
		if err != nil {
			return models.Table{}, fmt.Errorf("line %d: %w", line, err)
		}
		if seen[d] {
			return models.Table{}, fmt.Errorf("line %d: duplicate date %s", line, util.FormatDate(d))
		}
		seen[d] = true
		tbl.Dates = append(tbl.Dates, d)

		for i, h := range header {
			if i == dateIdx {
				continue
			}
			v, err := parseCell(rec[i])
			if err != nil {
				return models.Table{}, fmt.Errorf("line %d column %s: %w", line, h, err)
			}
			tbl.Values[h] = append(tbl.Values[h], v)
		}
	}

	sort.Sort(byDate(tbl))
	return tbl, nil
}

func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

func indexOf(xs []string, want string) int {
	for i, x := range xs {
		if strings.EqualFold(x, want) {
			return i
		}
	}
	return -1
}

// byDate sorts table rows by date, moving every column with them.
type byDate models.Table

func (t byDate) Len() int           { return len(t.Dates) }
func (t byDate) Less(i, j int) bool { return t.Dates[i].Before(t.Dates[j]) }
func (t byDate) Swap(i, j int) {
	t.Dates[i], t.Dates[j] = t.Dates[j], t.Dates[i]
	for _, col := range t.Values {
		col[i], col[j] = col[j], col[i]
	}
}

var _ domrepo.SeriesSource = (*CSVSource)(nil)
