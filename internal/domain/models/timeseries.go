package models

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"EconDash/pkg/util"
)

// ErrUnorderedDates is returned when a series has duplicate or decreasing dates.
var ErrUnorderedDates = errors.New("dates must be unique and strictly increasing")

// Point is one dated observation.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// TimeSeries is a named, date-ordered sequence of observations.
type TimeSeries struct {
	Name      string    `json:"name"`
	Frequency Frequency `json:"frequency"`
	Points    []Point   `json:"points"`
}

// NewTimeSeries copies points into a series and infers its frequency.
// Dates are normalised to midnight UTC and must be strictly increasing.
func NewTimeSeries(name string, points []Point) (TimeSeries, error) {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{Date: util.Day(p.Date), Value: p.Value}
		if i > 0 && !out[i].Date.After(out[i-1].Date) {
			return TimeSeries{}, fmt.Errorf("%s at %s: %w", name, util.FormatDate(out[i].Date), ErrUnorderedDates)
		}
	}
	ts := TimeSeries{Name: name, Points: out}
	ts.Frequency = DetectFrequency(ts.Dates())
	return ts, nil
}

func (ts TimeSeries) Len() int { return len(ts.Points) }

func (ts TimeSeries) Empty() bool { return len(ts.Points) == 0 }

// First returns the earliest point. The series must not be empty.
func (ts TimeSeries) First() Point { return ts.Points[0] }

// Last returns the latest point. The series must not be empty.
func (ts TimeSeries) Last() Point { return ts.Points[len(ts.Points)-1] }

func (ts TimeSeries) Values() []float64 {
	out := make([]float64, len(ts.Points))
	for i, p := range ts.Points {
		out[i] = p.Value
	}
	return out
}

func (ts TimeSeries) Dates() []time.Time {
	out := make([]time.Time, len(ts.Points))
	for i, p := range ts.Points {
		out[i] = p.Date
	}
	return out
}

// Renamed returns a copy of the series under a new name.
func (ts TimeSeries) Renamed(name string) TimeSeries {
	out := ts
	out.Name = name
	out.Points = append([]Point(nil), ts.Points...)
	return out
}

// Between returns the points whose dates fall in [start, end].
func (ts TimeSeries) Between(start, end time.Time) TimeSeries {
	lo := sort.Search(len(ts.Points), func(i int) bool { return !ts.Points[i].Date.Before(start) })
	hi := sort.Search(len(ts.Points), func(i int) bool { return ts.Points[i].Date.After(end) })
	out := ts
	if lo >= hi {
		out.Points = nil
		return out
	}
	out.Points = append([]Point(nil), ts.Points[lo:hi]...)
	return out
}

// Table is a date-indexed set of named value columns, as read from a
// multi-column file. Missing cells hold NaN.
type Table struct {
	Dates   []time.Time
	Columns []string
	Values  map[string][]float64
}

// HasColumn reports whether the table carries the named column.
func (t Table) HasColumn(column string) bool {
	_, ok := t.Values[column]
	return ok
}

// Series extracts one column as a TimeSeries called name, dropping
// missing cells. An empty name keeps the column name.
func (t Table) Series(column, name string) (TimeSeries, error) {
	vals, ok := t.Values[column]
	if !ok {
		return TimeSeries{}, fmt.Errorf("column %q not found", column)
	}
	if len(vals) != len(t.Dates) {
		return TimeSeries{}, fmt.Errorf("column %q has %d values for %d dates", column, len(vals), len(t.Dates))
	}
	if name == "" {
		name = column
	}
	points := make([]Point, 0, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		points = append(points, Point{Date: t.Dates[i], Value: v})
	}
	return NewTimeSeries(name, points)
}
