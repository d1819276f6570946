package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"EconDash/pkg/util"
)

// DateRange is an inclusive calendar window. A zero Start or End leaves
// that side unbounded.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) IsZero() bool { return r.Start.IsZero() && r.End.IsZero() }

// Contains reports whether t lies inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

func (r DateRange) String() string {
	return fmt.Sprintf("[%s, %s]", util.FormatDate(r.Start), util.FormatDate(r.End))
}

func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}{util.FormatDate(r.Start), util.FormatDate(r.End)})
}

// AlignedDataset holds series sharing one month-end index over Range.
type AlignedDataset struct {
	Range  DateRange
	Index  []time.Time
	Series []TimeSeries
}

// Get returns the member series with the given name.
func (d AlignedDataset) Get(name string) (TimeSeries, bool) {
	for _, s := range d.Series {
		if s.Name == name {
			return s, true
		}
	}
	return TimeSeries{}, false
}

func (d AlignedDataset) Names() []string {
	out := make([]string, len(d.Series))
	for i, s := range d.Series {
		out[i] = s.Name
	}
	return out
}

// CorrelationMatrix is a symmetric matrix of pairwise Pearson coefficients.
// Undefined entries are NaN and encode as null.
type CorrelationMatrix struct {
	Labels []string
	Values [][]float64
}

func (m CorrelationMatrix) Size() int { return len(m.Labels) }

func (m CorrelationMatrix) At(i, j int) float64 { return m.Values[i][j] }

// Defined reports whether the (i, j) coefficient is a number.
func (m CorrelationMatrix) Defined(i, j int) bool { return !math.IsNaN(m.Values[i][j]) }

func (m CorrelationMatrix) MarshalJSON() ([]byte, error) {
	rows := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		rows[i] = make([]*float64, len(row))
		for j, v := range row {
			if math.IsNaN(v) {
				continue
			}
			v := v
			rows[i][j] = &v
		}
	}
	return json.Marshal(struct {
		Labels []string     `json:"labels"`
		Values [][]*float64 `json:"values"`
	}{m.Labels, rows})
}
