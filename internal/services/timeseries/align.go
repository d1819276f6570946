package timeseries

import (
	"fmt"
	"time"

	"EconDash/internal/domain/models"
	"EconDash/pkg/util"
)

// Align places every series on the shared month-end index spanning their
// common overlap, forward filling interior gaps.
func Align(series ...models.TimeSeries) (models.AlignedDataset, error) {
	if len(series) == 0 {
		return models.AlignedDataset{}, fmt.Errorf("align: no series: %w", ErrInsufficientData)
	}

	var start, end time.Time
	for i, s := range series {
		if s.Empty() {
			return models.AlignedDataset{}, fmt.Errorf("align: %s is empty: %w", s.Name, ErrNoOverlap)
		}
		if i == 0 || s.First().Date.After(start) {
			start = s.First().Date
		}
		if i == 0 || s.Last().Date.Before(end) {
			end = s.Last().Date
		}
	}
	if start.After(end) {
		return models.AlignedDataset{}, fmt.Errorf("align: latest start %s after earliest end %s: %w",
			util.FormatDate(start), util.FormatDate(end), ErrNoOverlap)
	}

	index := monthEnds(start, end)
	if len(index) == 0 {
		return models.AlignedDataset{}, fmt.Errorf("align: no month end in %s..%s: %w",
			util.FormatDate(start), util.FormatDate(end), ErrNoOverlap)
	}

	out := models.AlignedDataset{
		Range:  models.DateRange{Start: index[0], End: index[len(index)-1]},
		Index:  index,
		Series: make([]models.TimeSeries, len(series)),
	}
	for i, s := range series {
		out.Series[i] = fillOnto(s, index)
	}
	return out, nil
}

// Restrict narrows an aligned dataset to r, clamping r to the dataset range.
func Restrict(d models.AlignedDataset, r models.DateRange) (models.AlignedDataset, error) {
	if !r.Start.IsZero() && !r.End.IsZero() && r.Start.After(r.End) {
		return models.AlignedDataset{}, fmt.Errorf("start %s after end %s: %w",
			util.FormatDate(r.Start), util.FormatDate(r.End), ErrInvalidRange)
	}

	start, end := d.Range.Start, d.Range.End
	if !r.Start.IsZero() && r.Start.After(start) {
		start = r.Start
	}
	if !r.End.IsZero() && r.End.Before(end) {
		end = r.End
	}
	if start.After(end) {
		return models.AlignedDataset{}, fmt.Errorf("range %s outside available %s: %w", r, d.Range, ErrInvalidRange)
	}

	index := make([]time.Time, 0, len(d.Index))
	for _, t := range d.Index {
		if !t.Before(start) && !t.After(end) {
			index = append(index, t)
		}
	}
	if len(index) == 0 {
		return models.AlignedDataset{}, fmt.Errorf("range %s contains no month end: %w", r, ErrInvalidRange)
	}

	out := models.AlignedDataset{
		Range:  models.DateRange{Start: index[0], End: index[len(index)-1]},
		Index:  index,
		Series: make([]models.TimeSeries, len(d.Series)),
	}
	for i, s := range d.Series {
		out.Series[i] = s.Between(out.Range.Start, out.Range.End)
	}
	return out, nil
}

func monthEnds(start, end time.Time) []time.Time {
	var out []time.Time
	for me := util.MonthEnd(start); !me.After(end); me = util.NextMonthEnd(me) {
		out = append(out, me)
	}
	return out
}

// fillOnto samples s at each index date using the latest value at or
// before it. Every index date must be on or after the first point.
func fillOnto(s models.TimeSeries, index []time.Time) models.TimeSeries {
	points := make([]models.Point, len(index))
	j := 0
	for i, t := range index {
		for j < len(s.Points) && !s.Points[j].Date.After(t) {
			j++
		}
		points[i] = models.Point{Date: t, Value: s.Points[j-1].Value}
	}
	return models.TimeSeries{Name: s.Name, Frequency: models.FrequencyMonthly, Points: points}
}
