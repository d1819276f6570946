package timeseries

import (
	"fmt"

	"EconDash/internal/domain/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summarize returns latest, mean, min and max of ts.
func Summarize(ts models.TimeSeries) (models.Summary, error) {
	if ts.Empty() {
		return models.Summary{}, fmt.Errorf("summarize %s: %w", ts.Name, ErrInsufficientData)
	}
	vals := ts.Values()
	return models.Summary{
		Name:   ts.Name,
		Latest: ts.Last().Value,
		Mean:   stat.Mean(vals, nil),
		Min:    floats.Min(vals),
		Max:    floats.Max(vals),
	}, nil
}
