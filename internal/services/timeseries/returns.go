package timeseries

import (
	"fmt"

	"EconDash/internal/domain/models"
	"EconDash/pkg/util"
)

// PercentReturns computes simple period returns in percent, dated at the
// later observation. The result is one point shorter than the input.
func PercentReturns(ts models.TimeSeries, name string) (models.TimeSeries, error) {
	if name == "" {
		name = ts.Name + " Returns"
	}
	if ts.Len() < 2 {
		return models.TimeSeries{}, fmt.Errorf("returns of %s: %d points: %w", ts.Name, ts.Len(), ErrInsufficientData)
	}

	points := make([]models.Point, 0, ts.Len()-1)
	for i := 1; i < ts.Len(); i++ {
		prev, cur := ts.Points[i-1], ts.Points[i]
		if prev.Value == 0 {
			return models.TimeSeries{}, fmt.Errorf("returns of %s: zero price at %s: %w",
				ts.Name, util.FormatDate(prev.Date), ErrInsufficientData)
		}
		points = append(points, models.Point{
			Date:  cur.Date,
			Value: (cur.Value - prev.Value) / prev.Value * 100,
		})
	}
	return models.TimeSeries{Name: name, Frequency: ts.Frequency, Points: points}, nil
}
