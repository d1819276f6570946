package timeseries

import (
	"fmt"

	"EconDash/internal/domain/models"
	"EconDash/pkg/util"
)

// Resample collapses ts onto calendar month ends using rule. An empty rule
// picks the default for the series frequency. The input is not modified.
func Resample(ts models.TimeSeries, rule models.ResampleRule) (models.TimeSeries, error) {
	if rule == "" {
		rule = ts.Frequency.DefaultRule()
	}
	out := models.TimeSeries{Name: ts.Name, Frequency: models.FrequencyMonthly}
	if ts.Empty() {
		return out, nil
	}

	switch rule {
	case models.RuleFFill:
		out.Points = forwardFillMonthly(ts.Points)
	case models.RuleMean:
		out.Points = meanMonthly(ts.Points)
	default:
		return models.TimeSeries{}, fmt.Errorf("resample %s: unknown rule %q", ts.Name, rule)
	}
	return out, nil
}

// forwardFillMonthly emits one point per month end between the first and
// last observation, carrying the latest value at or before each month end.
func forwardFillMonthly(points []models.Point) []models.Point {
	last := util.MonthEnd(points[len(points)-1].Date)
	out := make([]models.Point, 0, len(points))
	j := 0
	for me := util.MonthEnd(points[0].Date); !me.After(last); me = util.NextMonthEnd(me) {
		for j < len(points) && !points[j].Date.After(me) {
			j++
		}
		out = append(out, models.Point{Date: me, Value: points[j-1].Value})
	}
	return out
}

// meanMonthly averages observations per calendar month. Months without
// observations produce no point.
func meanMonthly(points []models.Point) []models.Point {
	out := make([]models.Point, 0, len(points)/20+1)
	start := 0
	for i := 1; i <= len(points); i++ {
		if i < len(points) && util.SameMonth(points[i].Date, points[start].Date) {
			continue
		}
		var sum float64
		for _, p := range points[start:i] {
			sum += p.Value
		}
		out = append(out, models.Point{
			Date:  util.MonthEnd(points[start].Date),
			Value: sum / float64(i-start),
		})
		start = i
	}
	return out
}
