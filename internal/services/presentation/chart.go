package presentation

import (
	"strconv"
	"strings"

	"EconDash/internal/domain/models"
	"EconDash/pkg/util"

	"gonum.org/v1/gonum/floats"
)

// Chart viewport in SVG user units.
const (
	ChartWidth  = 600
	ChartHeight = 200
)

// BuildChart turns a series into a line chart with an SVG polyline scaled
// to the series min and max.
func BuildChart(title string, ts models.TimeSeries) models.Chart {
	c := models.Chart{Title: title, Points: make([]models.ChartPoint, ts.Len())}
	if ts.Empty() {
		return c
	}
	for i, p := range ts.Points {
		c.Points[i] = models.ChartPoint{Date: util.FormatDate(p.Date), Value: p.Value}
	}
	vals := ts.Values()
	c.Min, c.Max = floats.Min(vals), floats.Max(vals)
	c.Polyline = polyline(vals, c.Min, c.Max)
	return c
}

func polyline(vals []float64, lo, hi float64) string {
	var b strings.Builder
	step := 0.0
	if len(vals) > 1 {
		step = float64(ChartWidth) / float64(len(vals)-1)
	}
	for i, v := range vals {
		y := float64(ChartHeight) / 2
		if hi > lo {
			y = float64(ChartHeight) - (v-lo)/(hi-lo)*float64(ChartHeight)
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(float64(i)*step, 'f', 1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(y, 'f', 1, 64))
	}
	return b.String()
}
