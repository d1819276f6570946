package presentation

import (
	"math"
	"testing"
	"time"

	"EconDash/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v       float64
		percent bool
		want    string
	}{
		{1234567.891, false, "1,234,567.89"},
		{-1234.5, false, "-1,234.50"},
		{999.999, false, "1,000.00"},
		{12.3, false, "12.30"},
		{3.14159, true, "3.14%"},
		{-10, true, "-10.00%"},
		{1234.5, true, "1234.50%"},
		{math.NaN(), false, "n/a"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.v, tt.percent))
	}
}

func TestSummaryLine(t *testing.T) {
	s := models.Summary{Name: "GDP", Latest: 104, Mean: 102, Min: 100, Max: 104}
	assert.Equal(t, "Latest: 104.00, Average: 102.00, Min: 100.00, Max: 104.00", SummaryLine(s))

	s = models.Summary{Name: "S&P 500 Returns", Latest: -10, Mean: 0, Min: -10, Max: 10, Percent: true}
	assert.Equal(t, "Latest: -10.00%, Average: 0.00%, Min: -10.00%, Max: 10.00%", SummaryLine(s))
}

func TestCoolwarm(t *testing.T) {
	assert.Equal(t, "#3b4cc0", Coolwarm(-1))
	assert.Equal(t, "#dddddd", Coolwarm(0))
	assert.Equal(t, "#b40426", Coolwarm(1))
	assert.Equal(t, "#b40426", Coolwarm(3), "values are clamped to the scale")
	assert.Equal(t, NeutralColor, Coolwarm(math.NaN()))
}

func TestHeatmap(t *testing.T) {
	m := models.CorrelationMatrix{
		Labels: []string{"GDP", "Flat"},
		Values: [][]float64{{1, math.NaN()}, {math.NaN(), 1}},
	}
	cells := Heatmap(m)
	require.Len(t, cells, 2)
	assert.Equal(t, "1.00", cells[0][0].Label)
	require.NotNil(t, cells[0][0].Value)
	assert.Nil(t, cells[0][1].Value)
	assert.Equal(t, "n/a", cells[0][1].Label)
	assert.Equal(t, NeutralColor, cells[1][0].Color)
	assert.Equal(t, "Flat", cells[1][0].Row)
	assert.Equal(t, "GDP", cells[1][0].Col)
}

func TestBuildChart(t *testing.T) {
	ts, err := models.NewTimeSeries("x", []models.Point{
		{Date: time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC), Value: 0},
		{Date: time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC), Value: 10},
	})
	require.NoError(t, err)

	c := BuildChart("X Index", ts)
	assert.Equal(t, "X Index", c.Title)
	assert.Equal(t, "0.0,200.0 600.0,0.0", c.Polyline)
	assert.Equal(t, "2020-02-29", c.Points[1].Date)
	assert.Equal(t, 10.0, c.Max)

	flat, err := models.NewTimeSeries("flat", []models.Point{{Date: time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC), Value: 5}})
	require.NoError(t, err)
	assert.Equal(t, "0.0,100.0", BuildChart("flat", flat).Polyline)

	assert.Empty(t, BuildChart("empty", models.TimeSeries{}).Polyline)
}
