package timeseries

import (
	"fmt"
	"math"

	"EconDash/internal/domain/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Correlate inner-joins the series on date and returns their pairwise
// Pearson matrix. The diagonal is 1. Pairs involving a constant column, or
// any pair when fewer than two rows survive the join, are NaN.
func Correlate(series ...models.TimeSeries) (models.CorrelationMatrix, error) {
	if len(series) == 0 {
		return models.CorrelationMatrix{}, fmt.Errorf("correlate: no series: %w", ErrInsufficientData)
	}

	cols := innerJoin(series)
	n := len(series)
	m := models.CorrelationMatrix{
		Labels: make([]string, n),
		Values: make([][]float64, n),
	}
	for i, s := range series {
		m.Labels[i] = s.Name
		m.Values[i] = make([]float64, n)
	}

	rows := len(cols[0])
	for i := 0; i < n; i++ {
		m.Values[i][i] = 1
		for j := i + 1; j < n; j++ {
			c := math.NaN()
			if rows >= 2 && !constant(cols[i]) && !constant(cols[j]) {
				c = clamp(stat.Correlation(cols[i], cols[j], nil))
			}
			m.Values[i][j] = c
			m.Values[j][i] = c
		}
	}
	return m, nil
}

// innerJoin returns one value column per series restricted to the dates
// every series has, in the order of the first series.
func innerJoin(series []models.TimeSeries) [][]float64 {
	lookup := make([]map[int64]float64, len(series))
	for i, s := range series {
		lookup[i] = make(map[int64]float64, s.Len())
		for _, p := range s.Points {
			lookup[i][p.Date.Unix()] = p.Value
		}
	}

	cols := make([][]float64, len(series))
	for _, p := range series[0].Points {
		row := make([]float64, len(series))
		ok := true
		for i := range series {
			v, found := lookup[i][p.Date.Unix()]
			if !found {
				ok = false
				break
			}
			row[i] = v
		}
		if !ok {
			continue
		}
		for i, v := range row {
			cols[i] = append(cols[i], v)
		}
	}
	return cols
}

func constant(xs []float64) bool {
	return len(xs) == 0 || floats.Min(xs) == floats.Max(xs)
}

func clamp(c float64) float64 {
	switch {
	case math.IsNaN(c):
		return c
	case c > 1:
		return 1
	case c < -1:
		return -1
	}
	return c
}
