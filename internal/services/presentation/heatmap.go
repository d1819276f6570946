package presentation

import (
	"fmt"
	"math"

	"EconDash/internal/domain/models"

	"github.com/shopspring/decimal"
)

// NeutralColor fills heatmap cells whose coefficient is undefined.
const NeutralColor = "#f5f5f5"

type rgb struct{ r, g, b float64 }

var (
	coolwarmLow  = rgb{59, 76, 192}
	coolwarmMid  = rgb{221, 221, 221}
	coolwarmHigh = rgb{180, 4, 38}
)

// Coolwarm maps a coefficient on the fixed scale [-1, 1] to a hex colour,
// diverging from blue through grey to red.
func Coolwarm(v float64) string {
	if math.IsNaN(v) {
		return NeutralColor
	}
	v = math.Max(-1, math.Min(1, v))
	var c rgb
	if v < 0 {
		c = lerp(coolwarmMid, coolwarmLow, -v)
	} else {
		c = lerp(coolwarmMid, coolwarmHigh, v)
	}
	return fmt.Sprintf("#%02x%02x%02x", int(math.Round(c.r)), int(math.Round(c.g)), int(math.Round(c.b)))
}

func lerp(a, b rgb, t float64) rgb {
	return rgb{
		r: a.r + (b.r-a.r)*t,
		g: a.g + (b.g-a.g)*t,
		b: a.b + (b.b-a.b)*t,
	}
}

// Heatmap lays the matrix out as annotated, coloured cells, row by row.
func Heatmap(m models.CorrelationMatrix) [][]models.HeatmapCell {
	out := make([][]models.HeatmapCell, m.Size())
	for i := range out {
		out[i] = make([]models.HeatmapCell, m.Size())
		for j := range out[i] {
			cell := models.HeatmapCell{
				Row:   m.Labels[i],
				Col:   m.Labels[j],
				Label: "n/a",
				Color: Coolwarm(m.At(i, j)),
			}
			if m.Defined(i, j) {
				v := m.At(i, j)
				cell.Value = &v
				cell.Label = decimal.NewFromFloat(v).StringFixed(2)
			}
			out[i][j] = cell
		}
	}
	return out
}
