package models

// Summary holds the descriptive statistics of one series over the window.
type Summary struct {
	Name    string  `json:"name"`
	Latest  float64 `json:"latest"`
	Mean    float64 `json:"mean"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Percent bool    `json:"percent"`
	Line    string  `json:"line"`
}

// ChartPoint is one plotted value with its date already formatted.
type ChartPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Chart is a single-series line chart.
type Chart struct {
	Title    string       `json:"title"`
	Points   []ChartPoint `json:"points"`
	Min      float64      `json:"min"`
	Max      float64      `json:"max"`
	Polyline string       `json:"polyline,omitempty"`
	Summary  string       `json:"summary,omitempty"`
}

// HeatmapCell is one annotated cell of the correlation heatmap.
type HeatmapCell struct {
	Row   string   `json:"row"`
	Col   string   `json:"col"`
	Value *float64 `json:"value"`
	Label string   `json:"label"`
	Color string   `json:"color"`
}

// RenderedOutput is everything the dashboard displays for one range.
type RenderedOutput struct {
	Range       DateRange         `json:"range"`
	Bounds      DateRange         `json:"bounds"`
	Summaries   []Summary         `json:"summaries"`
	Charts      []Chart           `json:"charts"`
	Correlation CorrelationMatrix `json:"correlation"`
	Heatmap     [][]HeatmapCell   `json:"heatmap"`
	Warnings    []string          `json:"warnings,omitempty"`
}
