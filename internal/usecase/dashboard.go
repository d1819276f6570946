package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	domsvc "EconDash/internal/domain/service"
	"EconDash/internal/services/presentation"
	"EconDash/internal/services/timeseries"
	applogger "EconDash/pkg/logger"
)

// Pipeline stage names used for latency metrics.
const (
	StageLoad     = "load"
	StageResample = "resample"
	StageAlign    = "align"
	StageRestrict = "restrict"
	StageReturns  = "returns"
	StageStats    = "statistics"
	StagePresent  = "presentation"
	StageTotal    = "total"
)

// Indicator is one configured input series.
type Indicator struct {
	Source  domrepo.SeriesSource
	Title   string
	Rule    models.ResampleRule
	Percent bool
}

// MarketSeries describes the remote price series and the window fetched.
type MarketSeries struct {
	Symbol      string
	DisplayName string
	ReturnsName string
	From        time.Time
	To          time.Time
}

// Dashboard runs Load, Resample, Align, Restrict, Returns and Statistics
// for a date range and lays the result out for display. Every call is an
// independent run.
type Dashboard struct {
	indicators []Indicator
	market     domrepo.MarketData
	series     MarketSeries
	metrics    domrepo.Metrics
	l          *applogger.Logger
}

func NewDashboard(indicators []Indicator, market domrepo.MarketData, series MarketSeries, metrics domrepo.Metrics, l *applogger.Logger) *Dashboard {
	if l == nil {
		l = applogger.Nop()
	}
	if series.DisplayName == "" {
		series.DisplayName = series.Symbol
	}
	if series.ReturnsName == "" {
		series.ReturnsName = series.DisplayName + " Returns"
	}
	return &Dashboard{
		indicators: indicators,
		market:     market,
		series:     series,
		metrics:    metrics,
		l:          l.With("dashboard"),
	}
}

// pipelineRun carries the state of one render through the stages.
type pipelineRun struct {
	d        *Dashboard
	raw      []models.TimeSeries
	monthly  []models.TimeSeries
	full     models.AlignedDataset
	view     models.AlignedDataset
	returns  *models.TimeSeries
	warnings []string
}

// Render runs the full pipeline for r. Zero dates in r select the edges of
// the available range.
func (d *Dashboard) Render(ctx context.Context, r models.DateRange) (models.RenderedOutput, error) {
	start := time.Now()
	run := &pipelineRun{d: d}

	out, err := run.render(ctx, r)
	d.metrics.RecordLatency(StageTotal, time.Since(start).Seconds())
	if err != nil {
		d.metrics.RecordRun("error")
		d.metrics.RecordError(ErrorKind(err))
		d.l.Warn("dashboard render failed",
			applogger.String("range", r.String()),
			applogger.String("kind", ErrorKind(err)),
			applogger.Error(err),
		)
		return models.RenderedOutput{}, err
	}

	d.metrics.RecordRun("ok")
	d.l.Info("dashboard rendered",
		applogger.String("range", out.Range.String()),
		applogger.Int("months", len(run.view.Index)),
		applogger.Int("warnings", len(out.Warnings)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// Bounds returns the full overlap of all inputs, which limits the range a
// caller may select.
func (d *Dashboard) Bounds(ctx context.Context) (models.DateRange, error) {
	run := &pipelineRun{d: d}
	if err := run.prepare(ctx); err != nil {
		d.metrics.RecordError(ErrorKind(err))
		return models.DateRange{}, err
	}
	return run.full.Range, nil
}

func (run *pipelineRun) prepare(ctx context.Context) error {
	if err := run.stage(StageLoad, func() error { return run.load(ctx) }); err != nil {
		return err
	}
	if err := run.stage(StageResample, run.resample); err != nil {
		return err
	}
	return run.stage(StageAlign, func() error {
		var err error
		run.full, err = timeseries.Align(run.monthly...)
		return err
	})
}

func (run *pipelineRun) render(ctx context.Context, r models.DateRange) (models.RenderedOutput, error) {
	if err := run.prepare(ctx); err != nil {
		return models.RenderedOutput{}, err
	}
	if err := run.stage(StageRestrict, func() error {
		var err error
		run.view, err = timeseries.Restrict(run.full, r)
		return err
	}); err != nil {
		return models.RenderedOutput{}, err
	}
	if err := run.stage(StageReturns, run.computeReturns); err != nil {
		return models.RenderedOutput{}, err
	}

	var out models.RenderedOutput
	if err := run.stage(StageStats, func() error {
		var err error
		out, err = run.statistics()
		return err
	}); err != nil {
		return models.RenderedOutput{}, err
	}
	_ = run.stage(StagePresent, func() error {
		run.present(&out)
		return nil
	})
	return out, nil
}

func (run *pipelineRun) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	run.d.metrics.RecordLatency(name, time.Since(start).Seconds())
	return err
}

// load fetches every indicator and the market series concurrently. Results
// keep configuration order; the first failure in that order is returned.
func (run *pipelineRun) load(ctx context.Context) error {
	d := run.d
	n := len(d.indicators)
	raw := make([]models.TimeSeries, n+1)
	errs := make([]error, n+1)

	var wg sync.WaitGroup
	for i, ind := range d.indicators {
		wg.Add(1)
		go func(i int, src domrepo.SeriesSource) {
			defer wg.Done()
			ts, err := src.Load(ctx)
			if err != nil {
				errs[i] = err
				return
			}
			raw[i] = ts.Renamed(src.Name())
		}(i, ind.Source)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		px, err := d.market.DailyAdjClose(ctx, d.series.Symbol, d.series.From, d.series.To)
		if err != nil {
			errs[n] = err
			return
		}
		raw[n] = px.Renamed(d.series.DisplayName)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	run.raw = raw
	return nil
}

func (run *pipelineRun) resample() error {
	run.monthly = make([]models.TimeSeries, len(run.raw))
	for i, ts := range run.raw {
		rule := models.RuleFFill
		if i < len(run.d.indicators) {
			rule = run.d.indicators[i].Rule
		}
		m, err := timeseries.Resample(ts, rule)
		if err != nil {
			return err
		}
		run.monthly[i] = m
	}
	return nil
}

// computeReturns derives returns over the full aligned range, then keeps
// the selected months, so a selection's first month still has a return
// when the prior month is available.
func (run *pipelineRun) computeReturns() error {
	px, ok := run.full.Get(run.d.series.DisplayName)
	if !ok {
		return fmt.Errorf("market series %q missing from aligned data", run.d.series.DisplayName)
	}
	ret, err := timeseries.PercentReturns(px, run.d.series.ReturnsName)
	if err == nil {
		ret = ret.Between(run.view.Range.Start, run.view.Range.End)
		if ret.Empty() {
			err = fmt.Errorf("no return in %s: %w", run.view.Range, timeseries.ErrInsufficientData)
		}
	}
	if errors.Is(err, timeseries.ErrInsufficientData) {
		run.d.metrics.RecordError(ErrorKind(err))
		run.warnings = append(run.warnings, fmt.Sprintf("%s omitted: %v", run.d.series.ReturnsName, err))
		return nil
	}
	if err != nil {
		return err
	}
	run.returns = &ret
	return nil
}

// statistics summarises the indicators and returns and correlates them.
func (run *pipelineRun) statistics() (models.RenderedOutput, error) {
	d := run.d
	out := models.RenderedOutput{Range: run.view.Range, Bounds: run.full.Range}

	corrInputs := make([]models.TimeSeries, 0, len(d.indicators)+1)
	for _, ind := range d.indicators {
		ts, _ := run.view.Get(ind.Source.Name())
		s, err := timeseries.Summarize(ts)
		if err != nil {
			return out, err
		}
		s.Percent = ind.Percent
		out.Summaries = append(out.Summaries, s)
		corrInputs = append(corrInputs, ts)
	}
	if run.returns != nil {
		s, err := timeseries.Summarize(*run.returns)
		if err != nil {
			return out, err
		}
		s.Percent = true
		out.Summaries = append(out.Summaries, s)
		corrInputs = append(corrInputs, *run.returns)
	}

	corr, err := timeseries.Correlate(corrInputs...)
	if err != nil {
		return out, err
	}
	out.Correlation = corr
	for i := range corr.Labels {
		for j := i + 1; j < len(corr.Labels); j++ {
			if !corr.Defined(i, j) {
				out.Warnings = append(out.Warnings, fmt.Sprintf("correlation of %s and %s is undefined", corr.Labels[i], corr.Labels[j]))
			}
		}
	}
	out.Warnings = append(run.warnings, out.Warnings...)

	for _, s := range out.Summaries {
		d.metrics.RecordLatestValue(s.Name, s.Latest)
	}
	return out, nil
}

// present fills summary lines, charts and the heatmap.
func (run *pipelineRun) present(out *models.RenderedOutput) {
	d := run.d
	lines := make(map[string]string, len(out.Summaries))
	for i := range out.Summaries {
		out.Summaries[i].Line = presentation.SummaryLine(out.Summaries[i])
		lines[out.Summaries[i].Name] = out.Summaries[i].Line
	}
	for _, ind := range d.indicators {
		ts, _ := run.view.Get(ind.Source.Name())
		c := presentation.BuildChart(ind.Title, ts)
		c.Summary = lines[ind.Source.Name()]
		out.Charts = append(out.Charts, c)
	}
	px, _ := run.view.Get(d.series.DisplayName)
	out.Charts = append(out.Charts, presentation.BuildChart(d.series.DisplayName+" Index", px))
	if run.returns != nil {
		c := presentation.BuildChart(d.series.ReturnsName, *run.returns)
		c.Summary = lines[run.returns.Name]
		out.Charts = append(out.Charts, c)
	}
	out.Heatmap = presentation.Heatmap(out.Correlation)
}

// ErrorKind classifies pipeline errors for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domrepo.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, timeseries.ErrNoOverlap):
		return "no_overlap"
	case errors.Is(err, timeseries.ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, timeseries.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

var _ domsvc.DashboardRenderer = (*Dashboard)(nil)
