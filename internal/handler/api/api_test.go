package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	models "EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	"EconDash/internal/service/ratelimit"
	"EconDash/internal/services/presentation"
	"EconDash/internal/services/timeseries"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	mu     sync.Mutex
	err    error
	ranges []models.DateRange
}

func (f *fakeRenderer) Render(_ context.Context, r models.DateRange) (models.RenderedOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranges = append(f.ranges, r)
	if f.err != nil {
		return models.RenderedOutput{}, f.err
	}
	return sampleOutput(), nil
}

func (f *fakeRenderer) Bounds(context.Context) (models.DateRange, error) {
	if f.err != nil {
		return models.DateRange{}, f.err
	}
	return sampleOutput().Bounds, nil
}

func (f *fakeRenderer) lastRange() models.DateRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ranges[len(f.ranges)-1]
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func sampleOutput() models.RenderedOutput {
	gdp, _ := models.NewTimeSeries("GDP", []models.Point{
		{Date: day(2020, 1, 31), Value: 100},
		{Date: day(2020, 2, 29), Value: 102},
	})
	chart := presentation.BuildChart("Gross Domestic Product (GDP)", gdp)
	chart.Summary = "Latest: 102.00, Average: 101.00, Min: 100.00, Max: 102.00"
	corr := models.CorrelationMatrix{
		Labels: []string{"GDP", "Unemployment Rate"},
		Values: [][]float64{{1, -0.5}, {-0.5, 1}},
	}
	return models.RenderedOutput{
		Range:       models.DateRange{Start: day(2020, 1, 31), End: day(2020, 2, 29)},
		Bounds:      models.DateRange{Start: day(2020, 1, 31), End: day(2020, 10, 31)},
		Charts:      []models.Chart{chart},
		Correlation: corr,
		Heatmap:     presentation.Heatmap(corr),
	}
}

func newTestEcho(r *fakeRenderer) *echo.Echo {
	e := echo.New()
	NewDashboardHandler(nil, r, "").RegisterRoutes(e)
	return e
}

func doGet(e *echo.Echo, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var errs []struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.NotEmpty(t, errs)
	return errs[0].Code
}

func TestDashboardEndpointPassesRange(t *testing.T) {
	r := &fakeRenderer{}
	rec := doGet(newTestEcho(r), "/api/dashboard?start=2020-01-31&end=2020-06-30")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, models.DateRange{Start: day(2020, 1, 31), End: day(2020, 6, 30)}, r.lastRange())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var out struct {
		Range struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"range"`
		Charts []struct {
			Title string `json:"title"`
		} `json:"charts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "2020-01-31", out.Range.Start)
	require.Len(t, out.Charts, 1)
	assert.Equal(t, "Gross Domestic Product (GDP)", out.Charts[0].Title)
}

func TestDashboardEndpointEmptyRange(t *testing.T) {
	r := &fakeRenderer{}
	rec := doGet(newTestEcho(r), "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, r.lastRange().IsZero())
}

func TestDashboardEndpointValidation(t *testing.T) {
	r := &fakeRenderer{}
	rec := doGet(newTestEcho(r), "/api/dashboard?start=31.01.2020")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ERR_DATETIME", errorCode(t, rec))
	assert.Empty(t, r.ranges)
}

func TestDashboardEndpointErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"source", fmt.Errorf("load GDP: %w", domrepo.ErrSourceUnavailable), http.StatusServiceUnavailable, "ERR_SOURCE_UNAVAILABLE"},
		{"overlap", timeseries.ErrNoOverlap, http.StatusUnprocessableEntity, "ERR_NO_OVERLAP"},
		{"range", fmt.Errorf("restrict: %w", timeseries.ErrInvalidRange), http.StatusBadRequest, "ERR_INVALID_RANGE"},
		{"insufficient", timeseries.ErrInsufficientData, http.StatusUnprocessableEntity, "ERR_INSUFFICIENT_DATA"},
		{"internal", fmt.Errorf("boom"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGet(newTestEcho(&fakeRenderer{err: tt.err}), "/api/dashboard")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestRangeEndpoint(t *testing.T) {
	rec := doGet(newTestEcho(&fakeRenderer{}), "/api/range")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"start":"2020-01-31"`)
	assert.Contains(t, rec.Body.String(), `"end":"2020-10-31"`)

	rec = doGet(newTestEcho(&fakeRenderer{err: timeseries.ErrNoOverlap}), "/api/range")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := doGet(newTestEcho(&fakeRenderer{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestPageRendersDashboard(t *testing.T) {
	rec := doGet(newTestEcho(&fakeRenderer{}), "/?start=2020-01-31&end=2020-02-29")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Economic Indicators Dashboard")
	assert.Contains(t, body, "Gross Domestic Product (GDP)")
	assert.Contains(t, body, "Latest: 102.00, Average: 101.00")
	assert.Contains(t, body, "<polyline")
	assert.Contains(t, body, "-0.50")
	assert.Contains(t, body, `min="2020-01-31"`)
	assert.Contains(t, body, `max="2020-10-31"`)
	assert.Contains(t, body, "2020-01-31 to 2020-02-29")
}

func TestPageShowsErrors(t *testing.T) {
	rec := doGet(newTestEcho(&fakeRenderer{err: domrepo.ErrSourceUnavailable}), "/")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "a data source is unavailable")
	assert.NotContains(t, rec.Body.String(), "<polyline")

	rec = doGet(newTestEcho(&fakeRenderer{}), "/?end=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "End must be a date formatted as 2006-01-02")
}

func dialWS(t *testing.T, h *DashboardWSHandler) *websocket.Conn {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type wsFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error json.RawMessage `json:"error"`
}

func roundTrip(t *testing.T, conn *websocket.Conn, req interface{}) wsFrame {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebSocketRendersEachRequest(t *testing.T) {
	r := &fakeRenderer{}
	conn := dialWS(t, NewDashboardWSHandler(nil, r, ratelimit.New(), 10, 10))

	f := roundTrip(t, conn, models.DashboardRequest{Start: "2020-03-31"})
	assert.Equal(t, "dashboard", f.Type)
	assert.Contains(t, string(f.Data), "Gross Domestic Product (GDP)")
	assert.Equal(t, day(2020, 3, 31), r.lastRange().Start)

	f = roundTrip(t, conn, models.DashboardRequest{End: "bad"})
	assert.Equal(t, "error", f.Type)
	assert.Contains(t, string(f.Error), "ERR_DATETIME")
}

func TestWebSocketReportsRenderErrors(t *testing.T) {
	conn := dialWS(t, NewDashboardWSHandler(nil, &fakeRenderer{err: timeseries.ErrNoOverlap}, nil, 10, 10))
	f := roundTrip(t, conn, models.DashboardRequest{})
	assert.Equal(t, "error", f.Type)
	assert.Contains(t, string(f.Error), "ERR_NO_OVERLAP")
}

func TestWebSocketRateLimited(t *testing.T) {
	conn := dialWS(t, NewDashboardWSHandler(nil, &fakeRenderer{}, ratelimit.New(), 1, 0))

	assert.Equal(t, "dashboard", roundTrip(t, conn, models.DashboardRequest{}).Type)
	f := roundTrip(t, conn, models.DashboardRequest{})
	assert.Equal(t, "error", f.Type)
	assert.Contains(t, string(f.Error), "ERR_RATE_LIMITED")
}
