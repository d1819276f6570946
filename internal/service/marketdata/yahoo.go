package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	xhttp "EconDash/pkg/http"
	applogger "EconDash/pkg/logger"
	"EconDash/pkg/util"
)

const userAgent = "Mozilla/5.0 (compatible; EconDash/1.0)"

// chartResponse is the subset of Yahoo's v8 chart payload we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// YahooClient fetches daily adjusted closes from Yahoo Finance's chart API.
type YahooClient struct {
	baseURL string
	client  *xhttp.Client
	l       *applogger.Logger
}

// NewYahooClient creates a market data client rooted at baseURL.
func NewYahooClient(baseURL string, timeout time.Duration, opts ...xhttp.ClientOption) *YahooClient {
	opts = append([]xhttp.ClientOption{
		xhttp.WithTimeout(timeout),
		xhttp.WithHeader("User-Agent", userAgent),
		xhttp.WithHeader("Accept", "application/json"),
	}, opts...)
	return &YahooClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  xhttp.NewClient(opts...),
		l:       applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (c *YahooClient) SetLogger(l *applogger.Logger) {
	if l != nil {
		c.l = l
	}
}

// DailyAdjClose returns one point per trading day in [from, to). Null
// closes are skipped and a repeated day keeps its last value.
func (c *YahooClient) DailyAdjClose(ctx context.Context, symbol string, from, to time.Time) (models.TimeSeries, error) {
	start := time.Now()
	var resp chartResponse
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(symbol)),
		QueryParams: map[string][]string{
			"period1":              {strconv.FormatInt(from.Unix(), 10)},
			"period2":              {strconv.FormatInt(to.Unix(), 10)},
			"interval":             {"1d"},
			"events":               {"history"},
			"includeAdjustedClose": {"true"},
		},
	}, &resp)
	if err != nil {
		c.l.Error("market fetch failed", applogger.String("symbol", symbol), applogger.Error(err))
		return models.TimeSeries{}, fmt.Errorf("fetch %s: %w: %w", symbol, domrepo.ErrSourceUnavailable, err)
	}

	ts, err := parseChart(symbol, &resp)
	if err != nil {
		return models.TimeSeries{}, fmt.Errorf("fetch %s: %w: %w", symbol, domrepo.ErrSourceUnavailable, err)
	}

	c.l.Info("market fetch ok",
		applogger.String("symbol", symbol),
		applogger.String("from", util.FormatDate(from)),
		applogger.String("to", util.FormatDate(to)),
		applogger.Int("points", ts.Len()),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return ts, nil
}

func parseChart(symbol string, resp *chartResponse) (models.TimeSeries, error) {
	if e := resp.Chart.Error; e != nil {
		return models.TimeSeries{}, fmt.Errorf("%s: %s", e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return models.TimeSeries{}, fmt.Errorf("empty chart result")
	}
	res := resp.Chart.Result[0]

	var closes []*float64
	switch {
	case len(res.Indicators.AdjClose) > 0:
		closes = res.Indicators.AdjClose[0].AdjClose
	case len(res.Indicators.Quote) > 0:
		closes = res.Indicators.Quote[0].Close
	}
	if len(closes) != len(res.Timestamp) {
		return models.TimeSeries{}, fmt.Errorf("%d timestamps but %d closes", len(res.Timestamp), len(closes))
	}

	byDay := make(map[time.Time]float64, len(closes))
	for i, ts := range res.Timestamp {
		if closes[i] == nil {
			continue
		}
		day := util.Day(time.Unix(ts+res.Meta.GMTOffset, 0).UTC())
		byDay[day] = *closes[i]
	}
	if len(byDay) == 0 {
		return models.TimeSeries{}, fmt.Errorf("no prices returned")
	}

	points := make([]models.Point, 0, len(byDay))
	for d, v := range byDay {
		points = append(points, models.Point{Date: d, Value: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return models.NewTimeSeries(symbol, points)
}

var _ domrepo.MarketData = (*YahooClient)(nil)
