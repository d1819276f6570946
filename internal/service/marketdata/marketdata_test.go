package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	"EconDash/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartBody = `{"chart":{"result":[{
  "meta":{"symbol":"^GSPC","gmtoffset":-18000},
  "timestamp":[1577975400,1577989800,1578061800,1578321000],
  "indicators":{"quote":[{"close":[1,2,3,4]}],"adjclose":[{"adjclose":[3200.5,3210.25,null,3246.28]}]}
}],"error":null}}`

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestYahooClientParsesAdjustedCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/^GSPC", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1d", q.Get("interval"))
		assert.Equal(t, "true", q.Get("includeAdjustedClose"))
		assert.Equal(t, "-315619200", q.Get("period1"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	c := NewYahooClient(srv.URL+"/", time.Second)
	ts, err := c.DailyAdjClose(context.Background(), "^GSPC", day(1960, 1, 1), day(2024, 1, 1))
	require.NoError(t, err)

	assert.Equal(t, []time.Time{day(2020, 1, 2), day(2020, 1, 6)}, ts.Dates())
	assert.Equal(t, []float64{3210.25, 3246.28}, ts.Values())
}

func TestYahooClientFailuresAreSourceUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusTooManyRequests, "slow down"},
		{"chart error", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`},
		{"all null", http.StatusOK, `{"chart":{"result":[{"meta":{},"timestamp":[1577975400],"indicators":{"adjclose":[{"adjclose":[null]}]}}]}}`},
		{"length mismatch", http.StatusOK, `{"chart":{"result":[{"meta":{},"timestamp":[1577975400,1578061800],"indicators":{"adjclose":[{"adjclose":[1]}]}}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewYahooClient(srv.URL, time.Second).DailyAdjClose(context.Background(), "^GSPC", day(2020, 1, 1), day(2020, 2, 1))
			assert.ErrorIs(t, err, domrepo.ErrSourceUnavailable)
		})
	}
}

type countingMarket struct {
	calls atomic.Int32
	err   error
}

func (m *countingMarket) DailyAdjClose(_ context.Context, symbol string, from, _ time.Time) (models.TimeSeries, error) {
	m.calls.Add(1)
	if m.err != nil {
		return models.TimeSeries{}, m.err
	}
	return models.NewTimeSeries(symbol, []models.Point{{Date: from, Value: 100}, {Date: from.AddDate(0, 0, 1), Value: 101}})
}

func TestCachedClientReusesSuccessfulFetches(t *testing.T) {
	ctx := context.Background()
	next := &countingMarket{}
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	c := NewCachedClient(next, mc, time.Hour, nil)

	first, err := c.DailyAdjClose(ctx, "^GSPC", day(2020, 1, 1), day(2020, 2, 1))
	require.NoError(t, err)
	second, err := c.DailyAdjClose(ctx, "^GSPC", day(2020, 1, 1), day(2020, 2, 1))
	require.NoError(t, err)

	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, first.Values(), second.Values())
	assert.Equal(t, first.Dates(), second.Dates())

	_, err = c.DailyAdjClose(ctx, "^DJI", day(2020, 1, 1), day(2020, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())

	require.NoError(t, c.Invalidate(ctx, "^GSPC"))
	assert.Equal(t, 1, mc.Len())
	_, err = c.DailyAdjClose(ctx, "^GSPC", day(2020, 1, 1), day(2020, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, int32(3), next.calls.Load())

	require.NoError(t, c.Invalidate(ctx, ""))
	assert.Equal(t, 0, mc.Len())
}

func TestCachedClientDoesNotCacheFailures(t *testing.T) {
	ctx := context.Background()
	next := &countingMarket{err: errors.New("down")}
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	c := NewCachedClient(next, mc, time.Hour, nil)

	_, err := c.DailyAdjClose(ctx, "^GSPC", day(2020, 1, 1), day(2020, 2, 1))
	assert.Error(t, err)
	assert.Equal(t, 0, mc.Len())

	next.err = nil
	_, err = c.DailyAdjClose(ctx, "^GSPC", day(2020, 1, 1), day(2020, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedClientDisabled(t *testing.T) {
	next := &countingMarket{}
	c := NewCachedClient(next, nil, time.Hour, nil)
	for i := 0; i < 2; i++ {
		_, err := c.DailyAdjClose(context.Background(), "^GSPC", day(2020, 1, 1), day(2020, 2, 1))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), next.calls.Load())
	assert.NoError(t, c.Invalidate(context.Background(), ""))
}
