package marketdata

import (
	"context"
	"errors"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	"EconDash/pkg/cache"
	applogger "EconDash/pkg/logger"
	"EconDash/pkg/util"
)

const keyPrefix = "market"

// CachedClient serves repeated fetches of the same symbol and window from
// cache. Only successful fetches are stored.
type CachedClient struct {
	next  domrepo.MarketData
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

// NewCachedClient decorates next. A nil cache or ttl <= 0 disables caching.
func NewCachedClient(next domrepo.MarketData, c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedClient {
	if l == nil {
		l = applogger.Nop()
	}
	return &CachedClient{next: next, cache: c, ttl: ttl, l: l}
}

func (c *CachedClient) enabled() bool { return c.cache != nil && c.ttl > 0 }

func (c *CachedClient) DailyAdjClose(ctx context.Context, symbol string, from, to time.Time) (models.TimeSeries, error) {
	if !c.enabled() {
		return c.next.DailyAdjClose(ctx, symbol, from, to)
	}

	key := cache.GenerateKeyWithParams(keyPrefix, symbol, util.FormatDate(from), util.FormatDate(to))
	var ts models.TimeSeries
	err := c.cache.Get(ctx, key, &ts)
	if err == nil {
		return ts, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.l.Warn("market cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	ts, err = c.next.DailyAdjClose(ctx, symbol, from, to)
	if err != nil {
		return models.TimeSeries{}, err
	}
	if err := c.cache.Set(ctx, key, ts, c.ttl); err != nil {
		c.l.Warn("market cache write failed", applogger.String("key", key), applogger.Error(err))
	}
	return ts, nil
}

// Invalidate drops cached windows for symbol, or every window when symbol is empty.
func (c *CachedClient) Invalidate(ctx context.Context, symbol string) error {
	if c.cache == nil {
		return nil
	}
	pattern := cache.BuildPattern(keyPrefix + ":")
	if symbol != "" {
		pattern = cache.BuildPattern(cache.GenerateKeyWithParams(keyPrefix, symbol) + ":")
	}
	return c.cache.DeleteByPattern(ctx, pattern)
}

var (
	_ domrepo.MarketData  = (*CachedClient)(nil)
	_ domrepo.MarketCache = (*CachedClient)(nil)
)
