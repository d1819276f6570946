package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

func TestMemoryCacheTypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	in := []point{{"2020-01-31", 1.5}, {"2020-02-29", 2.5}}
	require.NoError(t, mc.Set(ctx, "market:^GSPC", in, time.Minute))

	var out []point
	require.NoError(t, mc.Get(ctx, "market:^GSPC", &out))
	assert.Equal(t, in, out)

	var s string
	require.NoError(t, mc.Set(ctx, "plain", "hello", 0))
	require.NoError(t, mc.Get(ctx, "plain", &s))
	assert.Equal(t, "hello", s)

	assert.ErrorIs(t, mc.Get(ctx, "absent", &s), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", 1, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var v int
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	for _, k := range []string{"market:^GSPC:a", "market:^DJI:b", "other:x"} {
		require.NoError(t, mc.Set(ctx, k, 1, time.Minute))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("market:")))

	assert.Equal(t, 1, mc.Len())
	ok, _ := mc.Exists(ctx, "other:x")
	assert.True(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryCleanup(0))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	time.Sleep(time.Millisecond)

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))
	assert.Equal(t, 1, v)
}

func TestLayeredCachePromotesFromL2(t *testing.T) {
	ctx := context.Background()
	l2 := NewMemoryCache(WithMemoryCleanup(0))
	lc := NewLayeredCache(l2, WithLayeredMemorySize(10))
	defer lc.Close()

	require.NoError(t, l2.Set(ctx, "k", point{"2020-01-31", 3}, time.Minute))

	var out point
	require.NoError(t, lc.Get(ctx, "k", &out))
	assert.Equal(t, 3.0, out.Value)
	assert.Equal(t, 1, lc.mem.Len())

	require.NoError(t, lc.DeleteByPattern(ctx, "k*"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &out), ErrCacheMiss)
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "market:^GSPC:1960-01-01", GenerateKeyWithParams("market", "^GSPC", "1960-01-01"))
}
