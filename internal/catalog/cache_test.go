package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*LevelCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLevelCache(client, time.Minute, nil), mr
}

func TestLevelCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, 1)
	require.False(t, ok)

	levels := []PackagingLevel{
		{ID: 10, ProductID: 1, LevelOrder: 1, BaseUnitQty: dec("1"), UnitOfMeasure: "tablet", CanDispense: true},
		{ID: 11, ProductID: 1, LevelOrder: 2, BaseUnitQty: dec("10"), UnitOfMeasure: "strip"},
	}
	cache.Set(ctx, 1, levels)

	got, ok := cache.Get(ctx, 1)
	require.True(t, ok)
	require.Len(t, got, 2)
	require.True(t, got[1].BaseUnitQty.Equal(dec("10")))
	require.Equal(t, "tablet", got[0].UnitOfMeasure)
}

func TestLevelCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, 7, []PackagingLevel{{ID: 1, ProductID: 7, LevelOrder: 1, BaseUnitQty: dec("1")}})
	_, ok := cache.Get(ctx, 7)
	require.True(t, ok)

	cache.Invalidate(ctx, 7)
	_, ok = cache.Get(ctx, 7)
	require.False(t, ok)
}

func TestLevelCacheDisabled(t *testing.T) {
	var cache *LevelCache
	ctx := context.Background()

	// Nil cache must be safe for every call.
	cache.Set(ctx, 1, nil)
	cache.Invalidate(ctx, 1)
	_, ok := cache.Get(ctx, 1)
	require.False(t, ok)
}
