package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCacheService(client, time.Minute), mr
}

type entry struct {
	SKU   string `json:"sku"`
	Price int64  `json:"price"`
}

func TestCacheService(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestCache(t)

	key := "portal:catalog:merchant:7"

	var got []entry
	found, err := s.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, key, []entry{{SKU: "BPC-157", Price: 4500}}))
	found, err = s.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(4500), got[0].Price)

	mr.FastForward(2 * time.Minute)
	found, err = s.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)

	ok, err := s.SetNX(ctx, "idem:1", "first", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.SetNX(ctx, "idem:1", "second", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.HealthCheck(ctx))
}

func TestDeleteMany(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestCache(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("portal:catalog:merchant:%d", i), i))
	}
	require.NoError(t, s.Set(ctx, "other:key", 1))

	require.NoError(t, s.DeleteMany(ctx, "portal:catalog:*"))
	assert.Equal(t, []string{"other:key"}, mr.Keys())
}
