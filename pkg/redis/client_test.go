package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/storefront-backend/pkg/config"
)

func newMiniClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return Wrap(raw), mr
}

func TestIncrWithTTLStartsWindowOnFirstHit(t *testing.T) {
	ctx := context.Background()
	client, mr := newMiniClient(t)
	key := client.RateLimitKey("login:addr:1.2.3.4")

	for want := int64(1); want <= 3; want++ {
		count, err := client.IncrWithTTL(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}
	assert.Equal(t, time.Minute, mr.TTL("sf:rate_limit:login:addr:1.2.3.4"))

	mr.FastForward(30 * time.Second)
	_, err := client.IncrWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, mr.TTL(key), "later hits do not extend the window")

	mr.FastForward(31 * time.Second)
	count, err := client.IncrWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "window resets after expiry")
}

func TestSetGetDelAndMiss(t *testing.T) {
	ctx := context.Background()
	client, mr := newMiniClient(t)

	key := client.CacheKey("product", "abc")
	require.NoError(t, client.Set(ctx, key, `{"id":"abc"}`, 10*time.Minute))
	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"abc"}`, got)
	assert.Equal(t, 10*time.Minute, mr.TTL(key))

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.True(t, IsMiss(err))

	ok, err := client.SetNX(ctx, "k", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = client.SetNX(ctx, "k", "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.Ping(ctx))
}

func TestZeroClientReportsNotInitialized(t *testing.T) {
	client := &Client{}
	_, err := client.IncrWithTTL(context.Background(), "x", time.Second)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, client.Ping(context.Background()), ErrNotInitialized)
	_, err = client.Get(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.NoError(t, client.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "sf:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "sf:rate_limit:scope", client.RateLimitKey("scope"))
	assert.Equal(t, "sf:cache:product:42", client.CacheKey("product", "42"))
	assert.Equal(t, "sf:cache:product", client.CacheKey("product", ""), "empty parts are skipped")
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:secret@localhost:6380/2", PoolSize: 7})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 3, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, time.Second, opts.DialTimeout)
}
