package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/redis"
)

const (
	cacheScope      = "product"
	defaultCacheTTL = 10 * time.Minute
)

// ErrCacheMiss reports that the product is not cached.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the read-through store in front of product detail reads.
type Cache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Set(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RedisCache stores product JSON under sf:cache:product:<id>.
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{client: client, baseTTL: ttl}
}

func (c *RedisCache) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	raw, err := c.client.Get(ctx, c.client.CacheKey(cacheScope, id.String()))
	if redis.IsMiss(err) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var product models.Product
	if err := json.Unmarshal([]byte(raw), &product); err != nil {
		return nil, fmt.Errorf("unmarshal product failed: %w", err)
	}
	return &product, nil
}

// Set writes the product with the base TTL plus up to 20% jitter so hot keys do not expire together.
func (c *RedisCache) Set(ctx context.Context, product *models.Product) error {
	payload, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("marshal product failed: %w", err)
	}
	ttl := c.baseTTL + jitter(c.baseTTL/5)
	if err := c.client.Set(ctx, c.client.CacheKey(cacheScope, product.ID.String()), string(payload), ttl); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Del(ctx, c.client.CacheKey(cacheScope, id.String())); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func jitter(window time.Duration) time.Duration {
	if window <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(window)))
}
