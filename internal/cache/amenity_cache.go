package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/greenvalley/society-portal-backend/internal/config"
	"github.com/greenvalley/society-portal-backend/internal/models"
)

// catalogKey holds the resident-facing amenity list (status <> closed)
const catalogKey = "greenvalley:amenities:catalog"

// AmenityCache caches the resident amenity catalog. Get reports a miss with ok=false.
type AmenityCache interface {
	GetCatalog(ctx context.Context) (amenities []models.Amenity, ok bool, err error)
	SetCatalog(ctx context.Context, amenities []models.Amenity) error
	InvalidateCatalog(ctx context.Context) error
	Close() error
}

// New returns a Redis-backed cache, or a no-op cache when REDIS_ADDR is empty
func New(cfg config.RedisConfig) (AmenityCache, error) {
	if cfg.Addr == "" {
		return NoopCache{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCache(client, cfg.CatalogTTL), nil
}

// RedisCache stores the catalog as a JSON blob with a TTL
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing client
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) GetCatalog(ctx context.Context) ([]models.Amenity, bool, error) {
	raw, err := c.client.Get(ctx, catalogKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read catalog cache: %w", err)
	}

	var amenities []models.Amenity
	if err := json.Unmarshal(raw, &amenities); err != nil {
		// Corrupt entry: treat as a miss and let the caller repopulate
		return nil, false, nil
	}
	return amenities, true, nil
}

func (c *RedisCache) SetCatalog(ctx context.Context, amenities []models.Amenity) error {
	raw, err := json.Marshal(amenities)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := c.client.Set(ctx, catalogKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write catalog cache: %w", err)
	}
	return nil
}

func (c *RedisCache) InvalidateCatalog(ctx context.Context) error {
	if err := c.client.Del(ctx, catalogKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate catalog cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NoopCache always misses
type NoopCache struct{}

func (NoopCache) GetCatalog(context.Context) ([]models.Amenity, bool, error) {
	return nil, false, nil
}

func (NoopCache) SetCatalog(context.Context, []models.Amenity) error { return nil }

func (NoopCache) InvalidateCatalog(context.Context) error { return nil }

func (NoopCache) Close() error { return nil }
