// Package redis provides the push-based latest-price cache backed by Redis.
// The streaming market-data client writes into it; the price oracle reads.
package redis

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Prices older than this are considered stale and treated as a miss.
const defaultPriceTTL = 2 * time.Minute

// PriceCacheConfig configures the Redis price cache.
type PriceCacheConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // 0 = defaultPriceTTL
}

// PriceCache stores the most recent traded price per symbol under a TTL'd
// key, so a dead feed degrades into cache misses rather than stale reads.
type PriceCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// Client returns the underlying Redis client for health checks.
func (c *PriceCache) Client() *goredis.Client { return c.client }

// NewPriceCache creates a PriceCache and pings the server.
func NewPriceCache(cfg PriceCacheConfig) (*PriceCache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultPriceTTL
	}

	log.Printf("[redis] price cache connected to %s", cfg.Addr)
	return &PriceCache{client: client, ttl: ttl}, nil
}

func priceKey(symbol string) string {
	return "price:latest:" + symbol
}

// SetLastPrice records the latest price for a symbol.
func (c *PriceCache) SetLastPrice(ctx context.Context, symbol string, price float64) error {
	return c.client.Set(ctx, priceKey(symbol), strconv.FormatFloat(price, 'f', -1, 64), c.ttl).Err()
}

// GetLastPrice returns the cached price. ok is false on a miss or an expired
// key.
func (c *PriceCache) GetLastPrice(ctx context.Context, symbol string) (float64, bool, error) {
	val, err := c.client.Get(ctx, priceKey(symbol)).Result()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get %s: %w", priceKey(symbol), err)
	}

	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis parse price %q: %w", val, err)
	}
	return price, true, nil
}

// Close releases the Redis connection.
func (c *PriceCache) Close() error {
	return c.client.Close()
}
