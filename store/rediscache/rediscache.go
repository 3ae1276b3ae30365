// Package rediscache implements ledger.StockCache on Redis.
//
// Only single-product stock figures are cached. Entries are written after a
// ledger recompute and deleted after every commit that touches the product;
// the TTL bounds how long a value can outlive a missed invalidation.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/warp/agro-ledger/ledger"
)

const DefaultTTL = 5 * time.Minute

type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ ledger.StockCache = (*Cache)(nil)

// New wraps an existing client. A non-positive ttl selects DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl, prefix: "stock:"}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr string, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return New(client, ttl), nil
}

func (c *Cache) key(p ledger.ProductID) string {
	return c.prefix + string(p)
}

func (c *Cache) Get(ctx context.Context, product ledger.ProductID) (decimal.Decimal, bool, error) {
	s, err := c.client.Get(ctx, c.key(product)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		// Unreadable entry: treat as a miss, the next Set overwrites it.
		return decimal.Zero, false, nil
	}
	return d, true, nil
}

func (c *Cache) Set(ctx context.Context, product ledger.ProductID, qty decimal.Decimal) error {
	return c.client.Set(ctx, c.key(product), qty.String(), c.ttl).Err()
}

func (c *Cache) Invalidate(ctx context.Context, products ...ledger.ProductID) error {
	if len(products) == 0 {
		return nil
	}
	keys := make([]string, len(products))
	for i, p := range products {
		keys[i] = c.key(p)
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
