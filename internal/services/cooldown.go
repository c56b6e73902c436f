// internal/services/cooldown.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cooldown suppresses repeated restock requests for the same key within a
// time window. Acquire reports whether the caller may proceed.
type Cooldown interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type MemoryCooldown struct {
	mu    sync.Mutex
	ttl   time.Duration
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryCooldown(ttl time.Duration) *MemoryCooldown {
	return &MemoryCooldown{
		ttl:   ttl,
		until: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (c *MemoryCooldown) Acquire(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if expires, ok := c.until[key]; ok && now.Before(expires) {
		return false, nil
	}
	c.until[key] = now.Add(c.ttl)

	// drop expired keys so the map stays bounded by the active window
	for k, expires := range c.until {
		if !now.Before(expires) {
			delete(c.until, k)
		}
	}
	return true, nil
}

func (c *MemoryCooldown) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.until, key)
	return nil
}

// RedisCooldown shares the window across instances with SET NX.
type RedisCooldown struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCooldown(client *redis.Client, ttl time.Duration) *RedisCooldown {
	return &RedisCooldown{
		client: client,
		ttl:    ttl,
		prefix: "storefront:restock:cooldown:",
	}
}

func (c *RedisCooldown) Acquire(ctx context.Context, key string) (bool, error) {
	return c.client.SetNX(ctx, c.prefix+key, time.Now().UTC().Format(time.RFC3339), c.ttl).Result()
}

func (c *RedisCooldown) Release(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
