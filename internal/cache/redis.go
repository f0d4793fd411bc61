package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"pos-backend/internal/config"
)

// Cache wraps a Redis client. A nil client turns every call into a no-op so
// the service keeps working when Redis is down.
type Cache struct {
	client *redis.Client
}

// New connects to Redis. On failure it returns a disabled cache and the
// connection error.
func New(ctx context.Context, cfg *config.Config) (*Cache, error) {
	if !cfg.Redis.Enabled {
		return &Cache{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return &Cache{}, err
	}
	return &Cache{client: client}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Enabled() bool { return c != nil && c.client != nil }

func (c *Cache) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.client
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *Cache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.WithError(err).WithField("key", key).Debug("[Cache] Set failed")
	}
}

// InvalidateBranch drops every cached sale list and report of a branch.
func (c *Cache) InvalidateBranch(ctx context.Context, branchID string) {
	c.InvalidatePattern(ctx, "sales:"+branchID+":*")
	c.InvalidatePattern(ctx, "reports:"+branchID+":*")
}

// InvalidatePattern deletes all keys matching pattern using SCAN.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) {
	if !c.Enabled() {
		return
	}
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.WithError(err).WithField("pattern", pattern).Warn("[Cache] Scan failed")
		return
	}
	if len(keys) > 0 {
		c.client.Del(ctx, keys...)
	}
}

func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
