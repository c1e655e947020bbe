package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/gistblog/gistfeed/pkg/config"
	"github.com/gistblog/gistfeed/pkg/logging"
)

var (
	// ErrCacheDisabled is returned when cache operations are attempted but cache is disabled
	ErrCacheDisabled = errors.New("cache is disabled")
	// ErrCacheUnavailable wraps every transport or server failure of the store
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// SetOptions tunes a Set call
type SetOptions struct {
	// Expire is the key TTL; zero keeps the key until overwritten
	Expire time.Duration
}

// Cache wraps a Redis client and owns its single connection pool
type Cache struct {
	client *redis.Client
	logger *zap.Logger
}

// New creates a Redis cache client for url.
// A malformed URL is a configuration error. An unreachable server is only
// logged; the client reconnects on use.
func New(url string) (*Cache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse Redis URL: %v", config.ErrConfiguration, err)
	}

	logger := logging.WithComponent("cache").With(zap.String("addr", opt.Addr), zap.Int("db", opt.DB))
	c := &Cache{
		client: redis.NewClient(opt),
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis not reachable, continuing without warm connection", zap.Error(err))
	} else {
		logger.Info("Redis connection established")
	}

	return c, nil
}

// Get retrieves a value from cache. A missing key yields ok=false and no error.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if c == nil || c.client == nil {
		return "", false, ErrCacheDisabled
	}
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, c.unavailable("GET", key, err)
	}
	return val, true, nil
}

// Set stores a value, optionally with an expiry
func (c *Cache) Set(ctx context.Context, key, value string, opts *SetOptions) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	var ttl time.Duration
	if opts != nil && opts.Expire > 0 {
		ttl = opts.Expire
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return c.unavailable("SET", key, err)
	}
	return nil
}

// AddToSet adds values to the set at key and returns the set cardinality afterwards
func (c *Cache) AddToSet(ctx context.Context, key string, values ...string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, ErrCacheDisabled
	}
	if len(values) == 0 {
		n, err := c.client.SCard(ctx, key).Result()
		if err != nil {
			return 0, c.unavailable("SCARD", key, err)
		}
		return n, nil
	}

	members := make([]interface{}, len(values))
	for i, v := range values {
		members[i] = v
	}

	var card *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, members...)
		card = pipe.SCard(ctx, key)
		return nil
	})
	if err != nil {
		return 0, c.unavailable("SADD", key, err)
	}
	return card.Val(), nil
}

// MembersOf returns the members of the set at key in no particular order
func (c *Cache) MembersOf(ctx context.Context, key string) ([]string, error) {
	if c == nil || c.client == nil {
		return nil, ErrCacheDisabled
	}
	members, err := c.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, c.unavailable("SMEMBERS", key, err)
	}
	return members, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Health checks Redis health
func (c *Cache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (c *Cache) unavailable(op, key string, err error) error {
	c.logger.Debug("Cache command failed", zap.String("op", op), zap.String("key", key), zap.Error(err))
	return fmt.Errorf("%w: %s %s: %v", ErrCacheUnavailable, op, key, err)
}
