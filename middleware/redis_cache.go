package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrek82/torm/core"
)

// RedisCacheMiddleware caches select results in Redis. It follows the same
// contract as MemoryCacheMiddleware; the per-table generation lives in the
// key "torm:gen:<table>" so that every process sharing the Redis instance
// sees the invalidation.
type RedisCacheMiddleware struct {
	Client     redis.UniversalClient
	DefaultTTL time.Duration

	owned bool
}

// NewRedisCache creates a cache on an existing client. Shutdown leaves the
// client open.
func NewRedisCache(client redis.UniversalClient, defaultTTL time.Duration) *RedisCacheMiddleware {
	return &RedisCacheMiddleware{Client: client, DefaultTTL: defaultTTL}
}

// NewRedisCacheFromOptions creates a cache with its own client, closed on Shutdown.
func NewRedisCacheFromOptions(opt *redis.Options, defaultTTL time.Duration) *RedisCacheMiddleware {
	return &RedisCacheMiddleware{
		Client:     redis.NewClient(opt),
		DefaultTTL: defaultTTL,
		owned:      true,
	}
}

func (m *RedisCacheMiddleware) Name() string {
	return "RedisCache"
}

func (m *RedisCacheMiddleware) Init(db *core.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Client.Ping(ctx).Err()
}

func (m *RedisCacheMiddleware) Shutdown() error {
	if m.owned {
		return m.Client.Close()
	}
	return nil
}

func (m *RedisCacheMiddleware) Process(ctx context.Context, stmt *core.Statement, next core.Handler) (*core.Result, error) {
	if stmt.Kind.Writes() {
		res, err := next(ctx, stmt)
		if ierr := m.Client.Incr(ctx, generationKey(stmt.Table)).Err(); ierr != nil && err == nil {
			// the write stands; the error reports that cached reads may be stale
			return res, fmt.Errorf("torm: invalidate %s: %w", stmt.Table, ierr)
		}
		return res, err
	}
	if stmt.Kind != core.KindSelect {
		return next(ctx, stmt)
	}
	ttl, ok := cacheTTL(ctx, m.DefaultTTL)
	if !ok {
		return next(ctx, stmt)
	}

	gen, err := m.Client.Get(ctx, generationKey(stmt.Table)).Uint64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return next(ctx, stmt)
	}
	key, err := cacheKey(stmt, gen)
	if err != nil {
		return next(ctx, stmt)
	}

	if data, err := m.Client.Get(ctx, key).Bytes(); err == nil {
		if res, err := decodeResult(data); err == nil {
			return res, nil
		}
	}

	res, err := next(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if data, err := encodeResult(res); err == nil {
		// ttl 0 means no expiration for redis as well
		m.Client.Set(ctx, key, data, ttl)
	}
	return res, nil
}
