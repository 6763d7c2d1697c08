package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"edgeproof/domain/core"
	apperrors "edgeproof/internal/errors"
	"edgeproof/ports"
)

const redisPrefix = "edgeproof:rc:"

// Redis shares cached results between processes
type Redis struct {
	c *redis.Client
}

var _ ports.ResultCache = (*Redis)(nil)

func NewRedis(addr string, db int) *Redis {
	return &Redis{c: redis.NewClient(&redis.Options{Addr: addr, DB: db})}
}

// NewRedisWithClient wraps an existing client
func NewRedisWithClient(c *redis.Client) *Redis {
	return &Redis{c: c}
}

func (r *Redis) Get(ctx context.Context, key core.Hash) ([]byte, bool, error) {
	val, err := r.c.Get(ctx, redisPrefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.CacheError("redis", err)
	}
	return val, true, nil
}

// Set writes value; ttl <= 0 stores without expiry
func (r *Redis) Set(ctx context.Context, key core.Hash, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.c.Set(ctx, redisPrefix+key.String(), value, ttl).Err(); err != nil {
		return apperrors.CacheError("redis", err)
	}
	return nil
}

// Ping checks connectivity
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.c.Ping(ctx).Err(); err != nil {
		return apperrors.CacheError("redis", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.c.Close()
}
