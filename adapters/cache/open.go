package cache

import (
	"context"

	"edgeproof/internal/config"
	"edgeproof/ports"
)

// Open builds the cache backend named in cfg. The returned close function
// is never nil. CacheNone yields a nil cache, which disables caching.
func Open(ctx context.Context, cfg config.CacheConfig) (ports.ResultCache, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.CacheNone:
		return nil, noop, nil
	case config.CacheBadger:
		b, err := OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, noop, err
		}
		return b, b.Close, nil
	case config.CacheRedis:
		r := NewRedis(cfg.RedisAddr, cfg.RedisDB)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, noop, err
		}
		return r, r.Close, nil
	default:
		return NewMemory(), noop, nil
	}
}
