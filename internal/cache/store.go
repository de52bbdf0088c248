package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/0xtaosu/meme-memos/internal/config"
)

// Store holds short-lived upstream responses.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// New builds the configured backend. The returned close func is never nil.
func New(cfg config.CacheConfig) (Store, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		return NewMemoryStore(), func() error { return nil }, nil
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, nil, fmt.Errorf("cache.redis_addr is required for the redis backend")
		}
		s := NewRedisStore(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return s, s.Close, nil
	case "none", "off":
		return nil, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}

// Key joins parts into a namespaced cache key, e.g. memo:dexscreener:token:0xabc.
func Key(parts ...string) string {
	return "memo:" + strings.Join(parts, ":")
}
