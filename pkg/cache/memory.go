package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryCache 基于 go-cache 的进程内缓存
type memoryCache struct {
	cache      *gocache.Cache
	serializer Serializer
	keyPrefix  string
	defaultTTL time.Duration
}

func newMemoryCache(cfg *Config) (Cache, error) {
	return &memoryCache{
		cache:      gocache.New(cfg.Memory.DefaultExpiration, cfg.Memory.CleanupInterval),
		serializer: cfg.Serializer,
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

func (m *memoryCache) buildKey(key string) string {
	return m.keyPrefix + key
}

// Get 获取缓存，未命中返回 ErrCacheNotFound
func (m *memoryCache) Get(ctx context.Context, key string, value any) error {
	data, found := m.cache.Get(m.buildKey(key))
	if !found {
		return ErrCacheNotFound
	}

	bytes, ok := data.([]byte)
	if !ok {
		return ErrCacheSerialization.WithMessage("invalid cache data type")
	}
	if err := m.serializer.Unmarshal(bytes, value); err != nil {
		return ErrCacheSerialization.WithError(err)
	}
	return nil
}

// Set 设置缓存，ttl 为 0 时使用默认 TTL
func (m *memoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	bytes, err := m.serializer.Marshal(value)
	if err != nil {
		return ErrCacheSerialization.WithError(err)
	}
	if ttl == 0 {
		ttl = m.defaultTTL
	}
	m.cache.Set(m.buildKey(key), bytes, ttl)
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		m.cache.Delete(m.buildKey(key))
	}
	return nil
}

func (m *memoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, found := m.cache.Get(m.buildKey(key))
	return found, nil
}

// TTL 获取剩余生存时间，-1 表示永不过期
func (m *memoryCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	_, expiration, found := m.cache.GetWithExpiration(m.buildKey(key))
	if !found {
		return 0, ErrCacheNotFound
	}
	if expiration.IsZero() {
		return -1, nil
	}

	ttl := time.Until(expiration)
	if ttl < 0 {
		return 0, ErrCacheExpired
	}
	return ttl, nil
}

func (m *memoryCache) Ping(ctx context.Context) error {
	return nil
}

func (m *memoryCache) Close() error {
	m.cache.Flush()
	return nil
}

func (m *memoryCache) String() string {
	return fmt.Sprintf("MemoryCache(prefix=%s, items=%d)", m.keyPrefix, m.cache.ItemCount())
}
