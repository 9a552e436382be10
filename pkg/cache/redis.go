package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache Redis 缓存实现
type redisCache struct {
	client     redis.UniversalClient
	serializer Serializer
	keyPrefix  string
	defaultTTL time.Duration
}

// NewRedisClient 按模式创建 Redis 客户端并检测连通性
func NewRedisClient(cfg *RedisConfig) (redis.UniversalClient, error) {
	if cfg == nil {
		return nil, ErrCacheInvalidConfig.WithMessage("redis config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	switch cfg.Mode {
	case RedisCluster:
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addrs,
			Username:     cfg.Username,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	case RedisSentinel:
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.MasterName,
			SentinelAddrs: cfg.Addrs,
			Username:      cfg.Username,
			Password:      cfg.Password,
			DB:            cfg.DB,
			PoolSize:      cfg.PoolSize,
			MinIdleConns:  cfg.MinIdleConns,
			MaxRetries:    cfg.MaxRetries,
			DialTimeout:   cfg.DialTimeout,
			ReadTimeout:   cfg.ReadTimeout,
			WriteTimeout:  cfg.WriteTimeout,
		})
	default:
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, ErrCacheConnection.WithError(err)
	}
	return client, nil
}

func newRedisCache(cfg *Config) (Cache, error) {
	client, err := NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, err
	}
	return newRedisCacheWithClient(client, cfg), nil
}

func newRedisCacheWithClient(client redis.UniversalClient, cfg *Config) *redisCache {
	return &redisCache{
		client:     client,
		serializer: cfg.Serializer,
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
	}
}

func (r *redisCache) buildKey(key string) string {
	return r.keyPrefix + key
}

func (r *redisCache) Get(ctx context.Context, key string, value any) error {
	data, err := r.client.Get(ctx, r.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheNotFound
		}
		return ErrCacheOperation.WithError(err)
	}
	if err := r.serializer.Unmarshal(data, value); err != nil {
		return ErrCacheSerialization.WithError(err)
	}
	return nil
}

func (r *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	bytes, err := r.serializer.Marshal(value)
	if err != nil {
		return ErrCacheSerialization.WithError(err)
	}
	if ttl == 0 {
		ttl = r.defaultTTL
	}
	if err := r.client.Set(ctx, r.buildKey(key), bytes, ttl).Err(); err != nil {
		return ErrCacheOperation.WithError(err)
	}
	return nil
}

func (r *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = r.buildKey(key)
	}
	if err := r.client.Del(ctx, fullKeys...).Err(); err != nil {
		return ErrCacheOperation.WithError(err)
	}
	return nil
}

func (r *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Exists(ctx, r.buildKey(key)).Result()
	if err != nil {
		return false, ErrCacheOperation.WithError(err)
	}
	return count > 0, nil
}

// TTL redis 以 -2 表示不存在，-1 表示永不过期
func (r *redisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, r.buildKey(key)).Result()
	if err != nil {
		return 0, ErrCacheOperation.WithError(err)
	}
	switch ttl {
	case -2:
		return 0, ErrCacheNotFound
	case -1:
		return -1, nil
	}
	return ttl, nil
}

func (r *redisCache) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return ErrCacheConnection.WithError(err)
	}
	return nil
}

func (r *redisCache) Close() error {
	if err := r.client.Close(); err != nil {
		return ErrCacheOperation.WithError(err)
	}
	return nil
}

func (r *redisCache) String() string {
	return fmt.Sprintf("RedisCache(prefix=%s)", r.keyPrefix)
}
