package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache 缓存接口
// 网关只用它缓存 token -> user_id 的解析结果
type Cache interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
	Close() error
}

// Serializer 值的编解码，Redis 后端存储字节，内存后端同样经过编码以隔离调用方的修改
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONSerializer 默认编解码
type JSONSerializer struct{}

func (*JSONSerializer) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (*JSONSerializer) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// New 创建缓存实例
func New(cfg *Config) (Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Serializer == nil {
		cfg.Serializer = &JSONSerializer{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		c   Cache
		err error
	)
	switch cfg.Driver {
	case DriverRedis:
		c, err = newRedisCache(cfg)
	default:
		c, err = newMemoryCache(cfg)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Tracing {
		c = NewTracing(c)
	}
	return c, nil
}

// NewWithOptions 使用 Options 模式创建缓存实例
func NewWithOptions(opts ...Option) (Cache, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return New(cfg)
}
