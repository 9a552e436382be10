package cache

import (
	"time"
)

// DriverType 驱动类型
type DriverType string

const (
	DriverRedis  DriverType = "redis"
	DriverMemory DriverType = "memory"
)

// RedisMode Redis 模式
type RedisMode string

const (
	RedisStandalone RedisMode = "standalone"
	RedisCluster    RedisMode = "cluster"
	RedisSentinel   RedisMode = "sentinel"
)

// Config 缓存配置
type Config struct {
	Driver     DriverType    `mapstructure:"driver"`
	Redis      *RedisConfig  `mapstructure:"redis"`
	Memory     *MemoryConfig `mapstructure:"memory"`
	KeyPrefix  string        `mapstructure:"key_prefix"` // 键前缀
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	Tracing    bool          `mapstructure:"tracing"` // 为每次操作创建 span

	Serializer Serializer `mapstructure:"-"`
}

// RedisConfig Redis 配置
// 同时被 relay 的 redis 订阅源复用
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`  // 单机
	Addrs        []string      `mapstructure:"addrs"` // 集群/哨兵
	Mode         RedisMode     `mapstructure:"mode"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MasterName   string        `mapstructure:"master_name"` // 哨兵模式
}

// MemoryConfig 内存缓存配置
type MemoryConfig struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Driver:     DriverMemory,
		Serializer: &JSONSerializer{},
		KeyPrefix:  "pushgate:",
		DefaultTTL: 5 * time.Minute,
		Memory:     DefaultMemoryConfig(),
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		Mode:         RedisStandalone,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// DefaultMemoryConfig 返回默认 Memory 配置
func DefaultMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		DefaultExpiration: 5 * time.Minute,
		CleanupInterval:   10 * time.Minute,
	}
}

// Option 配置选项
type Option func(*Config)

// WithRedis 使用 Redis 驱动
func WithRedis(cfg *RedisConfig) Option {
	return func(c *Config) {
		c.Driver = DriverRedis
		c.Redis = cfg
	}
}

// WithMemory 使用内存驱动
func WithMemory(cfg *MemoryConfig) Option {
	return func(c *Config) {
		c.Driver = DriverMemory
		c.Memory = cfg
	}
}

// WithSerializer 设置序列化器
func WithSerializer(s Serializer) Option {
	return func(c *Config) {
		c.Serializer = s
	}
}

// WithKeyPrefix 设置键前缀
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) {
		c.KeyPrefix = prefix
	}
}

// WithDefaultTTL 设置默认 TTL
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Config) {
		c.DefaultTTL = ttl
	}
}

// WithTracing 开启链路追踪
func WithTracing() Option {
	return func(c *Config) {
		c.Tracing = true
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverMemory:
		if c.Memory == nil {
			c.Memory = DefaultMemoryConfig()
		}
	case DriverRedis:
		if c.Redis == nil {
			return ErrCacheInvalidConfig.WithMessage("redis config is required")
		}
		return c.Redis.Validate()
	default:
		return ErrCacheInvalidConfig.WithMessage("invalid driver type: " + string(c.Driver))
	}
	return nil
}

// Validate 验证 Redis 配置
func (r *RedisConfig) Validate() error {
	switch r.Mode {
	case RedisStandalone, "":
		if r.Addr == "" {
			return ErrCacheInvalidConfig.WithMessage("redis addr is required for standalone mode")
		}
	case RedisCluster:
		if len(r.Addrs) == 0 {
			return ErrCacheInvalidConfig.WithMessage("redis cluster requires addrs")
		}
	case RedisSentinel:
		if len(r.Addrs) == 0 {
			return ErrCacheInvalidConfig.WithMessage("redis sentinel requires at least 1 sentinel node")
		}
		if r.MasterName == "" {
			return ErrCacheInvalidConfig.WithMessage("redis sentinel requires master name")
		}
	default:
		return ErrCacheInvalidConfig.WithMessage("invalid redis mode: " + string(r.Mode))
	}
	return nil
}
