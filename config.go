package pushgate

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// ServerConfig HTTP 服务器配置
// WriteTimeout 只作用于普通请求，升级后的 WebSocket 连接由网关自行设置写超时
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

// ShutdownConfig 关机配置
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`

	// BeforeShutdown 在 http.Server.Shutdown 之前执行，网关在这里关闭所有 WebSocket
	BeforeShutdown func(ctx context.Context) `mapstructure:"-"`
	AfterShutdown  func()                    `mapstructure:"-"`
}

// Config 应用配置
type Config struct {
	Mode           string         `mapstructure:"mode"` // debug, release, test
	Server         ServerConfig   `mapstructure:",squash"`
	Shutdown       ShutdownConfig `mapstructure:"shutdown"`
	TrustedProxies []string       `mapstructure:"trusted_proxies"`
	Banner         bool           `mapstructure:"banner"`
}

// Option 配置选项函数
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		Mode: gin.ReleaseMode,
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		Shutdown: ShutdownConfig{
			Timeout: 10 * time.Second,
		},
		Banner: true,
	}
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return defaultConfig()
}

// WithConfig 整体替换配置，之后的选项仍会生效
func WithConfig(cfg *Config) Option {
	return func(c *Config) {
		if cfg != nil {
			*c = *cfg
		}
	}
}

// WithMode 设置运行模式
func WithMode(mode string) Option {
	return func(c *Config) {
		c.Mode = mode
	}
}

// WithAddr 设置监听地址
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Server.Addr = addr
	}
}

// WithReadTimeout 设置读取超时
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Server.ReadTimeout = timeout
	}
}

// WithWriteTimeout 设置写入超时
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Server.WriteTimeout = timeout
	}
}

// WithShutdownTimeout 设置关机超时时间
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Shutdown.Timeout = timeout
	}
}

// WithBeforeShutdown 设置关机前回调
func WithBeforeShutdown(fn func(ctx context.Context)) Option {
	return func(c *Config) {
		c.Shutdown.BeforeShutdown = fn
	}
}

// WithAfterShutdown 设置关机后回调
func WithAfterShutdown(fn func()) Option {
	return func(c *Config) {
		c.Shutdown.AfterShutdown = fn
	}
}

// WithTrustedProxies 设置信任的代理
func WithTrustedProxies(proxies ...string) Option {
	return func(c *Config) {
		c.TrustedProxies = proxies
	}
}

// WithBanner 是否在启动时打印 banner 与路由表
func WithBanner(enable bool) Option {
	return func(c *Config) {
		c.Banner = enable
	}
}
