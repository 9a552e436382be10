package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tokmz/pushgate/pkg/logger"
)

// Config 网关配置
type Config struct {
	// 通过 PREPARE 告知客户端的心跳间隔，服务端不据此断开连接
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`

	// 传输层保活：定时发送 ping，ReadTimeout 内没有任何帧视为断线
	PingInterval time.Duration `mapstructure:"ping_interval"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteWait    time.Duration `mapstructure:"write_wait"`

	MaxMessageSize int64 `mapstructure:"max_message_size"`
	MaxConnections int   `mapstructure:"max_connections"` // 0 表示不限制

	// 单次广播的并发写协程数
	BroadcastWorkers int `mapstructure:"broadcast_workers"`

	Upgrader UpgraderConfig `mapstructure:"upgrader"`

	Metrics     Metrics       `mapstructure:"-"`
	Logger      logger.Logger `mapstructure:"-"`
	Snapshotter Snapshotter   `mapstructure:"-"`
}

// UpgraderConfig Upgrader 配置
type UpgraderConfig struct {
	ReadBufferSize    int           `mapstructure:"read_buffer_size"`
	WriteBufferSize   int           `mapstructure:"write_buffer_size"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
	EnableCompression bool          `mapstructure:"enable_compression"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`   // 白名单，为空时同源检查
	AllowAllOrigins   bool          `mapstructure:"allow_all_origins"` // 仅用于开发环境

	CheckOrigin func(*http.Request) bool `mapstructure:"-"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		HeartbeatInterval: 45 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteWait:         10 * time.Second,
		MaxMessageSize:    64 * 1024,
		MaxConnections:    0,
		BroadcastWorkers:  16,
		Upgrader: UpgraderConfig{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	switch {
	case c.HeartbeatInterval <= 0:
		return invalid("HeartbeatInterval must be positive, got %v", c.HeartbeatInterval)
	case c.PingInterval <= 0:
		return invalid("PingInterval must be positive, got %v", c.PingInterval)
	case c.ReadTimeout <= c.PingInterval:
		return invalid("ReadTimeout (%v) must be greater than PingInterval (%v)", c.ReadTimeout, c.PingInterval)
	case c.WriteWait <= 0:
		return invalid("WriteWait must be positive, got %v", c.WriteWait)
	case c.MaxMessageSize <= 0:
		return invalid("MaxMessageSize must be positive, got %d", c.MaxMessageSize)
	case c.MaxConnections < 0:
		return invalid("MaxConnections must not be negative, got %d", c.MaxConnections)
	case c.BroadcastWorkers <= 0:
		return invalid("BroadcastWorkers must be positive, got %d", c.BroadcastWorkers)
	case c.Upgrader.ReadBufferSize < 0 || c.Upgrader.WriteBufferSize < 0:
		return invalid("Upgrader buffer sizes must not be negative")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return ErrInvalidConfig.WithMessage(fmt.Sprintf(format, args...))
}

// Option 配置选项
type Option func(*Config)

// WithHeartbeatInterval 设置告知客户端的心跳间隔
func WithHeartbeatInterval(d time.Duration) Option {
	return func(c *Config) {
		c.HeartbeatInterval = d
	}
}

// WithPingInterval 设置 ping 间隔
func WithPingInterval(d time.Duration) Option {
	return func(c *Config) {
		c.PingInterval = d
	}
}

// WithReadTimeout 设置读超时
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ReadTimeout = d
	}
}

// WithWriteWait 设置单帧写超时
func WithWriteWait(d time.Duration) Option {
	return func(c *Config) {
		c.WriteWait = d
	}
}

// WithMaxConnections 设置最大连接数
func WithMaxConnections(n int) Option {
	return func(c *Config) {
		c.MaxConnections = n
	}
}

// WithMessageSizeLimit 设置入站消息大小限制
func WithMessageSizeLimit(size int64) Option {
	return func(c *Config) {
		c.MaxMessageSize = size
	}
}

// WithBroadcastWorkers 设置广播并发度
func WithBroadcastWorkers(n int) Option {
	return func(c *Config) {
		c.BroadcastWorkers = n
	}
}

// WithCheckOrigin 设置 Origin 检查函数
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(c *Config) {
		c.Upgrader.CheckOrigin = fn
	}
}

// WithCheckOriginWhitelist 设置 Origin 白名单
func WithCheckOriginWhitelist(origins []string) Option {
	return func(c *Config) {
		c.Upgrader.AllowedOrigins = origins
	}
}

// WithAllowAllOrigins 允许所有来源（仅用于开发环境）
func WithAllowAllOrigins() Option {
	return func(c *Config) {
		c.Upgrader.AllowAllOrigins = true
	}
}

// WithEnableCompression 启用 permessage-deflate
func WithEnableCompression(enable bool) Option {
	return func(c *Config) {
		c.Upgrader.EnableCompression = enable
	}
}

// WithMetrics 设置监控
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithSnapshotter 设置快照序列化器
func WithSnapshotter(s Snapshotter) Option {
	return func(c *Config) {
		c.Snapshotter = s
	}
}

// sameOrigin 默认 Origin 检查
// 没有 Origin 头的非浏览器客户端放行，浏览器请求要求同源
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// whitelist 白名单模式下拒绝空 Origin
func whitelist(origins []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := allowed[r.Header.Get("Origin")]
		return ok
	}
}

// Upgrader WebSocket 升级器
type Upgrader struct {
	upgrader websocket.Upgrader
}

// NewUpgrader 创建升级器
// Origin 检查优先级：CheckOrigin > AllowAllOrigins > AllowedOrigins > 同源
func NewUpgrader(config UpgraderConfig) *Upgrader {
	check := config.CheckOrigin
	switch {
	case check != nil:
	case config.AllowAllOrigins:
		check = func(*http.Request) bool { return true }
	case len(config.AllowedOrigins) > 0:
		check = whitelist(config.AllowedOrigins)
	default:
		check = sameOrigin
	}

	return &Upgrader{
		upgrader: websocket.Upgrader{
			ReadBufferSize:    config.ReadBufferSize,
			WriteBufferSize:   config.WriteBufferSize,
			HandshakeTimeout:  config.HandshakeTimeout,
			CheckOrigin:       check,
			EnableCompression: config.EnableCompression,
		},
	}
}

// Upgrade 升级 HTTP 连接，失败时 gorilla 已经写回了 HTTP 错误
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return u.upgrader.Upgrade(w, r, nil)
}
