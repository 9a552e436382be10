package pushgate

import (
	"crypto/subtle"
	"net"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/tokmz/pushgate/pkg/logger"
)

// LoggerConfig 请求日志配置
type LoggerConfig struct {
	Logger       logger.Logger
	SkipFunc     func(c *Context) bool
	ExcludePaths []string
}

// Logger 请求日志中间件，按状态码选择级别
// WebSocket 升级后的请求在会话结束时才会记录，状态码为 101
func Logger(log logger.Logger, cfgs ...*LoggerConfig) HandlerFunc {
	cfg := &LoggerConfig{Logger: log}
	if len(cfgs) > 0 && cfgs[0] != nil {
		cfg = cfgs[0]
	}
	if cfg.Logger == nil {
		cfg.Logger = log
	}
	skip := make(map[string]struct{}, len(cfg.ExcludePaths))
	for _, p := range cfg.ExcludePaths {
		skip[p] = struct{}{}
	}

	return func(c *Context) {
		if _, ok := skip[c.Request().URL.Path]; ok || (cfg.SkipFunc != nil && cfg.SkipFunc(c)) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer().Status()
		fields := []zap.Field{
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		ctx := c.RequestContext()
		switch {
		case status >= 500:
			cfg.Logger.ErrorContext(ctx, "request", fields...)
		case status >= 400:
			cfg.Logger.WarnContext(ctx, "request", fields...)
		default:
			cfg.Logger.InfoContext(ctx, "request", fields...)
		}
	}
}

// Recovery panic 恢复，响应统一格式的 500
func Recovery(log logger.Logger) HandlerFunc {
	return func(c *Context) {
		defer func() {
			if err := recover(); err != nil {
				if isBrokenPipe(err) {
					log.Warn("broken pipe", zap.Any("error", err), zap.String("path", c.Request().URL.Path))
					c.Abort()
					return
				}
				log.Error("panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request().Method),
					zap.String("path", c.Request().URL.Path),
					zap.String("client_ip", c.ClientIP()),
					zap.String("stack", string(debug.Stack())),
				)
				c.AbortWithError(ErrServer)
			}
		}()
		c.Next()
	}
}

func isBrokenPipe(err any) bool {
	ne, ok := err.(*net.OpError)
	if !ok {
		return false
	}
	se, ok := ne.Err.(*os.SyscallError)
	if !ok {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}

// AdminAuth 校验 Authorization: Bearer <token>，token 为空时不校验
func AdminAuth(token string) HandlerFunc {
	return func(c *Context) {
		if token == "" {
			c.Next()
			return
		}
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithError(ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// RateLimitConfig 令牌桶限流配置
type RateLimitConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"` // <= 0 表示不限流
	Burst             int           `mapstructure:"burst"`
	BucketExpiry      time.Duration `mapstructure:"bucket_expiry"` // 桶无访问后的过期时间
}

// DefaultRateLimitConfig 默认不限流
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Burst: 20, BucketExpiry: 10 * time.Minute}
}

type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

func (b *tokenBucket) allow(rate float64, burst int, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = min(float64(burst), b.tokens+now.Sub(b.lastRefill).Seconds()*rate)
	b.lastRefill = now
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// RateLimit 按客户端 IP 限流，桶存放在 go-cache 中按过期时间自动清理
// 用于 WebSocket 握手时只限制建立连接的频率
func RateLimit(cfg RateLimitConfig, log logger.Logger) HandlerFunc {
	if cfg.RequestsPerSecond <= 0 {
		return func(c *Context) { c.Next() }
	}
	if cfg.Burst <= 0 {
		cfg.Burst = max(1, int(cfg.RequestsPerSecond))
	}
	if cfg.BucketExpiry <= 0 {
		cfg.BucketExpiry = 10 * time.Minute
	}
	buckets := gocache.New(cfg.BucketExpiry, cfg.BucketExpiry)
	var mu sync.Mutex

	bucket := func(key string) *tokenBucket {
		mu.Lock()
		defer mu.Unlock()
		if v, ok := buckets.Get(key); ok {
			b := v.(*tokenBucket)
			buckets.SetDefault(key, b)
			return b
		}
		b := &tokenBucket{tokens: float64(cfg.Burst), lastRefill: time.Now()}
		buckets.SetDefault(key, b)
		return b
	}

	return func(c *Context) {
		key := c.ClientIP()
		if !bucket(key).allow(cfg.RequestsPerSecond, cfg.Burst, time.Now()) {
			log.Warn("rate limit exceeded", zap.String("client_ip", key), zap.String("path", c.Request().URL.Path))
			c.AbortWithError(ErrTooMany)
			return
		}
		c.Next()
	}
}
