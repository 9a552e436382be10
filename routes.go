package pushgate

import (
	"net/http"

	"github.com/tokmz/pushgate/pkg/gateway"
	"github.com/tokmz/pushgate/pkg/relay"
)

// GatewayRoutes 网关相关路由
type GatewayRoutes struct {
	Manager *gateway.Manager `mapstructure:"-"`

	// Path WebSocket 入口，默认 /gateway
	Path string `mapstructure:"path"`
	// AdminToken 保护 POST /broadcast，为空时不校验
	AdminToken string `mapstructure:"admin_token"`
	// RateLimit 按 IP 限制握手频率
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Metrics 为 nil 时不注册 /metrics
	Metrics http.Handler `mapstructure:"-"`
}

// Health /healthz 响应
type Health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Communities int    `json:"communities"`
}

// MountGateway 注册 GET <path>、POST /broadcast、GET /healthz 与 GET /metrics
func (e *Engine) MountGateway(r GatewayRoutes) {
	if r.Path == "" {
		r.Path = "/gateway"
	}
	rg := e.RouterGroup()
	m := r.Manager

	rg.GET(r.Path, func(c *Context) {
		// 握手失败时 gorilla 已写回 HTTP 错误，会话错误由网关记录
		_ = m.HandleConnection(c.Writer(), c.Request())
	}, RateLimit(r.RateLimit, e.log))

	Handle0[relay.Envelope](rg.POST, "/broadcast", func(c *Context, env *relay.Envelope) error {
		if err := env.Validate(); err != nil {
			return err
		}
		env.Deliver(m)
		return nil
	}, AdminAuth(r.AdminToken))

	HandleOnly[Health](rg.GET, "/healthz", func(*Context) (*Health, error) {
		return &Health{
			Status:      "ok",
			Connections: m.ConnectionCount(),
			Communities: m.CommunityCount(),
		}, nil
	})

	if r.Metrics != nil {
		rg.Handle(http.MethodGet, "/metrics", r.Metrics)
	}
}
