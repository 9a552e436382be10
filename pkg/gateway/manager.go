package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tokmz/pushgate/pkg/directory"
	"github.com/tokmz/pushgate/pkg/errors"
	"github.com/tokmz/pushgate/pkg/logger"
	"github.com/tokmz/pushgate/pkg/tracing"
)

// Manager 网关管理器
// 对外只暴露 HandleConnection、Broadcast、BroadcastAll 以及生命周期方法
type Manager struct {
	config   *Config
	registry *Registry
	auth     *Authenticator
	upgrader *Upgrader
	events   *EventBus
	snapshot Snapshotter
	metrics  Metrics
	log      logger.Logger

	// 生命周期
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	active atomic.Int64
}

// NewManager 创建管理器
func NewManager(resolver UserResolver, dir Directory, opts ...Option) (*Manager, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	return NewManagerWithConfig(config, resolver, dir)
}

// NewManagerWithConfig 使用完整配置创建管理器
func NewManagerWithConfig(config *Config, resolver UserResolver, dir Directory) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if resolver == nil || dir == nil {
		return nil, ErrInvalidConfig.WithMessage("resolver and directory are required")
	}
	if config.Metrics == nil {
		config.Metrics = NoopMetrics{}
	}
	if config.Logger == nil {
		config.Logger = logger.NewNop()
	}
	if config.Snapshotter == nil {
		config.Snapshotter = directory.NewSnapshot()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:   config,
		registry: NewRegistry(),
		auth:     NewAuthenticator(resolver, dir),
		upgrader: NewUpgrader(config.Upgrader),
		events:   NewEventBus(),
		snapshot: config.Snapshotter,
		metrics:  config.Metrics,
		log:      config.Logger.Named("gateway"),
		ctx:      ctx,
		cancel:   cancel,
	}
	m.setupEventHandlers()
	return m, nil
}

// HandleConnection 升级连接并运行会话，阻塞到会话结束
// 拒绝连接时返回对应错误，正常结束返回 nil
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	t, err := m.upgrader.Upgrade(w, r)
	if err != nil {
		m.log.Debug("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return err
	}
	return m.Serve(r.Context(), t, r.URL.Query())
}

// ServeHTTP 实现 http.Handler
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = m.HandleConnection(w, r)
}

// Serve 在已升级的连接上完成鉴权与会话，query 须包含 token 与 guild_id
func (m *Manager) Serve(ctx context.Context, t Transport, query url.Values) error {
	remote := addrString(t.RemoteAddr())
	if err := m.admit(); err != nil {
		m.reject(t, websocket.CloseTryAgainLater, err)
		return err
	}
	defer m.release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	ctx, span := tracing.StartSpan(ctx, "gateway.Connect")
	if !query.Has("token") || !query.Has("guild_id") {
		tracing.RecordError(span, ErrMissingParams)
		span.End()
		m.reject(t, websocket.CloseUnsupportedData, ErrMissingParams)
		return ErrMissingParams
	}

	c, member, err := m.auth.Verify(ctx, query.Get("token"), query.Get("guild_id"))
	if err != nil {
		tracing.RecordError(span, err)
		span.End()
		m.log.WarnContext(ctx, fmt.Sprintf("verification for %s failed", remote), zap.Error(err))
		m.reject(t, websocket.CloseUnsupportedData, err)
		return err
	}
	span.End()

	conn := newConn(t, c.ID, member.UserID, m.config.WriteWait)
	conn.setState(StateAuthenticated)
	newSession(m, conn, c, member).run(ctx)
	return nil
}

// admit 关闭后或超过连接上限时拒绝
func (m *Manager) admit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if limit := m.config.MaxConnections; limit > 0 && m.active.Load() >= int64(limit) {
		return ErrTooManyConnections
	}
	m.active.Add(1)
	m.wg.Add(1)
	return nil
}

func (m *Manager) release() {
	m.active.Add(-1)
	m.wg.Done()
}

// reject 以关闭帧告知拒绝原因
func (m *Manager) reject(t Transport, code int, err error) {
	reason := "internal error"
	if e, ok := errors.From(err); ok {
		reason = e.Message
	}
	rejectTransport(t, code, reason, m.config.WriteWait)
	m.events.Publish(Event{Type: EventRejected, Reason: rejectLabel(err)})
}

func rejectLabel(err error) string {
	switch {
	case errors.Is(err, ErrMissingParams):
		return RejectMissingParams
	case errors.Is(err, ErrInvalidParams):
		return RejectInvalidParams
	case errors.Is(err, ErrTokenInvalid):
		return RejectTokenInvalid
	case errors.Is(err, ErrNotMember):
		return RejectNotMember
	case errors.Is(err, ErrTooManyConnections):
		return RejectTooMany
	case errors.Is(err, ErrManagerClosed):
		return RejectShuttingDown
	}
	return RejectInternal
}

// Shutdown 通知所有会话以 CloseGoingAway 关闭并等待结束，之后的新连接被拒绝
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe 订阅连接事件
func (m *Manager) Subscribe(t EventType, h EventHandler) {
	m.events.Subscribe(t, h)
}

// ConnectionCount 已注册的连接数
func (m *Manager) ConnectionCount() int {
	return m.registry.Count()
}

// CommunityCount 有连接的社区数
func (m *Manager) CommunityCount() int {
	return m.registry.CommunityCount()
}

func (m *Manager) setupEventHandlers() {
	m.events.onPanic = func(e Event, r any) {
		m.log.Error("event handler panic", zap.String("event", string(e.Type)), zap.Any("panic", r))
	}

	gauges := func(Event) { m.updateGauges() }
	m.events.Subscribe(EventConnected, gauges)
	m.events.Subscribe(EventDisconnected, gauges)
	m.events.Subscribe(EventRejected, func(e Event) {
		m.metrics.IncRejections(e.Reason)
	})
}

// updateGauges 按注册表当前状态刷新连接数与社区数
func (m *Manager) updateGauges() {
	m.metrics.SetConnections(m.registry.Count())
	m.metrics.SetCommunities(m.registry.CommunityCount())
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
