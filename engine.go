package pushgate

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tokmz/pushgate/pkg/logger"
)

// Engine HTTP 引擎
type Engine struct {
	config *Config
	engine *gin.Engine
	server *http.Server
	log    logger.Logger
}

// New 创建 Engine，只带 Recovery 中间件
func New(log logger.Logger, opts ...Option) *Engine {
	config := defaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if log == nil {
		log = logger.NewNop()
	}

	// gin.SetMode 是全局状态
	gin.SetMode(config.Mode)
	silenceGin()

	ginEngine := gin.New()
	e := &Engine{
		config: config,
		engine: ginEngine,
		log:    log.Named("http"),
	}
	e.Use(Recovery(e.log))

	if config.TrustedProxies != nil {
		if err := ginEngine.SetTrustedProxies(config.TrustedProxies); err != nil {
			e.log.Warn("set trusted proxies failed", zap.Error(err))
		}
	}
	return e
}

// Use 注册全局中间件
func (e *Engine) Use(middlewares ...HandlerFunc) {
	e.engine.Use(WrapMiddlewares(middlewares...)...)
}

// UseGin 注册原生 gin 中间件
func (e *Engine) UseGin(middlewares ...gin.HandlerFunc) {
	e.engine.Use(middlewares...)
}

// Group 返回路由组
func (e *Engine) Group(path string, middlewares ...HandlerFunc) *RouterGroup {
	return e.RouterGroup().Group(path, middlewares...)
}

// RouterGroup 返回根路由组
func (e *Engine) RouterGroup() *RouterGroup {
	return &RouterGroup{group: &e.engine.RouterGroup}
}

// Handler 返回 http.Handler，便于测试
func (e *Engine) Handler() http.Handler {
	return e.engine
}

func (e *Engine) newServer(addr string) {
	e.server = &http.Server{
		Addr:           addr,
		Handler:        e.engine,
		ReadTimeout:    e.config.Server.ReadTimeout,
		WriteTimeout:   e.config.Server.WriteTimeout,
		IdleTimeout:    e.config.Server.IdleTimeout,
		MaxHeaderBytes: e.config.Server.MaxHeaderBytes,
	}
}

// Run 启动服务器，收到 SIGINT/SIGTERM 后优雅关机
func (e *Engine) Run(addr ...string) error {
	address := e.config.Server.Addr
	if len(addr) > 0 && addr[0] != "" {
		address = addr[0]
	}
	e.newServer(address)
	if e.config.Banner {
		e.printBanner(address)
	}
	return e.serve(e.server.ListenAndServe)
}

// Serve 在已有的 listener 上运行，ctx 取消时优雅关机
func (e *Engine) Serve(ctx context.Context, ln net.Listener) error {
	e.newServer(ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}
	return e.gracefulShutdown()
}

func (e *Engine) serve(start func() error) error {
	errChan := make(chan error, 1)
	go func() {
		if err := start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		e.log.Info("shutting down", zap.String("signal", sig.String()))
	}
	return e.gracefulShutdown()
}

func (e *Engine) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), e.config.Shutdown.Timeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		e.log.Error("server forced to shutdown", zap.Error(err))
		return err
	}
	e.log.Info("server exited")
	return nil
}

// Shutdown 先执行 BeforeShutdown，再关闭 HTTP 服务器
// http.Server.Shutdown 不会等待已被接管的 WebSocket 连接
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.server == nil {
		return nil
	}
	if e.config.Shutdown.BeforeShutdown != nil {
		e.config.Shutdown.BeforeShutdown(ctx)
	}

	err := e.server.Shutdown(ctx)

	if e.config.Shutdown.AfterShutdown != nil {
		e.config.Shutdown.AfterShutdown()
	}
	return err
}
