package tracing

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const httpTracerName = "pushgate.http"

// TraceIDKey gin.Context 中 trace id 的键
const TraceIDKey = "trace_id"

type middlewareConfig struct {
	filter func(*gin.Context) bool
}

// MiddlewareOption 中间件选项
type MiddlewareOption func(*middlewareConfig)

// WithFilter 返回 false 的请求不创建 span
func WithFilter(fn func(*gin.Context) bool) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.filter = fn
	}
}

// Middleware gin 链路追踪中间件
// span 名使用路由模板，避免高基数
func Middleware(opts ...MiddlewareOption) gin.HandlerFunc {
	cfg := &middlewareConfig{
		filter: func(*gin.Context) bool { return true },
	}
	for _, opt := range opts {
		opt(cfg)
	}
	tracer := otel.Tracer(httpTracerName)

	return func(c *gin.Context) {
		if !cfg.filter(c) {
			c.Next()
			return
		}

		propagator := otel.GetTextMapPropagator()
		req := c.Request
		ctx := propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))

		route := c.FullPath()
		if route == "" {
			route = req.URL.Path
		}
		ctx, span := tracer.Start(ctx, req.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(req.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.URLPath(req.URL.Path),
				semconv.ServerAddress(req.Host),
				semconv.UserAgentOriginalKey.String(req.UserAgent()),
				attribute.String("http.client_ip", c.ClientIP()),
			),
		)
		defer span.End()

		c.Set(TraceIDKey, span.SpanContext().TraceID().String())
		c.Request = req.WithContext(ctx)
		propagator.Inject(ctx, propagation.HeaderCarrier(c.Writer.Header()))

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCodeKey.Int(status))
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}
	}
}
