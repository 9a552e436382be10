package cache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tokmz/pushgate/pkg/errors"
)

const tracerName = "pushgate.cache"

// tracedCache 为每次缓存操作创建 client span
type tracedCache struct {
	Cache
	tracer trace.Tracer
}

// NewTracing 创建带链路追踪的缓存装饰器
func NewTracing(c Cache) Cache {
	return &tracedCache{
		Cache:  c,
		tracer: otel.Tracer(tracerName),
	}
}

func (t *tracedCache) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "cache."+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("cache.operation", op))
	span.SetAttributes(attrs...)
	return ctx, span
}

func finish(span trace.Span, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// Get 未命中不记为错误，只打 cache.hit=false
func (t *tracedCache) Get(ctx context.Context, key string, value any) error {
	ctx, span := t.span(ctx, "Get", attribute.String("cache.key", key))
	err := t.Cache.Get(ctx, key, value)
	span.SetAttributes(attribute.Bool("cache.hit", err == nil))
	if errors.Is(err, ErrCacheNotFound) {
		finish(span, nil)
		return err
	}
	finish(span, err)
	return err
}

func (t *tracedCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	ctx, span := t.span(ctx, "Set",
		attribute.String("cache.key", key),
		attribute.Float64("cache.ttl_seconds", ttl.Seconds()),
	)
	err := t.Cache.Set(ctx, key, value, ttl)
	finish(span, err)
	return err
}

func (t *tracedCache) Delete(ctx context.Context, keys ...string) error {
	ctx, span := t.span(ctx, "Delete", attribute.Int("cache.keys_count", len(keys)))
	err := t.Cache.Delete(ctx, keys...)
	finish(span, err)
	return err
}

func (t *tracedCache) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span := t.span(ctx, "Exists", attribute.String("cache.key", key))
	ok, err := t.Cache.Exists(ctx, key)
	finish(span, err)
	return ok, err
}
