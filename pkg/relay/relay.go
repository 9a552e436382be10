// Package relay 把外部消息系统中的推送转发给网关
//
// 支持的源：Redis pub/sub、RabbitMQ、Kafka 消费组。每条消息都是一个 Envelope，
// 解析失败的消息记录日志后跳过，不会中断消费。
package relay

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/tokmz/pushgate/pkg/logger"
	"github.com/tokmz/pushgate/pkg/tracing"
)

// Handler 处理一条原始消息，返回错误时消息仍视为已消费
type Handler func(ctx context.Context, payload []byte) error

// Source 推送源
// Consume 阻塞直到 ctx 取消或连接断开，ctx 取消时返回 nil
type Source interface {
	Name() string
	Consume(ctx context.Context, handle Handler) error
	Close() error
}

// Relay 从 Source 读取信封并转发给 Broadcaster
type Relay struct {
	source Source
	dst    Broadcaster
	log    logger.Logger
	retry  time.Duration
}

// Option 配置选项
type Option func(*Relay)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(r *Relay) {
		r.log = l
	}
}

// WithRetryInterval 设置源断开后的重连间隔
func WithRetryInterval(d time.Duration) Option {
	return func(r *Relay) {
		r.retry = d
	}
}

// New 创建 Relay
func New(source Source, dst Broadcaster, opts ...Option) *Relay {
	r := &Relay{
		source: source,
		dst:    dst,
		log:    logger.NewNop(),
		retry:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.Named("relay").With(zap.String("source", source.Name()))
	return r
}

// Run 持续消费直到 ctx 取消；源出错时按重连间隔重试
func (r *Relay) Run(ctx context.Context) error {
	defer r.source.Close()
	r.log.Info("relay started")

	for {
		err := r.source.Consume(ctx, r.Dispatch)
		if ctx.Err() != nil {
			r.log.Info("relay stopped")
			return nil
		}
		r.log.Error("relay source failed, retrying", zap.Error(err), zap.Duration("retry", r.retry))

		select {
		case <-ctx.Done():
			r.log.Info("relay stopped")
			return nil
		case <-time.After(r.retry):
		}
	}
}

// Dispatch 解析并转发一条消息，非法信封只记录日志
func (r *Relay) Dispatch(ctx context.Context, payload []byte) error {
	ctx, span := tracing.StartSpan(ctx, "relay.Dispatch")
	defer span.End()

	env, err := DecodeEnvelope(payload)
	if err != nil {
		tracing.RecordError(span, err)
		r.log.WarnContext(ctx, "malformed envelope skipped", zap.Int("size", len(payload)), zap.Error(err))
		return err
	}
	span.SetAttributes(
		attribute.String("event", env.Event),
		attribute.Int64("guild_id", env.GuildID),
	)

	env.Deliver(r.dst)
	r.log.DebugContext(ctx, "envelope relayed", zap.String("event", env.Event), zap.Int64("guild_id", env.GuildID))
	return nil
}

// NewSource 按配置创建推送源，Driver 为空时返回 nil
func NewSource(cfg *Config) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverRedis:
		return NewRedisSource(cfg.Redis)
	case DriverAMQP:
		return NewAMQPSource(cfg.AMQP)
	case DriverKafka:
		return NewKafkaSource(cfg.Kafka)
	}
	return nil, nil
}
