package relay

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/tokmz/pushgate/pkg/cache"
)

// RedisSource 订阅 Redis 频道
type RedisSource struct {
	client   redis.UniversalClient
	channels []string
	owned    bool
}

// NewRedisSource 按配置创建客户端并订阅 channels
func NewRedisSource(cfg *RedisConfig) (*RedisSource, error) {
	if cfg == nil || len(cfg.Channels) == 0 {
		return nil, ErrInvalidConfig.WithMessage("redis relay requires at least one channel")
	}
	client, err := cache.NewRedisClient(&cfg.RedisConfig)
	if err != nil {
		return nil, ErrSourceFailed.WithError(err)
	}
	return &RedisSource{client: client, channels: cfg.Channels, owned: true}, nil
}

// NewRedisSourceWithClient 复用已有客户端，Close 不会关闭它
func NewRedisSourceWithClient(client redis.UniversalClient, channels ...string) *RedisSource {
	return &RedisSource{client: client, channels: channels}
}

func (s *RedisSource) Name() string { return string(DriverRedis) }

func (s *RedisSource) Consume(ctx context.Context, handle Handler) error {
	pubsub := s.client.Subscribe(ctx, s.channels...)
	defer pubsub.Close()

	// 等待订阅确认，连接失败时尽早返回
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return ErrSourceFailed.WithError(err)
	}
	return consumeRedis(ctx, pubsub.Channel(), handle)
}

func consumeRedis(ctx context.Context, ch <-chan *redis.Message, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return ErrSourceFailed.WithMessage("redis subscription closed")
			}
			_ = handle(ctx, []byte(msg.Payload))
		}
	}
}

func (s *RedisSource) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
