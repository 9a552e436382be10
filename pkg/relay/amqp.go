package relay

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPSource 消费 RabbitMQ 队列
// 每次 Consume 重新建立连接，便于 Relay 在断线后重试
type AMQPSource struct {
	cfg *AMQPConfig

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewAMQPSource 创建 RabbitMQ 源，连接在 Consume 时建立
func NewAMQPSource(cfg *AMQPConfig) (*AMQPSource, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, ErrInvalidConfig.WithMessage("amqp relay requires url")
	}
	return &AMQPSource{cfg: cfg}, nil
}

func (s *AMQPSource) Name() string { return string(DriverAMQP) }

func (s *AMQPSource) Consume(ctx context.Context, handle Handler) error {
	conn, err := amqp.Dial(s.cfg.URL)
	if err != nil {
		return ErrSourceFailed.WithError(err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return ErrSourceFailed.WithError(err)
	}
	defer ch.Close()

	deliveries, err := s.declare(ch)
	if err != nil {
		return ErrSourceFailed.WithError(err)
	}
	return consumeAMQP(ctx, deliveries, handle)
}

// declare 声明 exchange 与队列并开始消费
func (s *AMQPSource) declare(ch *amqp.Channel) (<-chan amqp.Delivery, error) {
	cfg := s.cfg
	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			return nil, err
		}
	}

	if cfg.Exchange != "" {
		kind := cfg.ExchangeType
		if kind == "" {
			kind = amqp.ExchangeFanout
		}
		if err := ch.ExchangeDeclare(cfg.Exchange, kind, true, false, false, false, nil); err != nil {
			return nil, err
		}
	}

	// 未指定队列名时每个网关实例独占一个临时队列，广播会到达所有实例
	durable, exclusive := cfg.Queue != "", cfg.Queue == ""
	q, err := ch.QueueDeclare(cfg.Queue, durable, !durable, exclusive, false, nil)
	if err != nil {
		return nil, err
	}
	if cfg.Exchange != "" {
		if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
			return nil, err
		}
	}
	return ch.Consume(q.Name, "", false, exclusive, false, false, nil)
}

// consumeAMQP 逐条处理并确认；非法消息不重新入队
func consumeAMQP(ctx context.Context, deliveries <-chan amqp.Delivery, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrSourceFailed.WithMessage("amqp delivery channel closed")
			}
			if err := handle(ctx, d.Body); err != nil {
				_ = d.Reject(false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (s *AMQPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || s.conn.IsClosed() {
		return nil
	}
	return s.conn.Close()
}
