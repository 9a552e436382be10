package relay

import (
	"context"

	"github.com/IBM/sarama"
)

// KafkaSource 以消费组方式消费 Kafka topic
type KafkaSource struct {
	cfg   *KafkaConfig
	group sarama.ConsumerGroup
}

// NewKafkaSource 创建消费组
func NewKafkaSource(cfg *KafkaConfig) (*KafkaSource, error) {
	if cfg == nil || len(cfg.Brokers) == 0 || len(cfg.Topics) == 0 || cfg.GroupID == "" {
		return nil, ErrInvalidConfig.WithMessage("kafka relay requires brokers, topics and group_id")
	}
	sc, err := saramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, ErrSourceFailed.WithError(err)
	}
	return &KafkaSource{cfg: cfg, group: group}, nil
}

func saramaConfig(cfg *KafkaConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.ClientID = "pushgate"
	sc.Consumer.Return.Errors = false
	if cfg.Oldest {
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, ErrInvalidConfig.WithError(err)
		}
		sc.Version = v
	}
	if err := sc.Validate(); err != nil {
		return nil, ErrInvalidConfig.WithError(err)
	}
	return sc, nil
}

func (s *KafkaSource) Name() string { return string(DriverKafka) }

// Consume 每次 rebalance 后 group.Consume 返回，循环重新加入
func (s *KafkaSource) Consume(ctx context.Context, handle Handler) error {
	h := &groupHandler{handle: handle}
	for {
		if err := s.group.Consume(ctx, s.cfg.Topics, h); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return ErrSourceFailed.WithError(err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *KafkaSource) Close() error {
	return s.group.Close()
}

// groupHandler sarama.ConsumerGroupHandler
type groupHandler struct {
	handle Handler
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim 处理完即标记 offset，非法消息同样跳过
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			_ = h.handle(ctx, msg.Value)
			sess.MarkMessage(msg, "")
		}
	}
}
