package relay

import (
	"bytes"
	"encoding/json"

	"github.com/tokmz/pushgate/pkg/gateway"
)

// Envelope 推送信封 {"guild_id": 100, "event": "MESSAGE_CREATE", "data": {...}}
// GuildID 为 0 或缺省时推送给所有社区
type Envelope struct {
	GuildID int64           `json:"guild_id,omitempty"`
	Event   string          `json:"event" binding:"required"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Broadcaster 推送目标，由 *gateway.Manager 实现
type Broadcaster interface {
	Broadcast(guildID int64, msg gateway.Message)
	BroadcastAll(msg gateway.Message)
}

var _ Broadcaster = (*gateway.Manager)(nil)

// DecodeEnvelope 解析信封，event 为空或 data 不是对象时返回 ErrInvalidEnvelope
func DecodeEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, ErrInvalidEnvelope.WithError(err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Validate 校验信封
func (e Envelope) Validate() error {
	if e.Event == "" {
		return ErrInvalidEnvelope.WithMessage("envelope event is required")
	}
	if e.GuildID < 0 {
		return ErrInvalidEnvelope.WithMessage("envelope guild_id must not be negative")
	}
	data := bytes.TrimSpace(e.Data)
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) && data[0] != '{' {
		return ErrInvalidEnvelope.WithMessage("envelope data must be an object")
	}
	return nil
}

// Message 转为出站消息，data 原样转发
func (e Envelope) Message() gateway.Message {
	data := bytes.TrimSpace(e.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return gateway.NewMessage(e.Event, nil)
	}
	return gateway.NewMessage(e.Event, json.RawMessage(data))
}

// Deliver 按 GuildID 选择 Broadcast 或 BroadcastAll
func (e Envelope) Deliver(b Broadcaster) {
	if e.GuildID == 0 {
		b.BroadcastAll(e.Message())
		return
	}
	b.Broadcast(e.GuildID, e.Message())
}
