package gateway

import (
	"encoding/json"

	"github.com/tokmz/pushgate/pkg/directory"
)

// 协议事件
const (
	EventPrepare      = "PREPARE"       // out: 握手，告知心跳间隔
	EventIdentify     = "IDENTIFY"      // out: 社区与成员快照
	EventHeartbeat    = "HEARTBEAT"     // in
	EventHeartbeatAck = "HEARTBEAT_ACK" // out: 回显累计心跳数
)

// Message 出站帧 {"event": ..., "data": ...}
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// NewMessage 创建出站消息
func NewMessage(event string, data any) Message {
	return Message{Event: event, Data: data}
}

// Encode 序列化，Data 为 nil 时输出空对象
func (m Message) Encode() ([]byte, error) {
	if m.Data == nil {
		m.Data = struct{}{}
	}
	return json.Marshal(m)
}

// PrepareData PREPARE 负载
type PrepareData struct {
	Interval int64 `json:"interval"` // 毫秒
	ID       int64 `json:"id"`
}

// IdentifyData IDENTIFY 负载
type IdentifyData struct {
	Guild  directory.PartialGuild  `json:"guild"`
	Member directory.PartialMember `json:"member"`
}

// HeartbeatAckData HEARTBEAT_ACK 负载
type HeartbeatAckData struct {
	Received int64 `json:"received"`
}

// Inbound 入站帧，只有 Heartbeat 与 Unknown 两种
type Inbound interface {
	inbound()
}

// Heartbeat 客户端心跳
type Heartbeat struct{}

// Unknown 未识别的事件，记录后忽略
type Unknown struct {
	Event string
	Data  json.RawMessage
}

func (Heartbeat) inbound() {}
func (Unknown) inbound()   {}

// DecodeInbound 解析入站帧
// 必须是同时带 event 与 data 的 JSON 对象，且 event 为字符串，否则返回 ErrInvalidFrame
func DecodeInbound(data []byte) (Inbound, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, ErrInvalidFrame
	}
	rawEvent, hasEvent := raw["event"]
	rawData, hasData := raw["data"]
	if !hasEvent || !hasData {
		return nil, ErrInvalidFrame
	}

	var event string
	if err := json.Unmarshal(rawEvent, &event); err != nil {
		return nil, ErrInvalidFrame
	}

	if event == EventHeartbeat {
		return Heartbeat{}, nil
	}
	return Unknown{Event: event, Data: rawData}, nil
}
