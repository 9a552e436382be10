package gateway

import (
	"sync"
	"time"
)

// EventType 事件类型
type EventType string

const (
	// EventConnected 完成鉴权并注册
	EventConnected EventType = "conn.connected"
	// EventDisconnected 会话结束并已注销
	EventDisconnected EventType = "conn.disconnected"
	// EventRejected 握手前被拒绝，Reason 为拒绝原因标签
	EventRejected EventType = "conn.rejected"
)

// Event 事件
type Event struct {
	Type   EventType
	Conn   *Conn // EventRejected 时为 nil
	Reason string
	Time   time.Time
}

// EventHandler 事件处理器，在发布者的协程中同步执行，应尽快返回
type EventHandler func(Event)

// EventBus 事件总线
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
	onPanic  func(Event, any)
}

// NewEventBus 创建事件总线
func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[EventType][]EventHandler)}
}

// Subscribe 订阅事件
func (eb *EventBus) Subscribe(t EventType, h EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[t] = append(eb.handlers[t], h)
}

// Publish 依次调用处理器，单个处理器 panic 不影响其他处理器与调用方
func (eb *EventBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	eb.mu.RLock()
	handlers := eb.handlers[e.Type]
	eb.mu.RUnlock()

	for _, h := range handlers {
		eb.call(h, e)
	}
}

func (eb *EventBus) call(h EventHandler, e Event) {
	defer func() {
		if r := recover(); r != nil && eb.onPanic != nil {
			eb.onPanic(e, r)
		}
	}()
	h(e)
}
