package gateway

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Transport 连接所需的 *websocket.Conn 方法子集
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	RemoteAddr() net.Addr
	Close() error
}

var _ Transport = (*websocket.Conn)(nil)

// State 会话状态
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Conn 一条已鉴权的连接
// 写操作由 mu 串行化；WriteControl 与 Close 可与其他方法并发调用
type Conn struct {
	ID      string
	GuildID int64
	UserID  int64

	transport Transport
	writeWait time.Duration
	mu        sync.Mutex

	state      atomic.Int32
	heartbeats atomic.Int64
	closed     atomic.Bool
	closeOnce  sync.Once
}

func newConn(t Transport, guildID, userID int64, writeWait time.Duration) *Conn {
	return &Conn{
		ID:        uuid.NewString(),
		GuildID:   guildID,
		UserID:    userID,
		transport: t,
		writeWait: writeWait,
	}
}

// State 当前会话状态
func (c *Conn) State() State {
	return State(c.state.Load())
}

func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
}

// Heartbeats 已收到的心跳数
func (c *Conn) Heartbeats() int64 {
	return c.heartbeats.Load()
}

// RemoteAddr 对端地址
func (c *Conn) RemoteAddr() string {
	if addr := c.transport.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// IsClosed 是否已关闭
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

func (c *Conn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(data)
}

func (c *Conn) writeLocked(data []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	if err := c.transport.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.transport.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) ping() error {
	return c.transport.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

// closeWith 发送关闭帧后关闭底层连接，只生效一次
func (c *Conn) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.transport.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(c.writeWait))
		_ = c.transport.Close()
	})
}

// abort 对端已不可写，直接关闭
func (c *Conn) abort() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.transport.Close()
	})
}

// rejectTransport 未建立会话前拒绝连接
func rejectTransport(t Transport, code int, reason string, writeWait time.Duration) {
	_ = t.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	_ = t.Close()
}
