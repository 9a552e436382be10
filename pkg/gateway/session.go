package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tokmz/pushgate/pkg/directory"
	"github.com/tokmz/pushgate/pkg/logger"
)

// session 一条连接从握手到关闭的全过程
// 入站帧由 readPump 读出后经 frames 交给 run 处理，run 退出时必定注销
type session struct {
	m         *Manager
	conn      *Conn
	community *directory.Community
	member    *directory.Member
	log       logger.Logger

	frames   chan []byte
	done     chan struct{}
	readDone chan struct{}
	opened   bool // 握手是否完成，未完成时不发布连接事件
}

func newSession(m *Manager, conn *Conn, c *directory.Community, member *directory.Member) *session {
	return &session{
		m:         m,
		conn:      conn,
		community: c,
		member:    member,
		log: m.log.With(
			zap.String("conn_id", conn.ID),
			zap.Int64("guild_id", c.ID),
			zap.Int64("user_id", member.UserID),
		),
		frames: make(chan []byte),
		done:   make(chan struct{}),
	}
}

func (s *session) run(ctx context.Context) {
	defer s.teardown()

	if !s.open() {
		s.log.InfoContext(ctx, "handshake failed", zap.String("remote", s.conn.RemoteAddr()))
		return
	}
	s.opened = true
	s.m.events.Publish(Event{Type: EventConnected, Conn: s.conn})
	s.log.InfoContext(ctx, "connection opened", zap.String("remote", s.conn.RemoteAddr()))

	s.readDone = make(chan struct{})
	go s.readPump()

	ticker := time.NewTicker(s.m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-s.frames:
			if !ok {
				return
			}
			s.handle(ctx, data)

		case <-ticker.C:
			if err := s.conn.ping(); err != nil {
				s.log.DebugContext(ctx, "ping failed", zap.Error(err))
				return
			}

		case <-ctx.Done():
			s.conn.closeWith(websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

// open 注册连接并发送 PREPARE、IDENTIFY
// 握手期间持有连接写锁，并发的广播只能排在 IDENTIFY 之后
func (s *session) open() bool {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()

	s.m.registry.Register(s.community.ID, s.conn)
	s.conn.setState(StateOpen)

	prepare := NewMessage(EventPrepare, PrepareData{
		Interval: s.m.config.HeartbeatInterval.Milliseconds(),
		ID:       s.community.ID,
	})
	identify := NewMessage(EventIdentify, IdentifyData{
		Guild:  s.m.snapshot.SerializeCommunity(s.community),
		Member: s.m.snapshot.SerializeMember(s.member),
	})
	return s.m.sendLocked(s.conn, prepare) && s.m.sendLocked(s.conn, identify)
}

func (s *session) readPump() {
	defer close(s.readDone)
	defer close(s.frames)

	t := s.conn.transport
	timeout := s.m.config.ReadTimeout
	t.SetReadLimit(s.m.config.MaxMessageSize)
	_ = t.SetReadDeadline(time.Now().Add(timeout))
	t.SetPongHandler(func(string) error {
		return t.SetReadDeadline(time.Now().Add(timeout))
	})

	for {
		mt, data, err := t.ReadMessage()
		if err != nil {
			s.logReadError(err)
			return
		}
		_ = t.SetReadDeadline(time.Now().Add(timeout))
		if mt != websocket.TextMessage {
			continue
		}

		select {
		case s.frames <- data:
		case <-s.done:
			return
		}
	}
}

func (s *session) logReadError(err error) {
	if s.conn.IsClosed() {
		return
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		s.log.Info("websocket closed by peer", zap.Int("code", ce.Code), zap.String("reason", ce.Text))
		return
	}
	s.log.Info("websocket read failed", zap.Error(err))
}

func (s *session) handle(ctx context.Context, data []byte) {
	in, err := DecodeInbound(data)
	if err != nil {
		s.m.metrics.IncInvalidFrames()
		s.log.WarnContext(ctx, "invalid message received", zap.Int("size", len(data)))
		return
	}

	switch ev := in.(type) {
	case Heartbeat:
		n := s.conn.heartbeats.Add(1)
		s.m.metrics.IncHeartbeats()
		s.log.DebugContext(ctx, "heartbeat received", zap.Int64("received", n))
		s.m.send(s.conn, NewMessage(EventHeartbeatAck, HeartbeatAckData{Received: n}))

	case Unknown:
		s.m.metrics.IncUnknownEvents()
		s.log.WarnContext(ctx, "unknown event received", zap.String("event", ev.Event))
	}
}

func (s *session) teardown() {
	s.conn.setState(StateClosing)
	s.m.registry.Unregister(s.community.ID, s.conn)
	s.conn.closeWith(websocket.CloseNormalClosure, "")

	close(s.done)
	if s.readDone != nil {
		<-s.readDone
	}

	s.conn.setState(StateClosed)
	if !s.opened {
		s.m.updateGauges()
		return
	}
	s.m.events.Publish(Event{Type: EventDisconnected, Conn: s.conn})
	s.log.Info("connection closed", zap.Int64("heartbeats", s.conn.Heartbeats()))
}
