package gateway

import (
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// send 编码后写入单个连接，失败视为连接已断开
func (m *Manager) send(c *Conn, msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return m.sendLocked(c, msg)
}

func (m *Manager) sendLocked(c *Conn, msg Message) bool {
	data, err := msg.Encode()
	if err != nil {
		m.log.Error("encode message failed", zap.String("event", msg.Event), zap.Error(err))
		return false
	}
	return m.deliverLocked(c, data)
}

func (m *Manager) deliver(c *Conn, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return m.deliverLocked(c, data)
}

// deliverLocked 写失败时把连接从注册表中摘除并关闭，错误不向上传播
func (m *Manager) deliverLocked(c *Conn, data []byte) bool {
	if err := c.writeLocked(data); err != nil {
		m.registry.Remove(c)
		c.abort()
		m.metrics.IncDeliveryFailures()
		m.updateGauges()
		m.log.Debug("delivery failed, connection pruned",
			zap.String("conn_id", c.ID),
			zap.Int64("guild_id", c.GuildID),
			zap.Error(err),
		)
		return false
	}
	m.metrics.IncDelivered()
	return true
}

// Broadcast 推送给调用时刻已注册在该社区的所有连接
// 之后加入的连接收不到本条消息；返回时所有写入均已完成
func (m *Manager) Broadcast(guildID int64, msg Message) {
	data, err := msg.Encode()
	if err != nil {
		m.log.Error("encode broadcast failed", zap.String("event", msg.Event), zap.Error(err))
		return
	}
	m.metrics.IncBroadcasts(ScopeGuild)
	m.fanout(m.registry.MembersOf(guildID), data)
}

// BroadcastAll 推送给所有社区
func (m *Manager) BroadcastAll(msg Message) {
	data, err := msg.Encode()
	if err != nil {
		m.log.Error("encode broadcast failed", zap.String("event", msg.Event), zap.Error(err))
		return
	}
	m.metrics.IncBroadcasts(ScopeAll)
	for _, id := range m.registry.CommunityIDs() {
		m.fanout(m.registry.MembersOf(id), data)
	}
}

// fanout 并发写，单个连接失败不影响其他连接
func (m *Manager) fanout(targets []*Conn, data []byte) {
	if len(targets) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(m.config.BroadcastWorkers)
	for _, c := range targets {
		g.Go(func() error {
			m.deliver(c, data)
			return nil
		})
	}
	_ = g.Wait()
}
