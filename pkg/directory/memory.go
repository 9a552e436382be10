package directory

import (
	"context"
	"slices"
	"sync"
)

// Memory 进程内目录，并发安全
// 返回的都是副本，调用方修改不影响内部数据
type Memory struct {
	mu          sync.RWMutex
	tokens      map[string]int64
	communities map[int64]*Community
	members     map[int64]map[int64]*Member
}

// NewMemory 创建空目录
func NewMemory() *Memory {
	return &Memory{
		tokens:      make(map[string]int64),
		communities: make(map[int64]*Community),
		members:     make(map[int64]map[int64]*Member),
	}
}

// AddToken 登记 token
func (m *Memory) AddToken(token string, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = userID
}

// RevokeToken 删除 token
func (m *Memory) RevokeToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
}

// AddCommunity 新增或替换社区
func (m *Memory) AddCommunity(c *Community) {
	cp := cloneCommunity(c)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.communities[c.ID] = cp
}

// AddMember 新增或替换成员
func (m *Memory) AddMember(member *Member) {
	cp := *member
	cp.RoleIDs = slices.Clone(member.RoleIDs)

	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.members[member.GuildID]
	if !ok {
		set = make(map[int64]*Member)
		m.members[member.GuildID] = set
	}
	set[member.UserID] = &cp
}

// RemoveMember 移除成员
func (m *Memory) RemoveMember(guildID, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.members[guildID]; ok {
		delete(set, userID)
		if len(set) == 0 {
			delete(m.members, guildID)
		}
	}
}

func (m *Memory) ResolveUser(ctx context.Context, token string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.tokens[token]
	if !ok || id == 0 {
		return 0, ErrNotFound
	}
	return id, nil
}

func (m *Memory) GetCommunity(ctx context.Context, id int64) (*Community, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.communities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCommunity(c), nil
}

func (m *Memory) GetMember(ctx context.Context, c *Community, userID int64) (*Member, error) {
	m.mu.RLock()
	member, ok := m.members[c.ID][userID]
	var cp Member
	if ok {
		cp = *member
		cp.RoleIDs = slices.Clone(member.RoleIDs)
	}
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	ResolvePermissions(c, &cp)
	return &cp, nil
}

func cloneCommunity(c *Community) *Community {
	cp := *c
	cp.Roles = slices.Clone(c.Roles)
	cp.Channels = slices.Clone(c.Channels)
	return &cp
}
