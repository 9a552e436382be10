package gateway

import "sync"

// Registry 社区 -> 连接集合
// 集合为空时立即删除对应的社区键；读写都只在单次 map 操作内持锁，
// 广播拿到快照后在锁外写网络
type Registry struct {
	mu          sync.RWMutex
	communities map[int64]map[*Conn]struct{}
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{communities: make(map[int64]map[*Conn]struct{})}
}

// Register 幂等
func (r *Registry) Register(guildID int64, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.communities[guildID]
	if !ok {
		set = make(map[*Conn]struct{})
		r.communities[guildID] = set
	}
	set[c] = struct{}{}
}

// Unregister 社区或连接不存在时无操作
func (r *Registry) Unregister(guildID int64, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(guildID, c)
}

// Remove 从所有社区中移除连接
func (r *Registry) Remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.communities {
		r.removeLocked(id, c)
	}
}

func (r *Registry) removeLocked(guildID int64, c *Conn) {
	set, ok := r.communities[guildID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.communities, guildID)
	}
}

// MembersOf 返回社区连接的快照，不存在时为空
func (r *Registry) MembersOf(guildID int64) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.communities[guildID]
	out := make([]*Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// CommunityIDs 返回当前有连接的社区快照
func (r *Registry) CommunityIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int64, 0, len(r.communities))
	for id := range r.communities {
		out = append(out, id)
	}
	return out
}

// Count 连接总数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.communities {
		n += len(set)
	}
	return n
}

// CommunityCount 社区数
func (r *Registry) CommunityCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.communities)
}
