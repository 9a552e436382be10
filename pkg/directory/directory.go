// Package directory 提供网关鉴权依赖的数据：token 到用户的解析、社区与成员查询，
// 以及发送给客户端的快照 DTO。
package directory

import (
	"context"

	"github.com/tokmz/pushgate/pkg/errors"
)

// ErrNotFound token、社区或成员不存在
var ErrNotFound = errors.New(7001, "directory record not found", 404)

// Resolver token -> user_id
type Resolver interface {
	ResolveUser(ctx context.Context, token string) (int64, error)
}

const (
	// PermAdministrator 管理员位，拥有后视为全部权限
	PermAdministrator int64 = 1 << 3
	// PermAll 全部权限，限制在 JS 可精确表示的范围内
	PermAll int64 = 1<<53 - 1
)

// ResolvePermissions 按社区角色补全成员的 RoleIDs 与 Permissions
// 默认角色总是排在第一位，社区中不存在的角色被丢弃
// 社区所有者或带管理员位的成员拥有全部权限
func ResolvePermissions(c *Community, m *Member) {
	byID := make(map[int64]*Role, len(c.Roles))
	ids := make([]int64, 0, len(m.RoleIDs)+1)
	var perms int64
	for i := range c.Roles {
		r := &c.Roles[i]
		byID[r.ID] = r
		if r.Default {
			ids = append(ids, r.ID)
			perms |= r.Permissions
		}
	}
	for _, id := range m.RoleIDs {
		r, ok := byID[id]
		if !ok || r.Default {
			continue
		}
		ids = append(ids, id)
		perms |= r.Permissions
	}

	if c.OwnerID == m.UserID || perms&PermAdministrator != 0 {
		perms = PermAll
	}
	m.RoleIDs = ids
	m.Permissions = perms
}
