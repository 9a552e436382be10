package directory

import (
	"cmp"
	"slices"
	"time"
)

// PartialRole 角色快照
type PartialRole struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Color        int     `json:"color"`
	Permissions  int64   `json:"permissions"`
	IconURL      *string `json:"icon_url"`
	Managed      bool    `json:"managed"`
	Mentionable  bool    `json:"mentionable"`
	UnicodeEmoji *string `json:"unicode_emoji"`
	DefaultRole  bool    `json:"default_role"`
}

// PartialChannel 频道快照
// PermissionOverwrites 暂不下发，恒为空对象
type PartialChannel struct {
	ID                   int64                      `json:"id"`
	Name                 string                     `json:"name"`
	Type                 string                     `json:"type"`
	Position             int                        `json:"position"`
	NSFW                 bool                       `json:"nsfw"`
	ParentID             *int64                     `json:"parent_id"`
	PermissionOverwrites map[string]map[string]bool `json:"permission_overwrites"`
}

// PartialMember 成员快照
type PartialMember struct {
	ID          int64     `json:"id"`
	Bot         bool      `json:"bot"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
	Roles       []int64   `json:"roles"`
	JoinedAt    time.Time `json:"joined_at"`
	CreatedAt   time.Time `json:"created_at"`
	Permissions int64     `json:"permissions"`
}

// PartialGuild 社区快照
type PartialGuild struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	OwnerID   int64            `json:"owner_id"`
	CreatedAt time.Time        `json:"created_at"`
	IconURL   *string          `json:"icon_url"`
	Roles     []PartialRole    `json:"roles"`
	Channels  []PartialChannel `json:"channels"`
}

// Snapshot 把目录模型序列化为下发给客户端的 DTO
type Snapshot struct {
	now func() time.Time
}

// NewSnapshot 创建序列化器
func NewSnapshot() *Snapshot {
	return &Snapshot{now: func() time.Time { return time.Now().UTC() }}
}

// SerializeCommunity 角色与频道按 position、id 排序
func (s *Snapshot) SerializeCommunity(c *Community) PartialGuild {
	roles := slices.Clone(c.Roles)
	slices.SortFunc(roles, func(a, b Role) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
	})
	channels := slices.Clone(c.Channels)
	slices.SortFunc(channels, func(a, b Channel) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
	})

	g := PartialGuild{
		ID:        c.ID,
		Name:      c.Name,
		OwnerID:   c.OwnerID,
		CreatedAt: c.CreatedAt.UTC(),
		IconURL:   c.IconURL,
		Roles:     make([]PartialRole, 0, len(roles)),
		Channels:  make([]PartialChannel, 0, len(channels)),
	}
	for _, r := range roles {
		g.Roles = append(g.Roles, PartialRole{
			ID:           r.ID,
			Name:         r.Name,
			Color:        r.Color,
			Permissions:  r.Permissions,
			IconURL:      r.IconURL,
			Managed:      r.Managed,
			Mentionable:  r.Mentionable,
			UnicodeEmoji: r.UnicodeEmoji,
			DefaultRole:  r.Default,
		})
	}
	for _, ch := range channels {
		g.Channels = append(g.Channels, PartialChannel{
			ID:                   ch.ID,
			Name:                 ch.Name,
			Type:                 ch.Type,
			Position:             ch.Position,
			NSFW:                 ch.NSFW,
			ParentID:             ch.ParentID,
			PermissionOverwrites: map[string]map[string]bool{},
		})
	}
	return g
}

// SerializeMember 未记录加入时间时取当前时间，DisplayName 为空时回退到 Username
func (s *Snapshot) SerializeMember(m *Member) PartialMember {
	joined := s.now()
	if m.JoinedAt != nil {
		joined = m.JoinedAt.UTC()
	}
	display := m.DisplayName
	if display == "" {
		display = m.Username
	}
	roles := m.RoleIDs
	if roles == nil {
		roles = []int64{}
	}

	return PartialMember{
		ID:          m.UserID,
		Bot:         m.Bot,
		Username:    m.Username,
		DisplayName: display,
		AvatarURL:   m.AvatarURL,
		Roles:       roles,
		JoinedAt:    joined,
		CreatedAt:   m.CreatedAt.UTC(),
		Permissions: m.Permissions,
	}
}
