package directory

import (
	"time"
)

// Community 社区（guild）
type Community struct {
	ID        int64   `gorm:"primaryKey;autoIncrement:false"`
	Name      string  `gorm:"size:100;not null"`
	OwnerID   int64   `gorm:"not null;default:0"`
	IconURL   *string `gorm:"size:512"`
	CreatedAt time.Time
	Roles     []Role    `gorm:"foreignKey:GuildID;constraint:OnDelete:CASCADE"`
	Channels  []Channel `gorm:"foreignKey:GuildID;constraint:OnDelete:CASCADE"`
}

func (Community) TableName() string { return "guilds" }

// Role 角色，每个社区有且仅有一个 Default 角色（@everyone）
type Role struct {
	ID           int64   `gorm:"primaryKey;autoIncrement:false"`
	GuildID      int64   `gorm:"index;not null"`
	Name         string  `gorm:"size:100;not null"`
	Color        int     `gorm:"not null;default:0"`
	Permissions  int64   `gorm:"not null;default:0"`
	Position     int     `gorm:"not null;default:0"`
	IconURL      *string `gorm:"size:512"`
	Managed      bool
	Mentionable  bool
	UnicodeEmoji *string `gorm:"size:32"`
	Default      bool    `gorm:"column:is_default"`
}

func (Role) TableName() string { return "roles" }

// Channel 频道
type Channel struct {
	ID       int64  `gorm:"primaryKey;autoIncrement:false"`
	GuildID  int64  `gorm:"index;not null"`
	Name     string `gorm:"size:100;not null"`
	Type     string `gorm:"size:32;not null;default:text"`
	Position int    `gorm:"not null;default:0"`
	NSFW     bool   `gorm:"column:nsfw"`
	ParentID *int64
}

func (Channel) TableName() string { return "channels" }

// Member 社区成员
// RoleIDs 与 Permissions 不直接落库，由 GetMember 结合社区角色计算
type Member struct {
	GuildID     int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID      int64 `gorm:"primaryKey;autoIncrement:false"`
	Bot         bool
	Username    string `gorm:"size:100;not null"`
	DisplayName string `gorm:"size:100"`
	AvatarURL   string `gorm:"size:512"`
	JoinedAt    *time.Time
	CreatedAt   time.Time

	RoleIDs     []int64 `gorm:"-"`
	Permissions int64   `gorm:"-"`
}

func (Member) TableName() string { return "members" }

// MemberRole 成员与角色的关联
type MemberRole struct {
	GuildID int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID  int64 `gorm:"primaryKey;autoIncrement:false"`
	RoleID  int64 `gorm:"primaryKey;autoIncrement:false"`
}

func (MemberRole) TableName() string { return "member_roles" }

// OAuthToken 登录后发放的 bearer token
type OAuthToken struct {
	Token     string `gorm:"primaryKey;size:255"`
	UserID    int64  `gorm:"index;not null"`
	CreatedAt time.Time
}

func (OAuthToken) TableName() string { return "oauth" }

// Models 需要迁移的全部模型
func Models() []any {
	return []any{&OAuthToken{}, &Community{}, &Role{}, &Channel{}, &Member{}, &MemberRole{}}
}
