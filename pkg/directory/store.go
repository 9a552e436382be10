package directory

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store 基于 gorm 的目录实现
type Store struct {
	db *gorm.DB
}

// NewStore 创建 Store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate 创建或更新表结构
func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(Models()...)
}

// ResolveUser 查询 token 对应的用户，user_id 为 0 视为无效
func (s *Store) ResolveUser(ctx context.Context, token string) (int64, error) {
	var t OAuthToken
	err := s.db.WithContext(ctx).
		Select("user_id").
		Where("token = ?", token).
		Take(&t).Error
	if err != nil {
		return 0, wrap(err)
	}
	if t.UserID == 0 {
		return 0, ErrNotFound
	}
	return t.UserID, nil
}

// GetCommunity 加载社区及其角色、频道
func (s *Store) GetCommunity(ctx context.Context, id int64) (*Community, error) {
	var c Community
	err := s.db.WithContext(ctx).
		Preload("Roles", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		Preload("Channels", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		Where("id = ?", id).
		Take(&c).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &c, nil
}

// GetMember 加载成员并计算其角色与权限
func (s *Store) GetMember(ctx context.Context, c *Community, userID int64) (*Member, error) {
	db := s.db.WithContext(ctx)

	var m Member
	if err := db.Where("guild_id = ? AND user_id = ?", c.ID, userID).Take(&m).Error; err != nil {
		return nil, wrap(err)
	}
	if err := db.Model(&MemberRole{}).
		Where("guild_id = ? AND user_id = ?", c.ID, userID).
		Order("role_id").
		Pluck("role_id", &m.RoleIDs).Error; err != nil {
		return nil, err
	}

	ResolvePermissions(c, &m)
	return &m, nil
}

// SaveToken 发放或覆盖 token
func (s *Store) SaveToken(ctx context.Context, token string, userID int64) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id"}),
		}).
		Create(&OAuthToken{Token: token, UserID: userID}).Error
}

// RevokeToken 删除 token
func (s *Store) RevokeToken(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&OAuthToken{}).Error
}

// SaveCommunity 保存社区及其角色、频道
func (s *Store) SaveCommunity(ctx context.Context, c *Community) error {
	return s.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(c).Error
}

// SaveMember 保存成员并整体替换其角色关联
func (s *Store) SaveMember(ctx context.Context, m *Member) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(m).Error; err != nil {
			return err
		}
		if err := tx.Where("guild_id = ? AND user_id = ?", m.GuildID, m.UserID).
			Delete(&MemberRole{}).Error; err != nil {
			return err
		}
		if len(m.RoleIDs) == 0 {
			return nil
		}
		links := make([]MemberRole, 0, len(m.RoleIDs))
		for _, id := range m.RoleIDs {
			links = append(links, MemberRole{GuildID: m.GuildID, UserID: m.UserID, RoleID: id})
		}
		return tx.Create(&links).Error
	})
}

// DeleteMember 移除成员及其角色关联
func (s *Store) DeleteMember(ctx context.Context, guildID, userID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("guild_id = ? AND user_id = ?", guildID, userID).
			Delete(&MemberRole{}).Error; err != nil {
			return err
		}
		return tx.Where("guild_id = ? AND user_id = ?", guildID, userID).
			Delete(&Member{}).Error
	})
}

func wrap(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
