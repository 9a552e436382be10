package gateway

import (
	"context"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tokmz/pushgate/pkg/directory"
	"github.com/tokmz/pushgate/pkg/tracing"
)

// UserResolver token -> user_id，找不到时返回错误或 0
type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (int64, error)
}

// Directory 社区与成员查询
type Directory interface {
	GetCommunity(ctx context.Context, id int64) (*directory.Community, error)
	GetMember(ctx context.Context, c *directory.Community, userID int64) (*directory.Member, error)
}

// Snapshotter 把社区与成员序列化为下发的快照
type Snapshotter interface {
	SerializeCommunity(c *directory.Community) directory.PartialGuild
	SerializeMember(m *directory.Member) directory.PartialMember
}

// Authenticator 校验 token 与 guild_id
type Authenticator struct {
	resolver UserResolver
	dir      Directory
}

// NewAuthenticator 创建鉴权器
func NewAuthenticator(resolver UserResolver, dir Directory) *Authenticator {
	return &Authenticator{resolver: resolver, dir: dir}
}

// Verify 返回社区与成员，失败时返回 ErrInvalidParams、ErrTokenInvalid 或 ErrNotMember
// 底层错误挂在 Err 上仅供日志使用，不影响关闭原因
func (a *Authenticator) Verify(ctx context.Context, token, rawGuildID string) (*directory.Community, *directory.Member, error) {
	ctx, span := tracing.StartSpan(ctx, "gateway.Verify")
	defer span.End()

	c, m, err := a.verify(ctx, token, rawGuildID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, nil, err
	}
	span.SetAttributes(
		attribute.Int64("guild_id", c.ID),
		attribute.Int64("user_id", m.UserID),
	)
	return c, m, nil
}

func (a *Authenticator) verify(ctx context.Context, token, rawGuildID string) (*directory.Community, *directory.Member, error) {
	guildID, err := strconv.ParseInt(strings.TrimSpace(rawGuildID), 10, 64)
	if err != nil {
		return nil, nil, ErrInvalidParams.WithError(err)
	}

	userID, err := a.resolver.ResolveUser(ctx, token)
	if err != nil {
		return nil, nil, ErrTokenInvalid.WithError(err)
	}
	if userID == 0 {
		return nil, nil, ErrTokenInvalid
	}

	c, err := a.dir.GetCommunity(ctx, guildID)
	if err != nil || c == nil {
		return nil, nil, ErrNotMember.WithError(err)
	}
	m, err := a.dir.GetMember(ctx, c, userID)
	if err != nil || m == nil {
		return nil, nil, ErrNotMember.WithError(err)
	}
	return c, m, nil
}
