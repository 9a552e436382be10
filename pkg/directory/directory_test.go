package directory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/pushgate/pkg/cache"
	"github.com/tokmz/pushgate/pkg/errors"
	"github.com/tokmz/pushgate/pkg/orm"
)

const (
	permView   int64 = 1 << 10
	permManage int64 = 1 << 13
)

func fixtureCommunity() *Community {
	parent := int64(500)
	return &Community{
		ID:        100,
		Name:      "guild",
		OwnerID:   1,
		CreatedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Roles: []Role{
			{ID: 300, GuildID: 100, Name: "admin", Permissions: PermAdministrator, Position: 2},
			{ID: 100, GuildID: 100, Name: "@everyone", Permissions: permView, Default: true},
			{ID: 200, GuildID: 100, Name: "mod", Permissions: permManage, Position: 1},
		},
		Channels: []Channel{
			{ID: 501, GuildID: 100, Name: "general", Type: "text", Position: 1, ParentID: &parent},
			{ID: 500, GuildID: 100, Name: "Text", Type: "category"},
		},
	}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	cfg := orm.DefaultConfig()
	cfg.DSN = "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := orm.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = orm.Close(db) })

	s := NewStore(db)
	ctx := context.Background()
	require.NoError(t, s.AutoMigrate(ctx))
	require.NoError(t, s.SaveCommunity(ctx, fixtureCommunity()))
	require.NoError(t, s.SaveMember(ctx, &Member{GuildID: 100, UserID: 42, Username: "alice", RoleIDs: []int64{200}}))
	require.NoError(t, s.SaveMember(ctx, &Member{GuildID: 100, UserID: 43, Username: "bob", RoleIDs: []int64{300}}))
	require.NoError(t, s.SaveToken(ctx, "abc", 42))
	return s
}

func TestStoreResolveUser(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, err := s.ResolveUser(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = s.ResolveUser(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.SaveToken(ctx, "abc", 43))
	id, err = s.ResolveUser(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(43), id)

	require.NoError(t, s.RevokeToken(ctx, "abc"))
	_, err = s.ResolveUser(ctx, "abc")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStoreGetCommunityAndMember(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	c, err := s.GetCommunity(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "guild", c.Name)
	require.Len(t, c.Roles, 3)
	assert.Equal(t, int64(100), c.Roles[0].ID)
	require.Len(t, c.Channels, 2)
	assert.Equal(t, int64(500), c.Channels[0].ID)

	_, err = s.GetCommunity(ctx, 999)
	assert.True(t, errors.Is(err, ErrNotFound))

	m, err := s.GetMember(ctx, c, 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200}, m.RoleIDs)
	assert.Equal(t, permView|permManage, m.Permissions)

	admin, err := s.GetMember(ctx, c, 43)
	require.NoError(t, err)
	assert.Equal(t, PermAll, admin.Permissions)

	_, err = s.GetMember(ctx, c, 7)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.DeleteMember(ctx, 100, 42))
	_, err = s.GetMember(ctx, c, 42)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolvePermissions(t *testing.T) {
	c := fixtureCommunity()

	tests := []struct {
		name      string
		member    Member
		wantRoles []int64
		wantPerms int64
	}{
		{"default only", Member{UserID: 5}, []int64{100}, permView},
		{"unknown role dropped", Member{UserID: 5, RoleIDs: []int64{999, 200}}, []int64{100, 200}, permView | permManage},
		{"explicit default not duplicated", Member{UserID: 5, RoleIDs: []int64{100}}, []int64{100}, permView},
		{"administrator", Member{UserID: 5, RoleIDs: []int64{300}}, []int64{100, 300}, PermAll},
		{"owner", Member{UserID: 1}, []int64{100}, PermAll},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.member
			ResolvePermissions(c, &m)
			assert.Equal(t, tt.wantRoles, m.RoleIDs)
			assert.Equal(t, tt.wantPerms, m.Permissions)
		})
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	d := NewMemory()
	d.AddToken("abc", 42)
	d.AddCommunity(fixtureCommunity())
	d.AddMember(&Member{GuildID: 100, UserID: 42, Username: "alice", RoleIDs: []int64{200}})

	id, err := d.ResolveUser(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	c, err := d.GetCommunity(ctx, 100)
	require.NoError(t, err)
	c.Roles[0].Name = "mutated"

	again, _ := d.GetCommunity(ctx, 100)
	assert.Equal(t, "admin", again.Roles[0].Name)

	m, err := d.GetMember(ctx, c, 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200}, m.RoleIDs)

	d.RemoveMember(100, 42)
	_, err = d.GetMember(ctx, c, 42)
	assert.True(t, errors.Is(err, ErrNotFound))

	d.RevokeToken("abc")
	_, err = d.ResolveUser(ctx, "abc")
	assert.True(t, errors.Is(err, ErrNotFound))
}

type countingResolver struct {
	calls atomic.Int32
	users map[string]int64
}

func (r *countingResolver) ResolveUser(ctx context.Context, token string) (int64, error) {
	r.calls.Add(1)
	time.Sleep(10 * time.Millisecond)
	if id, ok := r.users[token]; ok {
		return id, nil
	}
	return 0, ErrNotFound
}

func TestCachedResolver(t *testing.T) {
	ctx := context.Background()
	c, err := cache.New(nil)
	require.NoError(t, err)
	defer c.Close()

	next := &countingResolver{users: map[string]int64{"abc": 42}}
	r := NewCachedResolver(next, c, time.Minute)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := r.ResolveUser(ctx, "abc")
			assert.NoError(t, err)
			assert.Equal(t, int64(42), id)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), next.calls.Load())

	// 未命中不缓存
	_, err = r.ResolveUser(ctx, "bad")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = r.ResolveUser(ctx, "bad")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, int32(3), next.calls.Load())

	require.NoError(t, r.Invalidate(ctx, "abc"))
	_, err = r.ResolveUser(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int32(4), next.calls.Load())
}

func TestSnapshotWireFormat(t *testing.T) {
	s := NewSnapshot()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	c := fixtureCommunity()
	m := &Member{GuildID: 100, UserID: 42, Username: "alice", RoleIDs: []int64{200}}
	ResolvePermissions(c, m)

	raw, err := json.Marshal(map[string]any{
		"guild":  s.SerializeCommunity(c),
		"member": s.SerializeMember(m),
	})
	require.NoError(t, err)

	var got struct {
		Guild struct {
			ID      int64   `json:"id"`
			OwnerID int64   `json:"owner_id"`
			IconURL *string `json:"icon_url"`
			Roles   []struct {
				ID          int64 `json:"id"`
				DefaultRole bool  `json:"default_role"`
			} `json:"roles"`
			Channels []map[string]any `json:"channels"`
		} `json:"guild"`
		Member map[string]any `json:"member"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))

	assert.Equal(t, int64(100), got.Guild.ID)
	assert.Equal(t, int64(1), got.Guild.OwnerID)
	assert.Nil(t, got.Guild.IconURL)
	require.Len(t, got.Guild.Roles, 3)
	assert.True(t, got.Guild.Roles[0].DefaultRole)
	assert.Equal(t, []int64{100, 200, 300}, []int64{got.Guild.Roles[0].ID, got.Guild.Roles[1].ID, got.Guild.Roles[2].ID})
	require.Len(t, got.Guild.Channels, 2)
	assert.Equal(t, map[string]any{}, got.Guild.Channels[0]["permission_overwrites"])
	assert.Nil(t, got.Guild.Channels[0]["parent_id"])
	assert.Equal(t, float64(500), got.Guild.Channels[1]["parent_id"])

	assert.Equal(t, "alice", got.Member["display_name"])
	assert.Equal(t, "2024-05-01T12:00:00Z", got.Member["joined_at"])
	assert.Equal(t, []any{float64(100), float64(200)}, got.Member["roles"])
	assert.Equal(t, float64(permView|permManage), got.Member["permissions"])
}
