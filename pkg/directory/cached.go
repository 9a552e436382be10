package directory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/tokmz/pushgate/pkg/cache"
)

// CachedResolver 为 Resolver 加一层缓存
// 只缓存解析成功的结果，失败（包括 token 不存在）每次都回源，
// 同一 token 的并发请求只回源一次
type CachedResolver struct {
	next  Resolver
	cache cache.Cache
	group cache.Group
	ttl   time.Duration
}

// NewCachedResolver 创建带缓存的 Resolver
func NewCachedResolver(next Resolver, c cache.Cache, ttl time.Duration) *CachedResolver {
	return &CachedResolver{next: next, cache: c, ttl: ttl}
}

func (r *CachedResolver) ResolveUser(ctx context.Context, token string) (int64, error) {
	return cache.RememberWithLock(ctx, &r.group, r.cache, tokenKey(token), r.ttl,
		func(ctx context.Context) (int64, error) {
			return r.next.ResolveUser(ctx, token)
		})
}

// Invalidate 令 token 的缓存失效，吊销 token 后调用
func (r *CachedResolver) Invalidate(ctx context.Context, token string) error {
	key := tokenKey(token)
	r.group.Forget(key)
	return r.cache.Delete(ctx, key)
}

// tokenKey 缓存键不保存 token 明文
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "oauth:" + hex.EncodeToString(sum[:])
}
