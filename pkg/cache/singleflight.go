package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultLoadTimeout 合并回源的默认超时
const DefaultLoadTimeout = 10 * time.Second

// Group 合并同一 key 的并发回源
// 回源不继承任何调用方的取消，只受 Timeout 限制
type Group struct {
	sf singleflight.Group

	// Timeout 单次回源的超时，0 使用 DefaultLoadTimeout
	Timeout time.Duration
}

func (g *Group) loadTimeout() time.Duration {
	if g.Timeout > 0 {
		return g.Timeout
	}
	return DefaultLoadTimeout
}

// Forget 清除 key 的 in-flight 状态，下次请求重新回源
func (g *Group) Forget(key string) {
	g.sf.Forget(key)
}

// Remember 先读缓存，未命中则调用 fn 并写回
// fn 返回错误时不写缓存
func Remember[T any](
	ctx context.Context,
	c Cache,
	key string,
	ttl time.Duration,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var result T
	if err := c.Get(ctx, key, &result); err == nil {
		return result, nil
	}
	result, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	_ = c.Set(ctx, key, result, ttl)
	return result, nil
}

// RememberWithLock 与 Remember 相同，但同一 key 的并发请求只回源一次
// 调用方的 ctx 取消只让该调用方提前返回，回源继续为其他等待者完成
func RememberWithLock[T any](
	ctx context.Context,
	g *Group,
	c Cache,
	key string,
	ttl time.Duration,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	ch := g.sf.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.loadTimeout())
		defer cancel()
		return Remember(loadCtx, c, key, ttl, fn)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	if res.Err != nil {
		var zero T
		return zero, res.Err
	}
	result, ok := res.Val.(T)
	if !ok {
		var zero T
		return zero, ErrCacheSerialization.WithMessage("invalid result type")
	}
	return result, nil
}
