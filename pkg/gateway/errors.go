package gateway

import "github.com/tokmz/pushgate/pkg/errors"

/*
	鉴权失败 4xxx，Message 即 websocket 关闭原因
	"社区不存在" 与 "不是成员" 共用 ErrNotMember，客户端无法区分
*/

var (
	ErrMissingParams = errors.New(4000, "Missing token or guild_id", 400)
	ErrInvalidParams = errors.New(4001, "Invalid token or guild_id", 400)
	ErrTokenInvalid  = errors.New(4002, "The token provided isn't valid", 401)
	ErrNotMember     = errors.New(4003, "You are not a member of this guild", 403)
)

var (
	ErrConnectionClosed   = errors.New(4100, "connection closed")
	ErrManagerClosed      = errors.New(4101, "server shutting down", 503)
	ErrTooManyConnections = errors.New(4102, "too many connections", 503)
	ErrInvalidFrame       = errors.New(4103, "invalid message received", 400)
	ErrInvalidConfig      = errors.New(4104, "gateway invalid config")
)
