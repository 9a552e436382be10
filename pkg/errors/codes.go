package errors

/*
	通用错误码 1xxx，HTTP 接口共用
	网关错误码 4xxx（消息即 websocket 关闭原因）
	目录错误码 7xxx，转发错误码 8xxx
*/

var (
	// ErrServer 服务器错误
	ErrServer = New(1000, "internal server error", 500)
	// ErrBadRequest 请求参数错误
	ErrBadRequest = New(1001, "bad request", 400)
	// ErrUnauthorized 未授权
	ErrUnauthorized = New(1002, "unauthorized", 401)
	// ErrTooManyRequests 请求过于频繁
	ErrTooManyRequests = New(1003, "too many requests", 429)
)
