package pushgate

import "github.com/tokmz/pushgate/pkg/tracing"

// ContextTraceIDKey 与 tracing.Middleware 写入的键一致
const ContextTraceIDKey = tracing.TraceIDKey

// GetContextTraceID 获取当前请求的 trace_id
func GetContextTraceID(c *Context) string {
	return c.GetString(ContextTraceIDKey)
}
