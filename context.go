package pushgate

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tokmz/pushgate/pkg/errors"
)

// HTTP 接口使用 pkg/errors 的通用错误码
var (
	ErrBadRequest   = errors.ErrBadRequest
	ErrUnauthorized = errors.ErrUnauthorized
	ErrTooMany      = errors.ErrTooManyRequests
	ErrServer       = errors.ErrServer
)

// Context 包装 gin.Context
type Context struct {
	ctx *gin.Context
}

// NewContext 用于测试
func NewContext(c *gin.Context) *Context {
	return &Context{ctx: c}
}

// Request 底层 *http.Request
func (c *Context) Request() *http.Request {
	return c.ctx.Request
}

// Writer 底层 ResponseWriter，支持 Hijack
func (c *Context) Writer() gin.ResponseWriter {
	return c.ctx.Writer
}

// FullPath 路由模板
func (c *Context) FullPath() string {
	return c.ctx.FullPath()
}

// ShouldBindJSON 绑定 JSON 请求体
func (c *Context) ShouldBindJSON(obj any) error {
	return c.ctx.ShouldBindJSON(obj)
}

// GetHeader 请求头
func (c *Context) GetHeader(key string) string {
	return c.ctx.GetHeader(key)
}

// ClientIP 客户端 IP
func (c *Context) ClientIP() string {
	return c.ctx.ClientIP()
}

func (c *Context) Set(key string, value any) {
	c.ctx.Set(key, value)
}

func (c *Context) GetString(key string) string {
	return c.ctx.GetString(key)
}

func (c *Context) Next() {
	c.ctx.Next()
}

func (c *Context) Abort() {
	c.ctx.Abort()
}

func (c *Context) IsAborted() bool {
	return c.ctx.IsAborted()
}

// JSON 原样输出
func (c *Context) JSON(code int, obj any) {
	c.ctx.JSON(code, obj)
}

// Success 成功响应
func (c *Context) Success(data any) {
	c.respond(http.StatusOK, Success(data))
}

// Nil 成功响应（无数据）
func (c *Context) Nil() {
	c.Success(nil)
}

// RespondError 错误响应，*errors.Error 使用其 HttpCode，其余按 500 处理
func (c *Context) RespondError(err error) {
	if e, ok := errors.From(err); ok {
		c.respond(e.HttpCode, Fail(e.Code, e.Message))
		return
	}
	c.respond(ErrServer.HttpCode, Fail(ErrServer.Code, ErrServer.Message))
}

// AbortWithError 错误响应并中止
func (c *Context) AbortWithError(err error) {
	c.RespondError(err)
	c.Abort()
}

func (c *Context) respond(status int, resp *Response) {
	if traceID := GetContextTraceID(c); traceID != "" {
		resp.TraceID = traceID
	}
	c.ctx.JSON(status, resp)
}

// RequestContext 请求的 context.Context，携带 tracing 中间件注入的 span
func (c *Context) RequestContext() context.Context {
	return c.ctx.Request.Context()
}
