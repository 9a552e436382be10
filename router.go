package pushgate

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouterGroup 路由组
type RouterGroup struct {
	group *gin.RouterGroup
}

// Group 创建子路由组
func (rg *RouterGroup) Group(path string, middlewares ...HandlerFunc) *RouterGroup {
	return &RouterGroup{group: rg.group.Group(path, WrapMiddlewares(middlewares...)...)}
}

// Use 注册中间件
func (rg *RouterGroup) Use(middlewares ...HandlerFunc) {
	rg.group.Use(WrapMiddlewares(middlewares...)...)
}

func (rg *RouterGroup) handlers(handler HandlerFunc, middlewares []HandlerFunc) []gin.HandlerFunc {
	return append(WrapMiddlewares(middlewares...), wrap(handler))
}

// GET 注册 GET 路由
func (rg *RouterGroup) GET(path string, handler HandlerFunc, middlewares ...HandlerFunc) {
	rg.group.GET(path, rg.handlers(handler, middlewares)...)
}

// POST 注册 POST 路由
func (rg *RouterGroup) POST(path string, handler HandlerFunc, middlewares ...HandlerFunc) {
	rg.group.POST(path, rg.handlers(handler, middlewares)...)
}

// Handle 注册原生 http.Handler
func (rg *RouterGroup) Handle(method, path string, h http.Handler) {
	rg.group.Handle(method, path, gin.WrapH(h))
}

// RouteRegister 路由注册函数类型
type RouteRegister func(path string, handler HandlerFunc, middlewares ...HandlerFunc)

// Handle0 绑定 JSON 请求体后调用 handler，成功时响应 data=null
func Handle0[Req any](register RouteRegister, path string, handler func(*Context, *Req) error, middlewares ...HandlerFunc) {
	register(path, func(c *Context) {
		var req Req
		if err := c.ShouldBindJSON(&req); err != nil {
			c.RespondError(ErrBadRequest.WithError(err))
			return
		}
		if err := handler(c, &req); err != nil {
			c.RespondError(err)
			return
		}
		c.Nil()
	}, middlewares...)
}

// HandleOnly 无请求参数，有响应数据
func HandleOnly[Resp any](register RouteRegister, path string, handler func(*Context) (*Resp, error), middlewares ...HandlerFunc) {
	register(path, func(c *Context) {
		resp, err := handler(c)
		if err != nil {
			c.RespondError(err)
			return
		}
		c.Success(resp)
	}, middlewares...)
}
