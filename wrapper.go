package pushgate

import "github.com/gin-gonic/gin"

// HandlerFunc 路由处理函数和中间件函数，中间件需要调用 c.Next()
type HandlerFunc func(*Context)

func wrap(fn HandlerFunc) gin.HandlerFunc {
	if fn == nil {
		panic("pushgate: handler/middleware cannot be nil")
	}
	return func(c *gin.Context) {
		fn(&Context{ctx: c})
	}
}

// WrapHandler 转换为 gin.HandlerFunc
func WrapHandler(handler HandlerFunc) gin.HandlerFunc {
	return wrap(handler)
}

// WrapMiddlewares 批量转换中间件
func WrapMiddlewares(middlewares ...HandlerFunc) []gin.HandlerFunc {
	wrapped := make([]gin.HandlerFunc, len(middlewares))
	for i, m := range middlewares {
		wrapped[i] = wrap(m)
	}
	return wrapped
}
