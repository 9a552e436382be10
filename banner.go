package pushgate

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"
)

// Version 版本号
const Version = "0.3.0"

const banner = `
 ___           _                 _
| _ \_  _ _ __| |_  __ _ __ _ __| |_ ___
|  _/ || (_-<| ' \/ _' / _' / _'|  _/ -_)
|_|  \_,_/__/|_||_\__, \__,_\__,_|\__\___|
                  |___/   version %s
`

// printBanner 打印 banner 与路由表
func (e *Engine) printBanner(addr string) {
	writeBanner(os.Stdout, addr, e.config.Mode, e.engine.Routes())
}

func writeBanner(out io.Writer, addr, mode string, routes gin.RoutesInfo) {
	fPrint(out, banner, Version)
	fPrint(out, "\n")

	if len(routes) > 0 {
		printRoutes(out, routes)
		fPrint(out, "\n")
	}

	fPrint(out, "[pushgate] mode=%s go=%s os=%s/%s\n", mode, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fPrint(out, "[pushgate] listening on %s\n", listenURL(addr))
}

// listenURL ":8080" -> "http://127.0.0.1:8080"
func listenURL(addr string) string {
	switch {
	case strings.HasPrefix(addr, ":"):
		return "http://127.0.0.1" + addr
	case strings.Contains(addr, ":"):
		return "http://" + addr
	default:
		return "http://127.0.0.1:" + addr
	}
}

func printRoutes(out io.Writer, routes gin.RoutesInfo) {
	width := 0
	for _, r := range routes {
		width = max(width, len(r.Path))
	}
	for _, r := range routes {
		fPrint(out, "  %-7s %-*s --> %s\n", r.Method, width, r.Path, r.Handler)
	}
}

// silenceGin 关闭 gin 自带的输出，由 zap 统一记录
func silenceGin() {
	gin.DefaultWriter = io.Discard
	gin.DefaultErrorWriter = io.Discard
}

func fPrint(out io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(out, format, a...)
}
