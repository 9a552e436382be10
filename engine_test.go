package pushgate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tokmz/pushgate/pkg/directory"
	"github.com/tokmz/pushgate/pkg/gateway"
	"github.com/tokmz/pushgate/pkg/logger"
	"github.com/tokmz/pushgate/pkg/metrics"
)

const adminToken = "s3cret"

func newDirectory() *directory.Memory {
	d := directory.NewMemory()
	d.AddToken("abc", 42)
	d.AddCommunity(&directory.Community{
		ID:    100,
		Name:  "guild",
		Roles: []directory.Role{{ID: 100, GuildID: 100, Name: "@everyone", Default: true}},
	})
	d.AddMember(&directory.Member{GuildID: 100, UserID: 42, Username: "alice"})
	return d
}

type fixture struct {
	engine  *Engine
	manager *gateway.Manager
	srv     *httptest.Server
}

func newFixture(t *testing.T, routes GatewayRoutes, opts ...Option) *fixture {
	t.Helper()
	d := newDirectory()
	reg := prometheus.NewRegistry()
	m, err := gateway.NewManager(d, d,
		gateway.WithAllowAllOrigins(),
		gateway.WithMetrics(metrics.New(reg)),
	)
	require.NoError(t, err)

	e := New(logger.NewNop(), append([]Option{WithMode(gin.TestMode)}, opts...)...)
	routes.Manager = m
	routes.Metrics = metrics.Handler(reg)
	e.MountGateway(routes)

	srv := httptest.NewServer(e.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
		srv.Close()
	})
	return &fixture{engine: e, manager: m, srv: srv}
}

func (f *fixture) post(t *testing.T, path, token, body string) (int, Response) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(t, req)
}

func (f *fixture) get(t *testing.T, path string) (int, Response) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.srv.URL+path, nil)
	require.NoError(t, err)
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (int, Response) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var r Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))
	return resp.StatusCode, r
}

func (f *fixture) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/gateway?" + query
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) (string, string) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, ws.ReadJSON(&f))
	return f.Event, string(f.Data)
}

func TestHTTPErrorCodes(t *testing.T) {
	all := []error{ErrBadRequest, ErrUnauthorized, ErrTooMany, ErrServer}
	for i, a := range all {
		for j, b := range all {
			assert.Equal(t, i == j, errors.Is(a, b), "%v vs %v", a, b)
		}
	}
	assert.Equal(t, http.StatusBadRequest, ErrBadRequest.HttpCode)
	assert.Equal(t, http.StatusTooManyRequests, ErrTooMany.HttpCode)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, GatewayRoutes{})
	status, resp := f.get(t, "/healthz")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, CodeSuccess, resp.Code)
	assert.Equal(t, "success", resp.Message)
	assert.Equal(t, map[string]any{"status": "ok", "connections": 0.0, "communities": 0.0}, resp.Data)
}

func TestBroadcastRoute(t *testing.T) {
	f := newFixture(t, GatewayRoutes{AdminToken: adminToken})
	ws := f.dial(t, "token=abc&guild_id=100")
	ev, _ := readEvent(t, ws)
	assert.Equal(t, gateway.EventPrepare, ev)
	ev, _ = readEvent(t, ws)
	assert.Equal(t, gateway.EventIdentify, ev)

	status, resp := f.post(t, "/broadcast", "", `{"guild_id":100,"event":"E","data":{}}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, ErrUnauthorized.Code, resp.Code)

	status, resp = f.post(t, "/broadcast", "wrong", `{"guild_id":100,"event":"E","data":{}}`)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, resp = f.post(t, "/broadcast", adminToken, `{"guild_id":100}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ErrBadRequest.Code, resp.Code)

	status, resp = f.post(t, "/broadcast", adminToken, `{"event":"E","data":[1]}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp = f.post(t, "/broadcast", adminToken, `{"guild_id":100,"event":"MESSAGE_CREATE","data":{"content":"hi"}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, CodeSuccess, resp.Code)
	assert.Nil(t, resp.Data)

	ev, data := readEvent(t, ws)
	assert.Equal(t, "MESSAGE_CREATE", ev)
	assert.JSONEq(t, `{"content":"hi"}`, data)

	status, _ = f.post(t, "/broadcast", adminToken, `{"event":"MAINTENANCE"}`)
	require.Equal(t, http.StatusOK, status)
	ev, data = readEvent(t, ws)
	assert.Equal(t, "MAINTENANCE", ev)
	assert.JSONEq(t, `{}`, data)

	_, resp = f.get(t, "/healthz")
	assert.Equal(t, 1.0, resp.Data.(map[string]any)["connections"])
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t, GatewayRoutes{})
	f.dial(t, "guild_id=100")

	assert.Eventually(t, func() bool {
		resp, err := http.Get(f.srv.URL + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(body), `pushgate_rejections_total{reason="missing_params"} 1`)
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRateLimitHandshake(t *testing.T) {
	f := newFixture(t, GatewayRoutes{RateLimit: RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}})

	// 第一次通过限流，但不是 WebSocket 请求
	resp, err := http.Get(f.srv.URL + "/gateway")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	status, r := f.get(t, "/gateway")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, ErrTooMany.Code, r.Code)
}

func TestRecoveryAndLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := logger.FromZap(zap.New(core))

	e := New(log, WithMode(gin.TestMode))
	e.Use(Logger(log))
	e.RouterGroup().GET("/panic", func(*Context) { panic("boom") })
	e.RouterGroup().GET("/ok", func(c *Context) { c.Success("pong") })

	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":1000,"data":null,"message":"internal server error"}`, w.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())

	w = httptest.NewRecorder()
	e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":0,"data":"pong","message":"success"}`, w.Body.String())

	w = httptest.NewRecorder()
	e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	// panic 的请求由 Recovery 记录，Logger 不再记录
	requests := logs.FilterMessage("request").All()
	require.Len(t, requests, 2)
	assert.Equal(t, zap.InfoLevel, requests[0].Level)
	assert.Equal(t, zap.WarnLevel, requests[1].Level)
}

func TestServeGracefulShutdown(t *testing.T) {
	d := newDirectory()
	m, err := gateway.NewManager(d, d, gateway.WithAllowAllOrigins())
	require.NoError(t, err)

	afterCalled := make(chan struct{})
	e := New(logger.NewNop(),
		WithMode(gin.TestMode),
		WithShutdownTimeout(5*time.Second),
		WithBeforeShutdown(func(ctx context.Context) { _ = m.Shutdown(ctx) }),
		WithAfterShutdown(func() { close(afterCalled) }),
	)
	e.MountGateway(GatewayRoutes{Manager: m})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Serve(ctx, ln) }()

	u := "ws://" + ln.Addr().String() + "/gateway?token=abc&guild_id=100"
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer ws.Close()
	readEvent(t, ws)
	readEvent(t, ws)

	cancel()
	require.NoError(t, <-done)
	<-afterCalled

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = ws.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseGoingAway, ce.Code)
}

func TestBanner(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:8080", listenURL(":8080"))
	assert.Equal(t, "http://0.0.0.0:9000", listenURL("0.0.0.0:9000"))
	assert.Equal(t, "http://127.0.0.1:80", listenURL("80"))

	var buf bytes.Buffer
	writeBanner(&buf, ":8080", gin.ReleaseMode, gin.RoutesInfo{{Method: "GET", Path: "/gateway", Handler: "h"}})
	assert.Contains(t, buf.String(), "/gateway")
	assert.Contains(t, buf.String(), "listening on http://127.0.0.1:8080")
}
