package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/pushgate/pkg/directory"
)

// newDirectory 社区 100 有成员 42、43，社区 200 有成员 44
func newDirectory() *directory.Memory {
	d := directory.NewMemory()
	d.AddToken("abc", 42)
	d.AddToken("bob", 43)
	d.AddToken("carol", 44)

	for _, id := range []int64{100, 200} {
		d.AddCommunity(&directory.Community{
			ID:      id,
			Name:    "guild",
			OwnerID: 1,
			Roles:   []directory.Role{{ID: id, GuildID: id, Name: "@everyone", Default: true}},
		})
	}
	d.AddMember(&directory.Member{GuildID: 100, UserID: 42, Username: "alice"})
	d.AddMember(&directory.Member{GuildID: 100, UserID: 43, Username: "bob"})
	d.AddMember(&directory.Member{GuildID: 200, UserID: 44, Username: "carol"})
	return d
}

type testServer struct {
	*Manager
	srv *httptest.Server
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	d := newDirectory()
	m, err := NewManager(d, d, append([]Option{WithAllowAllOrigins()}, opts...)...)
	require.NoError(t, err)

	srv := httptest.NewServer(m)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
		srv.Close()
	})
	return &testServer{Manager: m, srv: srv}
}

func (s *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/gateway?" + query
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// open 连接并读完 PREPARE 与 IDENTIFY
func (s *testServer) open(t *testing.T, token string, guildID string) *websocket.Conn {
	t.Helper()
	ws := s.dial(t, "token="+token+"&guild_id="+guildID)
	assert.Equal(t, EventPrepare, readFrame(t, ws).Event)
	assert.Equal(t, EventIdentify, readFrame(t, ws).Event)
	return ws
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, ws *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func sendFrame(t *testing.T, ws *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func expectClose(t *testing.T, ws *websocket.Conn, code int, text string) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := ws.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, code, ce.Code)
	assert.Equal(t, text, ce.Text)
}

// fakeTransport 内存中的 Transport
type fakeTransport struct {
	mu        sync.Mutex
	written   [][]byte
	failWrite bool
	closed    bool
	control   []int
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	return 0, nil, net.ErrClosed
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite || f.closed {
		return net.ErrClosed
	}
	f.written = append(f.written, data)
	return nil
}

func (f *fakeTransport) WriteControl(mt int, _ []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.control = append(f.control, mt)
	return nil
}

func (f *fakeTransport) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeTransport) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeTransport) SetReadLimit(int64)                {}
func (f *fakeTransport) SetPongHandler(func(string) error) {}
func (f *fakeTransport) RemoteAddr() net.Addr              { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

// recordingMetrics 记录调用次数
type recordingMetrics struct {
	NoopMetrics
	mu         sync.Mutex
	rejections map[string]int
	heartbeats int
	unknown    int
	invalid    int
	failures   int
	broadcasts map[string]int

	connections int
	communities int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{rejections: map[string]int{}, broadcasts: map[string]int{}}
}

func (r *recordingMetrics) IncRejections(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejections[reason]++
}

func (r *recordingMetrics) IncHeartbeats() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeats++
}

func (r *recordingMetrics) IncUnknownEvents() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unknown++
}

func (r *recordingMetrics) IncInvalidFrames() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalid++
}

func (r *recordingMetrics) IncDeliveryFailures() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func (r *recordingMetrics) IncBroadcasts(scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts[scope]++
}

func (r *recordingMetrics) SetConnections(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections = n
}

func (r *recordingMetrics) SetCommunities(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.communities = n
}

func (r *recordingMetrics) gauges() (connections, communities int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connections, r.communities
}

func (r *recordingMetrics) rejected(reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rejections[reason]
}
