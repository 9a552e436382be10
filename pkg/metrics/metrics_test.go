package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/pushgate/pkg/gateway"
)

// value 从注册表中取出指定序列的值，labels 为 name=value 对
func value(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for i := 0; i+1 < len(labels); i += 2 {
				found := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == labels[i] && lp.GetValue() == labels[i+1] {
						found = true
					}
				}
				if !found {
					continue next
				}
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func TestPrometheusRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := New(reg)

	p.SetConnections(3)
	p.SetCommunities(2)
	p.IncRejections(gateway.RejectNotMember)
	p.IncRejections(gateway.RejectNotMember)
	p.IncHeartbeats()
	p.IncUnknownEvents()
	p.IncInvalidFrames()
	p.IncDelivered()
	p.IncDelivered()
	p.IncDeliveryFailures()
	p.IncBroadcasts(gateway.ScopeAll)

	assert.Equal(t, 3.0, value(t, reg, "pushgate_connections"))
	assert.Equal(t, 2.0, value(t, reg, "pushgate_communities"))
	assert.Equal(t, 2.0, value(t, reg, "pushgate_rejections_total", "reason", gateway.RejectNotMember))
	assert.Equal(t, 0.0, value(t, reg, "pushgate_rejections_total", "reason", gateway.RejectTokenInvalid))
	assert.Equal(t, 1.0, value(t, reg, "pushgate_heartbeats_total"))
	assert.Equal(t, 1.0, value(t, reg, "pushgate_unknown_events_total"))
	assert.Equal(t, 1.0, value(t, reg, "pushgate_invalid_frames_total"))
	assert.Equal(t, 2.0, value(t, reg, "pushgate_delivered_total"))
	assert.Equal(t, 1.0, value(t, reg, "pushgate_delivery_failures_total"))
	assert.Equal(t, 1.0, value(t, reg, "pushgate_broadcasts_total", "scope", gateway.ScopeAll))
	assert.Equal(t, 0.0, value(t, reg, "pushgate_broadcasts_total", "scope", gateway.ScopeGuild))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := NewRegistry()
	p := New(reg)
	p.SetConnections(1)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "pushgate_connections 1")
	assert.Contains(t, string(body), "go_goroutines")
}
