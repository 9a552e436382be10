// Package metrics 网关的 Prometheus 指标
//
// 指标：
//   - pushgate_connections / pushgate_communities：当前连接数与社区数
//   - pushgate_rejections_total{reason}：握手阶段的拒绝
//   - pushgate_heartbeats_total、pushgate_unknown_events_total、pushgate_invalid_frames_total
//   - pushgate_delivered_total、pushgate_delivery_failures_total：逐连接写入结果
//   - pushgate_broadcasts_total{scope}
//
// 用法：
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	mgr, _ := gateway.NewManager(resolver, dir, gateway.WithMetrics(m))
//	r.GET("/metrics", gin.WrapH(metrics.Handler(reg)))
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tokmz/pushgate/pkg/gateway"
)

const namespace = "pushgate"

// Prometheus gateway.Metrics 的 Prometheus 实现
type Prometheus struct {
	connections      prometheus.Gauge
	communities      prometheus.Gauge
	rejections       *prometheus.CounterVec
	heartbeats       prometheus.Counter
	unknownEvents    prometheus.Counter
	invalidFrames    prometheus.Counter
	delivered        prometheus.Counter
	deliveryFailures prometheus.Counter
	broadcasts       *prometheus.CounterVec
}

var _ gateway.Metrics = (*Prometheus)(nil)

// New 在 reg 上注册全部指标，reg 为 nil 时使用默认注册表
func New(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	p := &Prometheus{
		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of open gateway connections",
		}),
		communities: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "communities",
			Help:      "Number of guilds with at least one open connection",
		}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Connections rejected before the session opened",
		}, []string{"reason"}),
		heartbeats: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "HEARTBEAT frames received",
		}),
		unknownEvents: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_events_total",
			Help:      "Well-formed frames with an unrecognised event",
		}),
		invalidFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_frames_total",
			Help:      "Frames that were not a valid event envelope",
		}),
		delivered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivered_total",
			Help:      "Messages written to a connection",
		}),
		deliveryFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Failed writes; each one pruned its connection",
		}),
		broadcasts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Broadcast calls by scope",
		}, []string{"scope"}),
	}

	// 预先创建标签，避免首次拒绝前序列缺失
	for _, reason := range []string{
		gateway.RejectMissingParams, gateway.RejectInvalidParams, gateway.RejectTokenInvalid,
		gateway.RejectNotMember, gateway.RejectTooMany, gateway.RejectShuttingDown, gateway.RejectInternal,
	} {
		p.rejections.WithLabelValues(reason)
	}
	p.broadcasts.WithLabelValues(gateway.ScopeGuild)
	p.broadcasts.WithLabelValues(gateway.ScopeAll)
	return p
}

// NewRegistry 带 Go 运行时与进程指标的注册表
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 暴露 reg 的 /metrics 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func (p *Prometheus) SetConnections(n int) { p.connections.Set(float64(n)) }
func (p *Prometheus) SetCommunities(n int) { p.communities.Set(float64(n)) }

func (p *Prometheus) IncRejections(reason string) { p.rejections.WithLabelValues(reason).Inc() }

func (p *Prometheus) IncHeartbeats()       { p.heartbeats.Inc() }
func (p *Prometheus) IncUnknownEvents()    { p.unknownEvents.Inc() }
func (p *Prometheus) IncInvalidFrames()    { p.invalidFrames.Inc() }
func (p *Prometheus) IncDelivered()        { p.delivered.Inc() }
func (p *Prometheus) IncDeliveryFailures() { p.deliveryFailures.Inc() }

func (p *Prometheus) IncBroadcasts(scope string) { p.broadcasts.WithLabelValues(scope).Inc() }
