// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 对外暴露的 Prometheus 指标集
type Metrics struct {
	OnlinePlayers    prometheus.Gauge
	ActiveRooms      prometheus.Gauge
	MessagesReceived prometheus.Counter
	GamesStarted     prometheus.Counter
	GamesCompleted   prometheus.Counter
	ProtocolErrors   prometheus.Counter
	MessageLatency   prometheus.Histogram
}

// NewMetrics 注册全部指标。namespace 作为指标名前缀，
// 同一进程内只能调用一次。
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected players",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of rooms",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of client messages received",
		}),
		GamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_started_total",
			Help:      "Total number of games started",
		}),
		GamesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_completed_total",
			Help:      "Total number of games played to the reveal",
		}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Total number of rejected client messages",
		}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	prometheus.MustRegister(
		m.OnlinePlayers,
		m.ActiveRooms,
		m.MessagesReceived,
		m.GamesStarted,
		m.GamesCompleted,
		m.ProtocolErrors,
		m.MessageLatency,
	)

	return m
}

// Monitor 聚合运行时统计。会话和房间通过它上报，
// /metrics 给 Prometheus 抓取，/debug/vars 留给人肉排查。
type Monitor struct {
	metrics      *Metrics
	startTime    time.Time
	messageCount atomic.Int64
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

// StartServer 在独立端口上起指标服务
func (m *Monitor) StartServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())

	expvar.Publish("uptime_seconds", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))
	expvar.Publish("messages_received", expvar.Func(func() interface{} {
		return m.messageCount.Load()
	}))

	go http.ListenAndServe(addr, nil)
}

func (m *Monitor) IncOnlinePlayers() {
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) IncMessagesReceived() {
	m.metrics.MessagesReceived.Inc()
	m.messageCount.Add(1)
}

func (m *Monitor) IncProtocolErrors() {
	m.metrics.ProtocolErrors.Inc()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	m.metrics.MessageLatency.Observe(duration.Seconds())
}

// GameStarted 与 GameCompleted 使 Monitor 可直接插进房间的
// 统计回调。
func (m *Monitor) GameStarted() {
	m.metrics.GamesStarted.Inc()
}

func (m *Monitor) GameCompleted() {
	m.metrics.GamesCompleted.Inc()
}
