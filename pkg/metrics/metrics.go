package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 指标管理器
type Metrics struct {
	registry *prometheus.Registry

	// HTTP请求指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 后端调用指标
	backendCallsTotal   *prometheus.CounterVec
	backendCallDuration *prometheus.HistogramVec

	// 业务指标
	feedLoadsTotal     *prometheus.CounterVec
	feedAlertsVisible  prometheus.Histogram
	alertActionsTotal  *prometheus.CounterVec
	geolocationTotal   *prometheus.CounterVec
	notificationPolls  *prometheus.CounterVec
	activeViews        prometheus.Gauge
	unauthorizedEvents prometheus.Counter
}

// NewMetrics 创建指标管理器，指标注册到独立的 registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		backendCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_calls_total",
				Help: "Outbound calls to the alert backend",
			},
			[]string{"endpoint", "outcome"},
		),
		backendCallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_call_duration_seconds",
				Help:    "Outbound call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),

		feedLoadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feed_loads_total",
				Help: "Feed fetches by outcome (ok, empty, error, stale)",
			},
			[]string{"outcome"},
		),
		feedAlertsVisible: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "feed_alerts_visible",
			Help:    "Alerts left after client side filtering",
			Buckets: prometheus.LinearBuckets(0, 10, 10),
		}),
		alertActionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alert_actions_total",
				Help: "Like, share and flag actions by outcome",
			},
			[]string{"action", "outcome"},
		),
		geolocationTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geolocation_resolutions_total",
				Help: "Location resolutions by outcome",
			},
			[]string{"outcome"},
		),
		notificationPolls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_polls_total",
				Help: "Notification refreshes by outcome",
			},
			[]string{"outcome"},
		),
		activeViews: f.NewGauge(prometheus.GaugeOpts{
			Name: "active_views",
			Help: "Per-device view instances currently held",
		}),
		unauthorizedEvents: f.NewCounter(prometheus.CounterOpts{
			Name: "session_unauthorized_total",
			Help: "401 responses that cleared a session",
		}),
	}
}

// Registry exposes the registry for the /metrics handler and tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordHTTPRequest 记录HTTP请求指标
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordBackendCall 记录后端调用
func (m *Metrics) RecordBackendCall(endpoint, outcome string, duration time.Duration) {
	m.backendCallsTotal.WithLabelValues(endpoint, outcome).Inc()
	m.backendCallDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *Metrics) RecordFeedLoad(outcome string, visible int) {
	m.feedLoadsTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" || outcome == "empty" {
		m.feedAlertsVisible.Observe(float64(visible))
	}
}

func (m *Metrics) RecordAlertAction(action string, ok bool) {
	m.alertActionsTotal.WithLabelValues(action, outcome(ok)).Inc()
}

func (m *Metrics) RecordGeolocation(outcome string) {
	m.geolocationTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordNotificationPoll(ok bool) {
	m.notificationPolls.WithLabelValues(outcome(ok)).Inc()
}

func (m *Metrics) SetActiveViews(n int) { m.activeViews.Set(float64(n)) }

func (m *Metrics) RecordUnauthorized() { m.unauthorizedEvents.Inc() }

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
