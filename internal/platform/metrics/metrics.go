package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics は Registry ごとに持つ（テストで毎回作り直せるように promauto のグローバル登録は使わない）
type Metrics struct {
	Registry *prometheus.Registry

	httpReqTotal *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	transitions  *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		httpReqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libris_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "libris_http_request_duration_seconds",
			Help:    "Request latency",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method", "route"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libris_lifecycle_transitions_total",
			Help: "Borrow request / borrow state transitions",
		}, []string{"entity", "transition"}),
	}
	reg.MustRegister(
		m.httpReqTotal,
		m.httpLatency,
		m.transitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		timer := prometheus.NewTimer(m.httpLatency.WithLabelValues(c.Request.Method, route))
		c.Next()
		timer.ObserveDuration()
		m.httpReqTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Transition: entity = "borrow_request" | "borrow"
func (m *Metrics) Transition(entity, transition string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, transition).Inc()
}

func (m *Metrics) TransitionCounter(entity, transition string) prometheus.Counter {
	return m.transitions.WithLabelValues(entity, transition)
}

func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}
