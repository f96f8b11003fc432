// Package metrics registers the Prometheus collectors for payment
// operations and HTTP serving.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

// Registry bundles the collectors so handlers and the facilitator share one
// registration without package-level state.
type Registry struct {
	registry *prometheus.Registry

	VerifyRequests     *prometheus.CounterVec
	SettleRequests     *prometheus.CounterVec
	SettleGasUsed      prometheus.Gauge
	SettleSeconds      prometheus.Histogram
	HTTPRequestSeconds *prometheus.HistogramVec
}

// NewRegistry creates and registers all collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		registry: reg,
		VerifyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "a402_verify_requests_total",
			Help: "Total number of verify requests",
		}, []string{"status"}),
		SettleRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "a402_settle_requests_total",
			Help: "Total number of settle requests",
		}, []string{"status"}),
		SettleGasUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "a402_settle_gas_used",
			Help: "Gas used by the most recent settlement transaction",
		}),
		SettleSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "a402_settle_transaction_seconds",
			Help:    "Settlement transaction duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),
		HTTPRequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.VerifyRequests,
		m.SettleRequests,
		m.SettleGasUsed,
		m.SettleSeconds,
		m.HTTPRequestSeconds,
	)
	return m
}

// ObserveVerify records one verify outcome.
func (m *Registry) ObserveVerify(valid bool) {
	status := "invalid"
	if valid {
		status = "valid"
	}
	m.VerifyRequests.WithLabelValues(status).Inc()
}

// ObserveSettle records one settle outcome and its transaction facts.
func (m *Registry) ObserveSettle(success bool, gasUsed uint64, txDuration time.Duration) {
	status := "failure"
	if success {
		status = "success"
	}
	m.SettleRequests.WithLabelValues(status).Inc()
	if gasUsed > 0 {
		m.SettleGasUsed.Set(float64(gasUsed))
	}
	if txDuration > 0 {
		m.SettleSeconds.Observe(txDuration.Seconds())
	}
}

// Handler exposes the scrape endpoint.
func (m *Registry) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RequestTimer is gin middleware observing request durations per route.
func (m *Registry) RequestTimer() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestSeconds.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
