package metrics

import (
	"strconv"
	"time"

	"quizit-service/internal/app"
	"quizit-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service's Prometheus metrics and implements app.Metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	submissions     *prometheus.CounterVec
	violations      *prometheus.CounterVec
	sessions        *prometheus.CounterVec
	liveConnections prometheus.Gauge
}

// New registers the collectors on a fresh registry so tests and servers never collide.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		gatherer: reg,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizit_submissions_total",
				Help: "Submit attempts by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizit_violations_total",
				Help: "Proctoring violations by resulting verdict",
			},
			[]string{"verdict"},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizit_sessions_started_total",
				Help: "Sessions handed out, split by created or resumed",
			},
			[]string{"kind"},
		),
		liveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quizit_ws_connections",
			Help: "Open live session connections",
		}),
	}
	reg.MustRegister(
		c.requests,
		c.requestDuration,
		c.submissions,
		c.violations,
		c.sessions,
		c.liveConnections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) SubmissionObserved(trigger domain.SubmitTrigger, outcome string) {
	c.submissions.WithLabelValues(string(trigger), outcome).Inc()
}

func (c *Collector) ViolationObserved(verdict app.Verdict) {
	c.violations.WithLabelValues(string(verdict)).Inc()
}

func (c *Collector) SessionStarted(resumed bool) {
	kind := "created"
	if resumed {
		kind = "resumed"
	}
	c.sessions.WithLabelValues(kind).Inc()
}

// ConnectionOpened and ConnectionClosed track live WebSocket connections.
func (c *Collector) ConnectionOpened() { c.liveConnections.Inc() }
func (c *Collector) ConnectionClosed() { c.liveConnections.Dec() }

// Middleware records request count and latency per route template.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		endpoint := ctx.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		c.requests.WithLabelValues(
			ctx.Request.Method,
			endpoint,
			strconv.Itoa(ctx.Writer.Status()),
		).Inc()
		c.requestDuration.WithLabelValues(
			ctx.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
	return func(ctx *gin.Context) {
		h.ServeHTTP(ctx.Writer, ctx.Request)
	}
}
