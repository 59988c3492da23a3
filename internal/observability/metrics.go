package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeSessions   prometheus.Gauge
	sessionsCreated  *prometheus.CounterVec
	sessionsEvicted  prometheus.Counter
	messagesAppended *prometheus.CounterVec

	turnTotal    *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec

	upstreamTotal    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec

	queueWaiting prometheus.Gauge
	queueWait    prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "copilot_active_sessions",
					Help: "Current number of sessions held in memory.",
				},
			),
			sessionsCreated: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "copilot_sessions_created_total",
					Help: "Total sessions created by domain.",
				},
				[]string{"domain"},
			),
			sessionsEvicted: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "copilot_sessions_evicted_total",
					Help: "Total sessions removed by the retention sweeper.",
				},
			),
			messagesAppended: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "copilot_messages_appended_total",
					Help: "Total messages appended to existing sessions by role.",
				},
				[]string{"role"},
			),
			turnTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "copilot_turns_total",
					Help: "Total chat turns by domain, turn type and outcome.",
				},
				[]string{"domain", "turn", "outcome"},
			),
			turnDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "copilot_turn_duration_seconds",
					Help:    "Chat turn duration in seconds by domain.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"domain"},
			),
			upstreamTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "copilot_upstream_calls_total",
					Help: "Total LLM provider calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			upstreamDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "copilot_upstream_duration_seconds",
					Help:    "LLM provider call duration in seconds by provider.",
					Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
				},
				[]string{"provider"},
			),
			httpRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "copilot_http_requests_total",
					Help: "Total gateway requests by transport and status code.",
				},
				[]string{"transport", "code"},
			),
			queueWaiting: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "copilot_turn_queue_waiting",
					Help: "Turns waiting behind another turn on the same session.",
				},
			),
			queueWait: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "copilot_turn_queue_wait_seconds",
					Help:    "Time a turn waited for its session lane in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.sessionsCreated,
			m.sessionsEvicted,
			m.messagesAppended,
			m.turnTotal,
			m.turnDuration,
			m.upstreamTotal,
			m.upstreamDuration,
			m.httpRequests,
			m.queueWaiting,
			m.queueWait,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func RecordSessionCreated(domain string) {
	getMetrics().sessionsCreated.WithLabelValues(domain).Inc()
}

func RecordSessionsEvicted(count int) {
	getMetrics().sessionsEvicted.Add(float64(count))
}

func RecordMessageAppended(role string) {
	getMetrics().messagesAppended.WithLabelValues(role).Inc()
}

// RecordTurn records one dispatcher turn. turn is "new" or "continue";
// outcome is "success" or an error kind.
func RecordTurn(domain, turn, outcome string, duration time.Duration) {
	m := getMetrics()
	m.turnTotal.WithLabelValues(domain, turn, outcome).Inc()
	m.turnDuration.WithLabelValues(domain).Observe(duration.Seconds())
}

func RecordUpstreamCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.upstreamTotal.WithLabelValues(provider, status).Inc()
	m.upstreamDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordHTTPRequest(transport string, code int) {
	getMetrics().httpRequests.WithLabelValues(transport, statusLabel(code)).Inc()
}

func SetQueueWaiting(count int) {
	getMetrics().queueWaiting.Set(float64(count))
}

func RecordQueueWait(wait time.Duration) {
	getMetrics().queueWait.Observe(wait.Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
