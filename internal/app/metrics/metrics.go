package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "presale_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "presale_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "presale_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	registrations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "presale_layer",
			Subsystem: "campaign",
			Name:      "registrations_total",
			Help:      "Total number of accepted registrations.",
		},
	)

	withdrawals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "presale_layer",
			Subsystem: "treasury",
			Name:      "withdrawals_total",
			Help:      "Total number of settled treasury withdrawals.",
		},
		[]string{"status"},
	)

	withdrawalSettleTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "presale_layer",
			Subsystem: "treasury",
			Name:      "withdrawal_settle_duration_seconds",
			Help:      "Time from withdrawal request to settlement.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~45m
		},
		[]string{"status"},
	)

	eventsAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "presale_layer",
			Subsystem: "events",
			Name:      "appended_total",
			Help:      "Total number of events appended to campaign trails.",
		},
		[]string{"name"},
	)

	campaignPhases = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "presale_layer",
			Name:      "campaigns",
			Help:      "Number of hosted campaigns per phase.",
		},
		[]string{"phase"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		registrations,
		withdrawals,
		withdrawalSettleTime,
		eventsAppended,
		campaignPhases,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordRegistration counts one accepted registration.
func RecordRegistration() {
	registrations.Inc()
}

// RecordWithdrawalSettled records the outcome of a settled withdrawal.
func RecordWithdrawalSettled(status string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	withdrawals.WithLabelValues(status).Inc()
	withdrawalSettleTime.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordEvent counts one appended trail event.
func RecordEvent(name string) {
	if name == "" {
		name = "unknown"
	}
	eventsAppended.WithLabelValues(name).Inc()
}

// SetCampaignPhases replaces the per-phase campaign gauge with the given
// counts.
func SetCampaignPhases(counts map[string]int) {
	campaignPhases.Reset()
	for phase, n := range counts {
		campaignPhases.WithLabelValues(phase).Set(float64(n))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Hijack lets websocket upgrades pass through the instrumented writer.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "campaigns" {
		return "/" + parts[0]
	}
	switch len(parts) {
	case 1:
		return "/campaigns"
	case 2:
		return "/campaigns/:id"
	case 3:
		return "/campaigns/:id/" + parts[2]
	default:
		switch parts[2] {
		case "registrations":
			return "/campaigns/:id/registrations/:principal"
		case "whitelist", "ownership", "events":
			return "/campaigns/:id/" + parts[2] + "/" + parts[3]
		default:
			return "/campaigns/:id/" + parts[2]
		}
	}
}
