package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gate_http_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gate_http_in_flight",
		Help: "In-flight HTTP requests",
	})
	RequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_http_request_errors_total",
			Help: "Total errors by type",
		}, []string{"type"},
	)

	AttributionResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_attribution_results_total",
			Help: "Terminal attribution results by status and reason",
		}, []string{"status", "reason"},
	)
	ConfirmCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_attribution_confirm_calls_total",
			Help: "Organic confirming calls by outcome",
		}, []string{"outcome"},
	)
	Screens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_screens_total",
			Help: "Resolved screens by kind and persisted state",
		}, []string{"screen", "state"},
	)
	BackendFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_backend_fetches_total",
			Help: "Content backend fetches by outcome",
		}, []string{"outcome"},
	)
	BackendLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gate_backend_fetch_duration_seconds",
		Help:    "Content backend fetch latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	OverridesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_override_urls_total",
			Help: "Override URLs received by source",
		}, []string{"source"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal, Latency, InFlight, RequestErrors,
		AttributionResults, ConfirmCalls, Screens,
		BackendFetches, BackendLatency, OverridesReceived,
	)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
		if rr.code >= 500 {
			RequestErrors.WithLabelValues("server").Inc()
		} else if rr.code >= 400 {
			RequestErrors.WithLabelValues("client").Inc()
		}
	})
}
