// Package metrics exposes Prometheus collectors for the archive pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal               *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	harvestRecordsTotal        *prometheus.CounterVec
	itemsIngestedTotal         *prometheus.CounterVec
	transcriptionJobsTotal     *prometheus.CounterVec
	transcriptionActiveWorkers prometheus.Gauge
	toolDurationSeconds        *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_fetches_total",
				Help: "Documents fetched, labeled by site, source (cache or network) and status.",
			},
			[]string{"site", "source", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_fetch_bytes_total",
				Help: "Bytes fetched from the network, labeled by site.",
			},
			[]string{"site"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_rate_limit_delay_seconds",
				Help:    "Histogram of throttle wait durations.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"origin"},
		)

		harvestRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_harvest_records_total",
				Help: "Seeds processed by the harvester, labeled by status.",
			},
			[]string{"status"},
		)

		itemsIngestedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_items_ingested_total",
				Help: "Items written to the store, labeled by ingest mode.",
			},
			[]string{"mode"},
		)

		transcriptionJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_transcription_jobs_total",
				Help: "Transcription jobs finished, labeled by status.",
			},
			[]string{"status"},
		)

		transcriptionActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "archive_transcription_active_workers",
				Help: "Number of transcription workers currently processing an item.",
			},
		)

		toolDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_tool_duration_seconds",
				Help:    "Wall-clock duration of external tool runs.",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"tool", "status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one document fetch.
func ObserveFetch(rawURL, source, status string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	fetchesTotal.WithLabelValues(site, source, status).Inc()
	if source == "network" && bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveRateLimitDelay records the duration of a throttle wait.
func ObserveRateLimitDelay(origin string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(origin).Observe(duration.Seconds())
}

// ObserveHarvest counts one processed seed.
func ObserveHarvest(status string) {
	Init()
	harvestRecordsTotal.WithLabelValues(status).Inc()
}

// ObserveIngest counts items written in one ingest pass.
func ObserveIngest(mode string, items int) {
	Init()
	itemsIngestedTotal.WithLabelValues(mode).Add(float64(items))
}

// ObserveTranscription counts one finished transcription job.
func ObserveTranscription(status string) {
	Init()
	transcriptionJobsTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active transcription workers gauge.
func IncActiveWorkers() {
	Init()
	transcriptionActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active transcription workers gauge.
func DecActiveWorkers() {
	Init()
	transcriptionActiveWorkers.Dec()
}

// ObserveTool records how long an external tool ran.
func ObserveTool(tool, status string, duration time.Duration) {
	Init()
	toolDurationSeconds.WithLabelValues(tool, status).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		ObserveHTTPRequest(r.Method, route, rec.statusCode, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
