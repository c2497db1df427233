// Package metrics defines the Prometheus collectors of both binaries.
// Collectors register with the default registry at init.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passwatch_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "passwatch_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	passRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passwatch_pass_requests_total",
			Help: "Pass-window computations by outcome.",
		},
		[]string{"outcome"},
	)

	passStationErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "passwatch_pass_station_errors_total",
			Help: "Stations whose window could not be derived.",
		},
	)

	passDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "passwatch_pass_duration_seconds",
			Help:    "Time to compute all station windows of one request.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	snapshotAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "passwatch_snapshot_age_seconds",
			Help: "Seconds since the served element-set snapshot was last updated.",
		},
	)

	fetchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlefetch_attempts_total",
			Help: "Remote element-set fetch attempts by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlefetch_resolutions_total",
			Help: "Satellites resolved per run by fetch-log status.",
		},
		[]string{"status"},
	)

	snapshotSatellites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tlefetch_snapshot_satellites",
			Help: "Satellites present in the last written snapshot.",
		},
	)

	lastSuccessTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tlefetch_last_success_timestamp_seconds",
			Help: "Unix time of the last successful snapshot write.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		passRequestsTotal,
		passStationErrorsTotal,
		passDurationSeconds,
		snapshotAgeSeconds,
		fetchAttemptsTotal,
		resolutionsTotal,
		snapshotSatellites,
		lastSuccessTimestamp,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// WriteTextfile dumps the default registry in the node-exporter textfile
// collector format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// IncPassRequest counts one pass-window request by outcome.
func IncPassRequest(outcome string) {
	passRequestsTotal.WithLabelValues(outcome).Inc()
}

// IncStationError counts one failed station window.
func IncStationError() {
	passStationErrorsTotal.Inc()
}

// ObservePassDuration records the compute time of one request.
func ObservePassDuration(seconds float64) {
	passDurationSeconds.Observe(seconds)
}

// SetSnapshotAge sets the served snapshot age.
func SetSnapshotAge(seconds float64) {
	snapshotAgeSeconds.Set(seconds)
}

// IncFetchAttempt counts one remote fetch attempt.
func IncFetchAttempt(source, outcome string) {
	fetchAttemptsTotal.WithLabelValues(source, outcome).Inc()
}

// IncResolution counts one satellite resolution by status.
func IncResolution(status string) {
	resolutionsTotal.WithLabelValues(status).Inc()
}

// SetSnapshotSatellites sets the satellite count of the written snapshot.
func SetSnapshotSatellites(n int) {
	snapshotSatellites.Set(float64(n))
}

// SetLastSuccess records a successful snapshot write.
func SetLastSuccess(t time.Time) {
	lastSuccessTimestamp.Set(float64(t.Unix()))
}

// knownRoutes are exact paths kept as their own label. Everything else
// collapses to "other" so scanners cannot blow up label cardinality.
var knownRoutes = map[string]bool{
	"/":              true,
	"/index.html":    true,
	"/app.js":        true,
	"/styles.css":    true,
	"/healthz":       true,
	"/readyz":        true,
	"/metrics":       true,
	"/next_pass_all": true,
	"/tle_data.json": true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
