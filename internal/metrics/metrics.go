package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors of the extraction pipeline. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	FetchAttempts       *prometheus.CounterVec
	FetchDuration       *prometheus.HistogramVec
	Extractions         *prometheus.CounterVec
	FieldResolutions    *prometheus.CounterVec
	ArchiveDownloads    *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FetchAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extractor_fetch_attempts_total",
				Help: "Fetch attempts by transport and outcome.",
			},
			[]string{"transport", "outcome"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extractor_fetch_duration_seconds",
				Help:    "Duration of single fetch attempts.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 15, 30},
			},
			[]string{"transport"},
		),
		Extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extractor_extractions_total",
				Help: "Product extractions by marketplace and outcome.",
			},
			[]string{"marketplace", "outcome"},
		),
		FieldResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extractor_field_resolutions_total",
				Help: "Resolved product fields by extraction tier.",
			},
			[]string{"field", "tier"},
		),
		ArchiveDownloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extractor_archive_downloads_total",
				Help: "Image downloads for archives by outcome.",
			},
			[]string{"outcome"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
}

func (m *Metrics) ObserveFetch(transport, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(transport, outcome).Inc()
	m.FetchDuration.WithLabelValues(transport).Observe(d.Seconds())
}

func (m *Metrics) ObserveExtraction(marketplace, outcome string) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(marketplace, outcome).Inc()
}

func (m *Metrics) ObserveField(field, tier string) {
	if m == nil {
		return
	}
	m.FieldResolutions.WithLabelValues(field, tier).Inc()
}

func (m *Metrics) ObserveDownload(outcome string) {
	if m == nil {
		return
	}
	m.ArchiveDownloads.WithLabelValues(outcome).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and durations. pathFor maps a request to
// a low-cardinality label, typically the matched route pattern.
func (m *Metrics) Middleware(pathFor func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if pathFor != nil {
				if p := pathFor(r); p != "" {
					path = p
				}
			}
			status := strconv.Itoa(rw.statusCode)
			m.HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		})
	}
}
