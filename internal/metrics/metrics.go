// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchTotal                 *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	fetchRetriesTotal          *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	discoveryTotal             *prometheus.CounterVec
	syncUnitsTotal             *prometheus.CounterVec
	entriesUpsertedTotal       prometheus.Counter
	syncInProgress             prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revere_fetch_total",
				Help: "Total number of text retrievals, labeled by host and outcome.",
			},
			[]string{"host", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revere_fetch_bytes_total",
				Help: "Total number of text bytes retrieved, labeled by host.",
			},
			[]string{"host"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "revere_fetch_duration_seconds",
				Help:    "Histogram of single retrieval attempt latencies.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"host"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revere_fetch_retries_total",
				Help: "Total number of retried retrieval attempts, labeled by host.",
			},
			[]string{"host"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "revere_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		discoveryTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revere_discovery_total",
				Help: "Total number of discovery lookups, labeled by result.",
			},
			[]string{"result"},
		)

		syncUnitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revere_sync_units_total",
				Help: "Total number of sync units processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		entriesUpsertedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "revere_entries_upserted_total",
				Help: "Total number of log entries written to the store.",
			},
		)

		syncInProgress = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "revere_sync_in_progress",
				Help: "1 while a guarded sync run is executing.",
			},
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
	Init()
	return promhttp.Handler()
}

// ObserveFetch records one retrieval attempt.
func ObserveFetch(site, outcome string, bytesFetched int, duration time.Duration) {
	Init()
	host := SanitizeSite(site)
	fetchTotal.WithLabelValues(host, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(host).Observe(duration.Seconds())
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(host).Add(float64(bytesFetched))
	}
}

// ObserveFetchRetry counts a retried attempt.
func ObserveFetchRetry(site string) {
	Init()
	fetchRetriesTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveDiscovery counts a discovery lookup ("cache_hit", "fetched" or "error").
func ObserveDiscovery(result string) {
	Init()
	discoveryTotal.WithLabelValues(result).Inc()
}

// ObserveSyncUnit counts one processed date or log by outcome.
func ObserveSyncUnit(outcome string) {
	Init()
	syncUnitsTotal.WithLabelValues(outcome).Inc()
}

// AddEntriesUpserted adds n to the upserted-entries counter.
func AddEntriesUpserted(n int) {
	Init()
	if n > 0 {
		entriesUpsertedTotal.Add(float64(n))
	}
}

// SetSyncInProgress flips the in-progress gauge.
func SetSyncInProgress(running bool) {
	Init()
	if running {
		syncInProgress.Set(1)
		return
	}
	syncInProgress.Set(0)
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
