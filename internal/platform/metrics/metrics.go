package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	AuthCacheHits      prometheus.Counter
	AuthCacheMisses    prometheus.Counter
	IdentityLatency    prometheus.Histogram
	RegistryLatency    prometheus.Histogram
	CheckinsCreated    prometheus.Counter
	ValidationFailures *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AuthCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trailmark_auth_cache_hits_total",
			Help: "Number of principal resolutions served from the session cache",
		}),
		AuthCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trailmark_auth_cache_misses_total",
			Help: "Number of principal resolutions that had to call the identity provider",
		}),
		IdentityLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trailmark_identity_provider_duration_seconds",
			Help:    "Latency of identity provider profile lookups",
			Buckets: prometheus.DefBuckets,
		}),
		RegistryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trailmark_place_registry_duration_seconds",
			Help:    "Latency of place registry lookups",
			Buckets: prometheus.DefBuckets,
		}),
		CheckinsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trailmark_checkins_created_total",
			Help: "Total number of check-ins accepted and persisted",
		}),
		ValidationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trailmark_checkin_validation_failures_total",
			Help: "Check-in validation failures by field",
		}, []string{"field"}),
	}
}

// IncAuthCacheHit counts a principal resolution served from the cache.
func (m *Metrics) IncAuthCacheHit() {
	m.AuthCacheHits.Inc()
}

// IncAuthCacheMiss counts a principal resolution that went to the provider.
func (m *Metrics) IncAuthCacheMiss() {
	m.AuthCacheMisses.Inc()
}

// IncCheckinCreated counts an accepted and persisted check-in.
func (m *Metrics) IncCheckinCreated() {
	m.CheckinsCreated.Inc()
}

// ObserveIdentityLatency records one identity provider round trip.
func (m *Metrics) ObserveIdentityLatency(d time.Duration) {
	m.IdentityLatency.Observe(d.Seconds())
}

// ObserveRegistryLatency records one place registry round trip.
func (m *Metrics) ObserveRegistryLatency(d time.Duration) {
	m.RegistryLatency.Observe(d.Seconds())
}

// IncrementValidationFailure counts a failed validation rule by field name.
func (m *Metrics) IncrementValidationFailure(field string) {
	m.ValidationFailures.WithLabelValues(field).Inc()
}
