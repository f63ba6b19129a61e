package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "therapy_match"

// MetricsService owns the Prometheus registry for HTTP, cache and domain metrics.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheLookups    *prometheus.CounterVec

	triageSubmissions  *prometheus.CounterVec
	triageEmergencies  prometheus.Counter
	screeningWarnings  *prometheus.CounterVec
	dossiersCreated    *prometheus.CounterVec
	dossierAccess      *prometheus.CounterVec
	geocodeLookups     *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec
	recommendationSize *prometheus.HistogramVec
}

// NewMetricsService registers every collector on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cache_read_seconds",
			Help:      "Latency for cache reads",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cache_write_seconds",
			Help:      "Latency for cache writes",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result",
		}, []string{"result"}),
		triageSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "triage_submissions_total",
			Help:      "Accepted triage submissions by assessment type and risk level",
		}, []string{"assessment_type", "risk_level"}),
		triageEmergencies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "triage_emergencies_total",
			Help:      "Triage submissions that required emergency routing",
		}),
		screeningWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "triage_screening_warnings_total",
			Help:      "Positive screenings that were not expanded to a full assessment",
		}, []string{"instrument"}),
		dossiersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dossiers_created_total",
			Help:      "Dossiers created by risk level",
		}, []string{"risk_level"}),
		dossierAccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dossier_access_total",
			Help:      "Dossier access decisions",
		}, []string{"operation", "outcome"}),
		geocodeLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "geocode_lookups_total",
			Help:      "Geocode lookups by the source that answered",
		}, []string{"source"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Domain events by name and delivery outcome",
		}, []string{"event", "outcome"}),
		recommendationSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "recommendations_returned",
			Help:      "Number of recommendations returned per kind",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		}, []string{"kind"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Number of live goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite, m.cacheLookups,
		m.triageSubmissions, m.triageEmergencies, m.screeningWarnings, m.dossiersCreated, m.dossierAccess,
		m.geocodeLookups, m.eventsPublished, m.recommendationSize, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordTriageSubmission counts an accepted submission.
func (m *MetricsService) RecordTriageSubmission(assessmentType, riskLevel string, emergency bool) {
	if m == nil {
		return
	}
	m.triageSubmissions.WithLabelValues(assessmentType, riskLevel).Inc()
	if emergency {
		m.triageEmergencies.Inc()
	}
}

// RecordScreeningWarning counts a positive screening instrument.
func (m *MetricsService) RecordScreeningWarning(instrument string) {
	if m == nil {
		return
	}
	m.screeningWarnings.WithLabelValues(instrument).Inc()
}

// RecordDossierCreated counts a new dossier.
func (m *MetricsService) RecordDossierCreated(riskLevel string) {
	if m == nil {
		return
	}
	m.dossiersCreated.WithLabelValues(riskLevel).Inc()
}

// RecordDossierAccess counts an access decision such as ("view", "denied").
func (m *MetricsService) RecordDossierAccess(operation, outcome string) {
	if m == nil {
		return
	}
	m.dossierAccess.WithLabelValues(operation, outcome).Inc()
}

// RecordGeocodeLookup counts a lookup answered by static, cache, remote or none.
func (m *MetricsService) RecordGeocodeLookup(source string) {
	if m == nil {
		return
	}
	m.geocodeLookups.WithLabelValues(source).Inc()
}

// RecordEvent counts an event delivery outcome.
func (m *MetricsService) RecordEvent(name, outcome string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(name, outcome).Inc()
}

// ObserveRecommendations records how many items of a kind were returned.
func (m *MetricsService) ObserveRecommendations(kind string, count int) {
	if m == nil {
		return
	}
	m.recommendationSize.WithLabelValues(kind).Observe(float64(count))
}
