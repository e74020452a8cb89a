package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	qaRequestsTotal     *prometheus.CounterVec
	qaDuration          *prometheus.HistogramVec
	retrievedSentences  *prometheus.HistogramVec
	retrievalLevelTotal *prometheus.CounterVec
	exhaustedTotal      *prometheus.CounterVec
	sessionsActive      prometheus.Gauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vsg",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vsg",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vsg",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	qaRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vsg",
			Subsystem: "qa",
			Name:      "requests_total",
			Help:      "Total successful question requests by endpoint.",
		},
		[]string{"service", "endpoint"},
	)
	qaDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vsg",
			Subsystem: "qa",
			Name:      "duration_seconds",
			Help:      "Question pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	retrievedSentences := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vsg",
			Subsystem: "qa",
			Name:      "retrieved_sentences",
			Help:      "Distribution of retrieved sentences per successful request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	retrievalLevelTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vsg",
			Subsystem: "qa",
			Name:      "retrieval_level_total",
			Help:      "Total successful requests by deepest cascade level used.",
		},
		[]string{"service", "endpoint", "level"},
	)
	exhaustedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vsg",
			Subsystem: "qa",
			Name:      "exhausted_total",
			Help:      "Total requests that found no further new information.",
		},
		[]string{"service", "endpoint"},
	)
	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vsg",
			Subsystem: "qa",
			Name:      "sessions_active",
			Help:      "Number of live retrieval sessions.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		qaRequestsTotal,
		qaDuration,
		retrievedSentences,
		retrievalLevelTotal,
		exhaustedTotal,
		sessionsActive,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		qaRequestsTotal:     qaRequestsTotal,
		qaDuration:          qaDuration,
		retrievedSentences:  retrievedSentences,
		retrievalLevelTotal: retrievalLevelTotal,
		exhaustedTotal:      exhaustedTotal,
		sessionsActive:      sessionsActive,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// RecordQAObservation records one successful ask or continue call.
func (m *HTTPServerMetrics) RecordQAObservation(service, endpoint string, level, sentenceCount int, canContinue bool, duration time.Duration) {
	m.qaRequestsTotal.WithLabelValues(service, endpoint).Inc()
	m.qaDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	m.retrievedSentences.WithLabelValues(service, endpoint).Observe(float64(sentenceCount))
	m.retrievalLevelTotal.WithLabelValues(service, endpoint, strconv.Itoa(level)).Inc()
	if !canContinue {
		m.exhaustedTotal.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) SetActiveSessions(count int) {
	m.sessionsActive.Set(float64(count))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
