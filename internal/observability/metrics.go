package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce              sync.Once
	apiRequestsTotal          *prometheus.CounterVec
	apiLatencySeconds         *prometheus.HistogramVec
	apiErrorsTotal            *prometheus.CounterVec
	sessionsStartedTotal      prometheus.Counter
	answersGradedTotal        *prometheus.CounterVec
	sessionsCompletedTotal    *prometheus.CounterVec
	generationAttemptsTotal   *prometheus.CounterVec
	overallFeedbackCacheTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		sessionsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interview_sessions_started_total",
			Help: "Total number of practice sessions created.",
		})

		answersGradedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interview_answers_graded_total",
			Help: "Total number of answers graded, by feedback label.",
		}, []string{"label"})

		sessionsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interview_sessions_completed_total",
			Help: "Total number of sessions aggregated into overall feedback, by readiness tier.",
		}, []string{"readiness"})

		generationAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interview_generation_calls_total",
			Help: "Generation gateway calls by operation and outcome.",
		}, []string{"operation", "outcome"})

		overallFeedbackCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interview_overall_feedback_cache_total",
			Help: "Overall feedback cache lookups by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			sessionsStartedTotal,
			answersGradedTotal,
			sessionsCompletedTotal,
			generationAttemptsTotal,
			overallFeedbackCacheTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// SessionsStarted counts persisted practice sessions.
func SessionsStarted() prometheus.Counter {
	RegisterMetrics()
	return sessionsStartedTotal
}

// AnswersGraded counts graded answers per feedback label.
func AnswersGraded() *prometheus.CounterVec {
	RegisterMetrics()
	return answersGradedTotal
}

// SessionsCompleted counts completed sessions per readiness tier.
func SessionsCompleted() *prometheus.CounterVec {
	RegisterMetrics()
	return sessionsCompletedTotal
}

// GenerationCalls counts generation gateway outcomes.
func GenerationCalls() *prometheus.CounterVec {
	RegisterMetrics()
	return generationAttemptsTotal
}

// OverallFeedbackCache counts cache hits and misses for overall feedback.
func OverallFeedbackCache() *prometheus.CounterVec {
	RegisterMetrics()
	return overallFeedbackCacheTotal
}
