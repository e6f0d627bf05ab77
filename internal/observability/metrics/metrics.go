package metrics

import "github.com/prometheus/client_golang/prometheus"

// APIMetrics exposes counters/histograms for calls to the scheduling API.
type APIMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	sessionsCleared prometheus.Counter
}

func NewAPIMetrics(reg prometheus.Registerer) *APIMetrics {
	m := &APIMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reserv",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total upstream scheduling API requests",
		}, []string{"endpoint", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reserv",
			Subsystem: "api",
			Name:      "request_latency_seconds",
			Help:      "Latency of upstream scheduling API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		sessionsCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reserv",
			Subsystem: "api",
			Name:      "unauthorized_session_clears_total",
			Help:      "Sessions cleared after an upstream 401",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.requestLatency, m.sessionsCleared)
	return m
}

// ObserveRequest records one upstream call. status is the HTTP status class
// ("2xx", "4xx", ...) or "canceled"/"error" for transport outcomes.
func (m *APIMetrics) ObserveRequest(endpoint, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(endpoint, status).Inc()
	m.requestLatency.WithLabelValues(endpoint).Observe(seconds)
}

func (m *APIMetrics) ObserveSessionCleared() {
	if m == nil {
		return
	}
	m.sessionsCleared.Inc()
}

// WorkflowMetrics tracks booking and availability workflow outcomes.
type WorkflowMetrics struct {
	slotFetches *prometheus.CounterVec
	bookings    *prometheus.CounterVec
}

func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	m := &WorkflowMetrics{
		slotFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reserv",
			Subsystem: "booking",
			Name:      "slot_fetches_total",
			Help:      "Availability fetches by outcome",
		}, []string{"outcome"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reserv",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Booking submissions by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotFetches, m.bookings)
	return m
}

// ObserveSlotFetch records "loaded", "error", "canceled" or "stale".
func (m *WorkflowMetrics) ObserveSlotFetch(outcome string) {
	if m == nil {
		return
	}
	m.slotFetches.WithLabelValues(outcome).Inc()
}

// ObserveBooking records "success", "rejected", "failed" or "busy".
func (m *WorkflowMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

// StatusClass maps an HTTP status code to its "Nxx" class label.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
