package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"
)

// ClientMetrics tracks calls made to the document-analysis service.
type ClientMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	breakerState    *prometheus.GaugeVec
	readyTotal      *prometheus.CounterVec
}

func NewClientMetrics(service string) *ClientMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docview",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total document-service requests by operation and outcome.",
		},
		[]string{"service", "operation", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docview",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Document-service request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service", "operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docview",
			Subsystem: "client",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)
	readyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docview",
			Subsystem: "uploader",
			Name:      "documents_ready_total",
			Help:      "Documents observed reaching processing completion by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(requestTotal, requestDuration, breakerState, readyTotal)

	return &ClientMetrics{
		registry:        registry,
		service:         service,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		breakerState:    breakerState,
		readyTotal:      readyTotal,
	}
}

func (m *ClientMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *ClientMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed call. statusCode is 0 when no response arrived.
func (m *ClientMetrics) ObserveRequest(operation string, statusCode int, duration time.Duration) {
	status := "network_error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	m.requestTotal.WithLabelValues(m.service, operation, status).Inc()
	m.requestDuration.WithLabelValues(m.service, operation).Observe(duration.Seconds())
}

func (m *ClientMetrics) ObserveBreakerState(operation string, state gobreaker.State) {
	m.breakerState.WithLabelValues(m.service, operation).Set(float64(state))
}

func (m *ClientMetrics) RecordDocumentReady(failed bool) {
	outcome := "processed"
	if failed {
		outcome = "processing_error"
	}
	m.readyTotal.WithLabelValues(m.service, outcome).Inc()
}
