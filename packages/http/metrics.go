package http

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector exposes Prometheus metrics for client calls. A nil
// collector records nothing. It is safe for concurrent use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	transferErrors   *prometheus.CounterVec
	responseBytes    *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector on registry.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registry)
	return &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hitclient_requests_total",
				Help: "Total number of HTTP calls completed",
			},
			[]string{"method", "status_code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hitclient_request_duration_seconds",
				Help:    "Duration of HTTP calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hitclient_requests_in_flight",
				Help: "Number of HTTP calls currently in flight",
			},
			[]string{"method"},
		),
		transferErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hitclient_transfer_errors_total",
				Help: "Total number of transfers that failed, by error code",
			},
			[]string{"method", "errno"},
		),
		responseBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hitclient_response_bytes_total",
				Help: "Total number of response body bytes received",
			},
			[]string{"method"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hitclient_errors_total",
				Help: "Total number of calls rejected before the transfer, by kind",
			},
			[]string{"kind", "method"},
		),
	}
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method).Dec()
}

// RecordResponse records a completed call.
func (mc *MetricsCollector) RecordResponse(method string, resp *Response, duration time.Duration) {
	if mc == nil || resp == nil {
		return
	}
	mc.requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode())).Inc()
	mc.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
	mc.responseBytes.WithLabelValues(method).Add(float64(len(resp.Body())))
	if resp.Errno() != ErrnoOK {
		mc.transferErrors.WithLabelValues(method, strconv.Itoa(resp.Errno())).Inc()
	}
}

// RecordError records a call that failed with an *Error.
func (mc *MetricsCollector) RecordError(method string, kind ErrorKind) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(string(kind), method).Inc()
}
