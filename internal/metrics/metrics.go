// Package metrics exposes the Prometheus collectors used across tada.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder groups the ledger and HTTP collectors. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	ops          *prometheus.CounterVec
	opDuration   *prometheus.HistogramVec
	appended     *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tada",
			Name:      "operations_total",
			Help:      "Ledger operations by name and outcome.",
		}, []string{"op", "outcome"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tada",
			Name:      "operation_duration_seconds",
			Help:      "Ledger operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		appended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tada",
			Name:      "status_events_appended_total",
			Help:      "Status events appended, by status.",
		}, []string{"status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tada",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tada",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if reg != nil {
		reg.MustRegister(r.ops, r.opDuration, r.appended, r.httpRequests, r.httpDuration)
	}
	return r
}

// Op records the outcome of one ledger operation.
func (r *Recorder) Op(op, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.ops.WithLabelValues(op, outcome).Inc()
	r.opDuration.WithLabelValues(op).Observe(d.Seconds())
}

// StatusAppended counts a newly appended status event.
func (r *Recorder) StatusAppended(status string) {
	if r == nil {
		return
	}
	r.appended.WithLabelValues(status).Inc()
}

// HTTPRequest records one served request.
func (r *Recorder) HTTPRequest(method, route string, code int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
