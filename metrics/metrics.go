// Package metrics holds the Prometheus instruments of the serving worker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sagarc03/pagehaven"
)

// Recorder counts dispatcher outcomes.
type Recorder struct {
	requests       *prometheus.CounterVec
	duration       prometheus.Histogram
	upstreamErrors *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagehaven_requests_total",
				Help: "Requests answered by the worker, by outcome.",
			}, []string{"outcome"}),

		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pagehaven_request_duration_seconds",
				Help:    "Time spent dispatching a request, excluding body streaming.",
				Buckets: prometheus.DefBuckets,
			}),

		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagehaven_upstream_errors_total",
				Help: "Failed site or object lookups, by stage.",
			}, []string{"stage"}),
	}

	reg.MustRegister(r.requests, r.duration, r.upstreamErrors)
	return r
}

// Observe records one dispatched request.
func (r *Recorder) Observe(resp pagehaven.Response, elapsed time.Duration) {
	r.requests.WithLabelValues(string(resp.Outcome)).Inc()
	r.duration.Observe(elapsed.Seconds())

	if resp.Outcome == pagehaven.OutcomeUpstreamError {
		r.upstreamErrors.WithLabelValues(resp.Stage).Inc()
	}
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
