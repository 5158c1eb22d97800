// Package metrics exposes Prometheus instruments for workflow actions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketplace"

// Recorder records per-action outcomes. A nil *Recorder is a no-op.
type Recorder struct {
	actions     *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	staleWrites *prometheus.CounterVec
	events      *prometheus.CounterVec
}

// New creates the instruments and registers them on reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Workflow actions by action and outcome.",
		}, []string{"action", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Time spent handling a workflow action, including storage I/O.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		staleWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_writes_total",
			Help:      "Saves rejected by the version check and re-evaluated.",
		}, []string{"action"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events by type and result.",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(r.actions, r.duration, r.staleWrites, r.events)
	return r
}

// ObserveAction records one finished action. outcome is "ok" or an error kind.
func (r *Recorder) ObserveAction(action, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.actions.WithLabelValues(action, outcome).Inc()
	r.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// StaleWrite records a compare-and-swap miss.
func (r *Recorder) StaleWrite(action string) {
	if r == nil {
		return
	}
	r.staleWrites.WithLabelValues(action).Inc()
}

// EventPublished records a publish attempt.
func (r *Recorder) EventPublished(eventType string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.events.WithLabelValues(eventType, result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
