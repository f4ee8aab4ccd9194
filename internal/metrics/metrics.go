// Package metrics records action, resolution and poll metrics on a private
// Prometheus registry and writes them as a node-exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "infrapilot"

// Metrics holds the collectors. A nil *Metrics is a no-op.
type Metrics struct {
	actions        *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	resolutions    *prometheus.CounterVec
	pollAttempts   *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Total number of actions by outcome",
			},
			[]string{"action", "outcome"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Duration of actions in seconds, including polling",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"action"},
		),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Identifier resolutions by result",
			},
			[]string{"result"},
		),
		pollAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "poll_attempts",
				Help:      "Status queries made per poll, by terminal phase",
				Buckets:   []float64{1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"phase"},
		),
	}
	m.registry.MustRegister(m.actions, m.actionDuration, m.resolutions, m.pollAttempts)
	return m
}

// Registry exposes the registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveAction counts an action outcome and its duration.
func (m *Metrics) ObserveAction(action, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, outcome).Inc()
	m.actionDuration.WithLabelValues(action).Observe(d.Seconds())
}

// ObserveResolution counts a resolution result: exact, corrected or unresolved.
func (m *Metrics) ObserveResolution(result string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(result).Inc()
}

// ObservePoll records how many queries a poll needed.
func (m *Metrics) ObservePoll(phase string, attempts int) {
	if m == nil {
		return
	}
	m.pollAttempts.WithLabelValues(phase).Observe(float64(attempts))
}

// WriteTextfile writes the current metrics in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
