package pipeline

import (
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	KindClassify  = "classify"
	KindMoods     = "moods"
	KindMoodImage = "mood_image"
	KindEmptyRoom = "empty_room"
	KindSuggest   = "suggest"
	KindComposite = "composite"

	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeNoImage     = "no_image"
	OutcomePlaceholder = "placeholder"
)

// Metrics counts remote calls by kind and outcome. It owns its registry so a
// process can expose or inspect it without touching the global one.
type Metrics struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roommood_remote_calls_total",
				Help: "Remote generation calls by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "roommood_remote_call_duration_seconds",
				Help:    "Duration of remote generation calls, retries included",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
			},
			[]string{"kind"},
		),
	}
	m.registry.MustRegister(m.calls, m.duration)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) record(kind, outcome string) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) observe(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
}

type CallStat struct {
	Kind    string
	Outcome string
	Count   int
}

// Stats returns the non-zero call counters sorted by kind then outcome.
func (m *Metrics) Stats() ([]CallStat, error) {
	if m == nil {
		return nil, nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	var stats []CallStat
	for _, mf := range families {
		if mf.GetName() != "roommood_remote_calls_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			stat := CallStat{Count: int(metric.GetCounter().GetValue())}
			for _, label := range metric.GetLabel() {
				switch label.GetName() {
				case "kind":
					stat.Kind = label.GetValue()
				case "outcome":
					stat.Outcome = label.GetValue()
				}
			}
			if stat.Count > 0 {
				stats = append(stats, stat)
			}
		}
	}

	slices.SortFunc(stats, func(a, b CallStat) int {
		if c := strings.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return strings.Compare(a.Outcome, b.Outcome)
	})
	return stats, nil
}
