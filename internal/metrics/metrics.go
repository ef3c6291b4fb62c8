// Package metrics exposes comparison counters on a private Prometheus registry.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ppiankov/regdiff/internal/model"
)

const namespace = "regdiff"

// Recorder owns the registry and the comparison metrics. The zero value is
// not usable; a nil *Recorder ignores every call.
type Recorder struct {
	registry *prometheus.Registry

	comparisons        prometheus.Counter
	changes            *prometheus.CounterVec
	capped             prometheus.Counter
	embeddingFallbacks prometheus.Counter
	duration           prometheus.Histogram
}

// RecorderOption configures a Recorder
type RecorderOption func(*prometheus.Registry)

// WithProcessCollectors adds Go runtime and process metrics, for the server
func WithProcessCollectors() RecorderOption {
	return func(reg *prometheus.Registry) {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

// NewRecorder creates a Recorder on a fresh registry
func NewRecorder(opts ...RecorderOption) *Recorder {
	reg := prometheus.NewRegistry()
	for _, opt := range opts {
		opt(reg)
	}
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		comparisons: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparisons_total",
			Help:      "Document comparisons completed.",
		}),
		changes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_total",
			Help:      "Visible changes reported, by type and subtype.",
		}, []string{"type", "subtype"}),
		capped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "true_changes_capped_total",
			Help:      "TRUE_CHANGE records downgraded by the volume cap.",
		}),
		embeddingFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_fallbacks_total",
			Help:      "Times the embedding backend was disabled and lexical scoring used.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compare_duration_seconds",
			Help:      "Engine comparison latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
}

// Registry returns the registry for exposition
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveComparison records one finished comparison
func (r *Recorder) ObserveComparison(changes []model.Change, stats model.ValidationStats, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.comparisons.Inc()
	r.duration.Observe(elapsed.Seconds())
	r.capped.Add(float64(stats.Capped))
	for _, ch := range changes {
		r.changes.WithLabelValues(string(ch.Type), ch.Subtype).Inc()
	}
}

// EmbeddingFallback records that the embedding backend was given up
func (r *Recorder) EmbeddingFallback() {
	if r == nil {
		return
	}
	r.embeddingFallbacks.Inc()
}

// WriteTextfile exports the registry in the node_exporter textfile format
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
