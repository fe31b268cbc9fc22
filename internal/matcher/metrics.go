package matcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the matcher's Prometheus instruments.
type Metrics struct {
	// Answers counts answers by source (learned, history, static, error).
	Answers *prometheus.CounterVec

	// LearningEvents counts learning outcomes (created, reinforced, reused,
	// reset, failed).
	LearningEvents *prometheus.CounterVec

	// StoreErrors counts persistence failures by operation (read, write,
	// reset).
	StoreErrors *prometheus.CounterVec

	AnswerDuration prometheus.Histogram

	// LearnedRecords is the number of learned responses per locale after the
	// last write.
	LearnedRecords *prometheus.GaugeVec
}

// NewMetrics creates the instruments and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Answers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatmatch",
			Subsystem: "matcher",
			Name:      "answers_total",
			Help:      "Answers produced, by source.",
		}, []string{"source"}),
		LearningEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatmatch",
			Subsystem: "matcher",
			Name:      "learning_events_total",
			Help:      "Learning outcomes, by event.",
		}, []string{"event"}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatmatch",
			Subsystem: "matcher",
			Name:      "store_errors_total",
			Help:      "Persistence failures, by operation.",
		}, []string{"op"}),
		AnswerDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatmatch",
			Subsystem: "matcher",
			Name:      "answer_duration_seconds",
			Help:      "Time to produce an answer, excluding background learning.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		LearnedRecords: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chatmatch",
			Subsystem: "matcher",
			Name:      "learned_records",
			Help:      "Learned responses stored, by locale.",
		}, []string{"locale"}),
	}
}

// ReadErrorHook returns a callback for chatmemory.WithReadErrorHook.
func (m *Metrics) ReadErrorHook() func(key string, err error) {
	return func(string, error) {
		m.StoreErrors.WithLabelValues("read").Inc()
	}
}
