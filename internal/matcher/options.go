package matcher

import (
	"time"

	"github.com/fyrsmithlabs/chatmatch/internal/events"
	"github.com/fyrsmithlabs/chatmatch/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/fyrsmithlabs/chatmatch/internal/matcher"

// Thresholds and reinforcement steps.
const (
	// LearnedThreshold is the score a learned response must exceed to be reused.
	LearnedThreshold = 0.70

	// HistoryThreshold is the score a past question must exceed to reuse its answer.
	HistoryThreshold = 0.65

	// MergeThreshold is the score a new question must exceed to be merged
	// into an existing learned response as a variation.
	MergeThreshold = 0.75

	// ReuseBoost is added to confidence when a learned response is reused.
	ReuseBoost = 0.02

	// LearnBoost is added to confidence when a new phrasing is merged.
	LearnBoost = 0.03
)

// Options carries the optional collaborators shared by Selector, Updater
// and Assistant. Zero values get defaults.
type Options struct {
	Logger    *logging.Logger
	Metrics   *Metrics
	Publisher events.Publisher

	// Now returns the current time. Defaults to time.Now in UTC.
	Now func() time.Time

	// LearnTimeout bounds background learning for one turn. Defaults to 10s.
	LearnTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics(nil)
	}
	if o.Publisher == nil {
		o.Publisher = events.Nop{}
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.LearnTimeout <= 0 {
		o.LearnTimeout = 10 * time.Second
	}
	return o
}

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
