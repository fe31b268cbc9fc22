package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/chatmatch/internal/chatmemory"
	"github.com/fyrsmithlabs/chatmatch/internal/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Turn is one answered message to learn from.
type Turn struct {
	Locale   string
	Question string

	// Answer is the unmarked answer body (Result.Body).
	Answer string

	// Context holds the user's preceding messages, oldest first. Only the
	// last three are kept.
	Context []string

	// Reinforced is set when the answer came from a learned response, which
	// the Selector has already reinforced for this turn.
	Reinforced bool
}

// Updater records turns into history and learned responses.
type Updater struct {
	store  *chatmemory.Store
	opts   Options
	tracer trace.Tracer
}

// NewUpdater creates an Updater.
func NewUpdater(store *chatmemory.Store, opts Options) *Updater {
	return &Updater{store: store, opts: opts.withDefaults(), tracer: tracer()}
}

// RecordTurn appends the turn to the locale's history and merges the
// question into the learned responses.
//
// A question scoring above MergeThreshold against an existing record is
// added as a variation and reinforces it (unless the turn was already
// reinforced on the way in). Otherwise a new record is created.
//
// The history append and the learned write are independent: a failure in
// one does not skip the other. Both failures are returned joined.
func (u *Updater) RecordTurn(ctx context.Context, t Turn) error {
	ctx, span := u.tracer.Start(ctx, "matcher.RecordTurn",
		trace.WithAttributes(attribute.String("locale", t.Locale)))
	defer span.End()

	now := u.opts.Now()
	q := strings.ToLower(t.Question)

	var errs []error
	if err := u.store.AppendConversation(ctx, t.Locale, chatmemory.NewTurn(q, t.Answer, t.Context, now)); err != nil {
		u.opts.Metrics.StoreErrors.WithLabelValues("write").Inc()
		errs = append(errs, fmt.Errorf("appending conversation: %w", err))
	}

	records := u.store.Learned(ctx, t.Locale)
	var (
		rec   *chatmemory.LearnedResponse
		event events.Type
	)
	if i, score := bestLearned(q, records); i >= 0 && score > MergeThreshold {
		rec = &records[i]
		added := rec.AddVariation(q)
		if t.Reinforced {
			rec.LastUsed = now
		} else {
			rec.Reinforce(LearnBoost, now)
		}
		event = events.LearnedReinforced
		span.SetAttributes(attribute.Float64("score", score), attribute.Bool("variation_added", added))
	} else {
		records = append(records, chatmemory.NewLearnedResponse(q, t.Answer, now))
		rec = &records[len(records)-1]
		event = events.LearnedCreated
	}

	if err := u.store.SetLearned(ctx, t.Locale, records); err != nil {
		u.opts.Metrics.StoreErrors.WithLabelValues("write").Inc()
		errs = append(errs, fmt.Errorf("saving learned responses: %w", err))
		err = errors.Join(errs...)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	u.opts.Metrics.LearnedRecords.WithLabelValues(t.Locale).Set(float64(len(records)))
	label := "created"
	if event == events.LearnedReinforced {
		label = "reinforced"
	}
	u.opts.Metrics.LearningEvents.WithLabelValues(label).Inc()
	u.opts.Logger.Debug(ctx, "turn learned",
		zap.String("event", string(event)),
		zap.Int("useCount", rec.UseCount),
		zap.Float64("confidence", rec.Confidence),
		zap.Int("records", len(records)))

	if err := u.opts.Publisher.Publish(ctx, events.Event{
		Type:       event,
		Locale:     t.Locale,
		Question:   rec.Question,
		Confidence: rec.Confidence,
		UseCount:   rec.UseCount,
		At:         now,
	}); err != nil {
		u.opts.Logger.Warn(ctx, "failed to publish learning event", zap.Error(err))
	}

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
