package matcher

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/chatmatch/internal/chatmemory"
	"github.com/fyrsmithlabs/chatmatch/internal/responder"
	"github.com/fyrsmithlabs/chatmatch/internal/similarity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Source tells where an answer came from.
type Source string

const (
	SourceLearned Source = "learned"
	SourceHistory Source = "history"
	SourceStatic  Source = "static"
	SourceError   Source = "error"
)

// Result is an answer to one message.
type Result struct {
	// Answer is the text shown to the user, including any source marker.
	Answer string

	// Body is Answer without the marker. It is what gets learned.
	Body string

	Source Source

	// Score is the similarity that selected a learned or history answer.
	Score float64

	Locale string
}

// Selector picks the answer for a message.
type Selector struct {
	store     *chatmemory.Store
	responder *responder.Responder
	opts      Options
	tracer    trace.Tracer
}

// NewSelector creates a Selector.
func NewSelector(store *chatmemory.Store, resp *responder.Responder, opts Options) *Selector {
	return &Selector{
		store:     store,
		responder: resp,
		opts:      opts.withDefaults(),
		tracer:    tracer(),
	}
}

// Answer returns the best answer for input in locale. It never fails: when
// nothing learned or remembered is close enough, the static responder
// answers.
//
// Reusing a learned response reinforces it and persists the change. A
// failed write is logged and the answer is still returned.
func (s *Selector) Answer(ctx context.Context, input, locale string) Result {
	ctx, span := s.tracer.Start(ctx, "matcher.Answer")
	defer span.End()

	q := strings.ToLower(input)
	res := s.answer(ctx, q, locale)
	res.Locale = locale

	span.SetAttributes(
		attribute.String("locale", locale),
		attribute.String("source", string(res.Source)),
		attribute.Float64("score", res.Score),
	)
	return res
}

func (s *Selector) answer(ctx context.Context, q, locale string) Result {
	records := s.store.Learned(ctx, locale)
	if i, score := bestLearned(q, records); i >= 0 && score > LearnedThreshold {
		rec := &records[i]
		rec.Reinforce(ReuseBoost, s.opts.Now())
		if err := s.store.SetLearned(ctx, locale, records); err != nil {
			s.opts.Logger.Warn(ctx, "failed to persist reinforced response", zap.Error(err))
			s.opts.Metrics.StoreErrors.WithLabelValues("write").Inc()
		} else {
			s.opts.Metrics.LearningEvents.WithLabelValues("reused").Inc()
		}
		return Result{
			Answer: s.responder.LearnedPrefix(locale) + rec.Answer,
			Body:   rec.Answer,
			Source: SourceLearned,
			Score:  score,
		}
	}

	turns := s.store.Conversations(ctx, locale)
	if i, score := bestTurn(q, turns); i >= 0 && score > HistoryThreshold {
		body := turns[i].Answer
		return Result{
			Answer: s.responder.HistoryPrefix(locale) + body,
			Body:   body,
			Source: SourceHistory,
			Score:  score,
		}
	}

	body := s.responder.Respond(q, locale)
	return Result{Answer: body, Body: body, Source: SourceStatic}
}

// bestLearned returns the index and score of the record whose best phrasing
// is closest to q. Ties go to the earlier record. The index is -1 when
// records is empty.
func bestLearned(q string, records []chatmemory.LearnedResponse) (int, float64) {
	best, bestScore := -1, -1.0
	for i := range records {
		if _, score := similarity.Best(q, records[i].Phrasings()); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, bestScore
}

func bestTurn(q string, turns []chatmemory.ConversationTurn) (int, float64) {
	best, bestScore := -1, -1.0
	for i := range turns {
		if score := similarity.Score(q, turns[i].Question); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, bestScore
}
