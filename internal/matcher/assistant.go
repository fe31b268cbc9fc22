package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/chatmatch/internal/chatmemory"
	"github.com/fyrsmithlabs/chatmatch/internal/events"
	"github.com/fyrsmithlabs/chatmatch/internal/logging"
	"github.com/fyrsmithlabs/chatmatch/internal/responder"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrClosed is returned by Ask and Reset after Close.
var ErrClosed = errors.New("assistant is closed")

// Assistant answers messages and learns from them, one turn at a time per
// locale.
type Assistant struct {
	store     *chatmemory.Store
	responder *responder.Responder
	selector  *Selector
	updater   *Updater
	opts      Options
	tracer    trace.Tracer
	locks     *localeLocks

	// wg tracks asks in flight, including their background learning.
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewAssistant creates an Assistant over store and resp.
func NewAssistant(store *chatmemory.Store, resp *responder.Responder, opts Options) *Assistant {
	opts = opts.withDefaults()
	return &Assistant{
		store:     store,
		responder: resp,
		selector:  NewSelector(store, resp, opts),
		updater:   NewUpdater(store, opts),
		opts:      opts,
		tracer:    tracer(),
		locks:     newLocaleLocks(),
	}
}

// Ask answers text in locale. recent holds the user's preceding messages,
// oldest first.
//
// The answer is returned as soon as it is selected. Learning from the turn
// continues in the background while still holding the locale, so the next
// Ask for the same locale waits for it. Failures while answering produce a
// SourceError result carrying the locale's error message; the returned error
// is only set when the assistant is closed or ctx ends while waiting for the
// locale.
func (a *Assistant) Ask(ctx context.Context, locale, text string, recent []string) (res Result, err error) {
	if !a.begin() {
		return Result{}, ErrClosed
	}
	learning := false
	defer func() {
		if !learning {
			a.wg.Done()
		}
	}()

	start := time.Now()
	locale = a.responder.ResolveLocale(locale)
	ctx = logging.WithLocale(ctx, locale)
	ctx, span := a.tracer.Start(ctx, "matcher.Ask", trace.WithAttributes(attribute.String("locale", locale)))
	defer span.End()

	unlock, err := a.locks.Lock(ctx, locale)
	if err != nil {
		span.RecordError(err)
		return Result{}, fmt.Errorf("waiting for locale %s: %w", locale, err)
	}
	defer func() {
		if !learning {
			unlock()
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			learning = false
			a.opts.Logger.Error(ctx, "panic while answering", zap.Any("panic", r), zap.Stack("stack"))
			span.SetStatus(codes.Error, "panic")
			res = a.errorResult(locale)
		}
		a.opts.Metrics.Answers.WithLabelValues(string(res.Source)).Inc()
		a.opts.Metrics.AnswerDuration.Observe(time.Since(start).Seconds())
	}()

	res = a.selector.Answer(ctx, text, locale)
	span.SetAttributes(attribute.String("source", string(res.Source)))

	if strings.TrimSpace(text) == "" {
		return res, nil
	}

	turn := Turn{
		Locale:     locale,
		Question:   text,
		Answer:     res.Body,
		Context:    recent,
		Reinforced: res.Source == SourceLearned,
	}
	learning = true
	go a.learn(context.WithoutCancel(ctx), turn, unlock)
	return res, nil
}

// learn records turn, then releases the locale and the in-flight count.
func (a *Assistant) learn(ctx context.Context, turn Turn, unlock func()) {
	defer a.wg.Done()
	defer unlock()
	defer func() {
		if r := recover(); r != nil {
			a.opts.Metrics.LearningEvents.WithLabelValues("failed").Inc()
			a.opts.Logger.Error(ctx, "panic while learning", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, a.opts.LearnTimeout)
	defer cancel()

	if err := a.updater.RecordTurn(ctx, turn); err != nil {
		a.opts.Metrics.LearningEvents.WithLabelValues("failed").Inc()
		a.opts.Logger.Warn(ctx, "failed to learn from turn", zap.Error(err))
	}
}

// Reset deletes the locale's history and learned responses. It waits for
// any learning in progress on that locale.
func (a *Assistant) Reset(ctx context.Context, locale string) error {
	if !a.begin() {
		return ErrClosed
	}
	defer a.wg.Done()

	locale = a.responder.ResolveLocale(locale)
	ctx = logging.WithLocale(ctx, locale)

	unlock, err := a.locks.Lock(ctx, locale)
	if err != nil {
		return fmt.Errorf("waiting for locale %s: %w", locale, err)
	}
	defer unlock()

	if err := a.store.Reset(ctx, locale); err != nil {
		a.opts.Metrics.StoreErrors.WithLabelValues("reset").Inc()
		return fmt.Errorf("resetting locale %s: %w", locale, err)
	}
	a.opts.Metrics.LearnedRecords.WithLabelValues(locale).Set(0)
	a.opts.Metrics.LearningEvents.WithLabelValues("reset").Inc()
	a.opts.Logger.Info(ctx, "learned data reset")

	if err := a.opts.Publisher.Publish(ctx, events.Event{
		Type:   events.LearnedReset,
		Locale: locale,
		At:     a.opts.Now(),
	}); err != nil {
		a.opts.Logger.Warn(ctx, "failed to publish reset event", zap.Error(err))
	}
	return nil
}

// Learned returns the locale's learned responses.
func (a *Assistant) Learned(ctx context.Context, locale string) []chatmemory.LearnedResponse {
	return a.store.Learned(ctx, a.responder.ResolveLocale(locale))
}

// Conversations returns the locale's history, oldest first.
func (a *Assistant) Conversations(ctx context.Context, locale string) []chatmemory.ConversationTurn {
	return a.store.Conversations(ctx, a.responder.ResolveLocale(locale))
}

// ResolveLocale reports which locale a request for locale is served in.
func (a *Assistant) ResolveLocale(locale string) string {
	return a.responder.ResolveLocale(locale)
}

// Wait blocks until every in-flight ask has finished learning.
func (a *Assistant) Wait() {
	a.wg.Wait()
}

// Close rejects new asks and waits for in-flight learning to finish.
func (a *Assistant) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.wg.Wait()
	return nil
}

// begin registers an in-flight operation unless the assistant is closed.
func (a *Assistant) begin() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return false
	}
	a.wg.Add(1)
	return true
}

func (a *Assistant) errorResult(locale string) Result {
	msg := a.responder.ErrorMessage(locale)
	return Result{Answer: msg, Body: msg, Source: SourceError, Locale: locale}
}
