package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/fyrsmithlabs/chatmatch/internal/chatmemory"
	"github.com/fyrsmithlabs/chatmatch/internal/events"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestUpdater_NewQuestionCreatesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := NewUpdater(f.store, f.opts)

	require.NoError(t, u.RecordTurn(ctx, Turn{
		Locale:   "en",
		Question: "What is your hourly rate?",
		Answer:   "It depends on scope.",
		Context:  []string{"hello", "who are you", "what do you build", "do you do apps"},
	}))

	turns := f.store.Conversations(ctx, "en")
	require.Len(t, turns, 1)
	assert.Equal(t, "what is your hourly rate?", turns[0].Question)
	assert.Equal(t, "It depends on scope.", turns[0].Answer)
	assert.Equal(t, []string{"who are you", "what do you build", "do you do apps"}, turns[0].Context)

	learned := f.store.Learned(ctx, "en")
	require.Len(t, learned, 1)
	assert.Equal(t, "what is your hourly rate?", learned[0].Question)
	assert.Equal(t, "It depends on scope.", learned[0].Answer)
	assert.Equal(t, []string{"what is your hourly rate?"}, learned[0].Variations)
	assert.Equal(t, 1, learned[0].UseCount)
	assert.InDelta(t, 0.5, learned[0].Confidence, 1e-9)

	assert.Equal(t, []events.Type{events.LearnedCreated}, f.publisher.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LearnedRecords.WithLabelValues("en")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LearningEvents.WithLabelValues("created")))
}

func TestUpdater_SimilarQuestionMerges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := NewUpdater(f.store, f.opts)

	require.NoError(t, u.RecordTurn(ctx, Turn{Locale: "en", Question: "what is your hourly rate?", Answer: "A"}))
	require.NoError(t, u.RecordTurn(ctx, Turn{Locale: "en", Question: "so what is your hourly rate?", Answer: "B"}))

	learned := f.store.Learned(ctx, "en")
	require.Len(t, learned, 1)
	assert.Equal(t, "A", learned[0].Answer)
	assert.Equal(t, []string{"what is your hourly rate?", "so what is your hourly rate?"}, learned[0].Variations)
	assert.Equal(t, 2, learned[0].UseCount)
	assert.InDelta(t, 0.53, learned[0].Confidence, 1e-9)

	assert.Len(t, f.store.Conversations(ctx, "en"), 2)
	assert.Equal(t, []events.Type{events.LearnedCreated, events.LearnedReinforced}, f.publisher.types())
}

func TestUpdater_RepeatedQuestionDedupsVariation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := NewUpdater(f.store, f.opts)

	for i := 0; i < 3; i++ {
		require.NoError(t, u.RecordTurn(ctx, Turn{Locale: "en", Question: "What is your hourly rate?", Answer: "A"}))
	}

	learned := f.store.Learned(ctx, "en")
	require.Len(t, learned, 1)
	assert.Equal(t, []string{"what is your hourly rate?"}, learned[0].Variations)
	assert.Equal(t, 3, learned[0].UseCount)
	assert.InDelta(t, 0.56, learned[0].Confidence, 1e-9)
}

func TestUpdater_ReinforcedTurnCountsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := chatmemory.NewLearnedResponse("what is your hourly rate?", "A", t0)
	rec.UseCount, rec.Confidence = 2, 0.52
	require.NoError(t, f.store.SetLearned(ctx, "en", []chatmemory.LearnedResponse{rec}))

	u := NewUpdater(f.store, f.opts)
	require.NoError(t, u.RecordTurn(ctx, Turn{
		Locale:     "en",
		Question:   "so what is your hourly rate?",
		Answer:     "A",
		Reinforced: true,
	}))

	learned := f.store.Learned(ctx, "en")
	require.Len(t, learned, 1)
	assert.Equal(t, 2, learned[0].UseCount)
	assert.InDelta(t, 0.52, learned[0].Confidence, 1e-9)
	assert.Len(t, learned[0].Variations, 2)
	assert.True(t, learned[0].LastUsed.After(t0))
}

func TestUpdater_ConfidenceClamped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := chatmemory.NewLearnedResponse("what is your hourly rate?", "A", t0)
	rec.Confidence = 0.97
	require.NoError(t, f.store.SetLearned(ctx, "en", []chatmemory.LearnedResponse{rec}))

	u := NewUpdater(f.store, f.opts)
	require.NoError(t, u.RecordTurn(ctx, Turn{Locale: "en", Question: "what is your hourly rate?", Answer: "A"}))

	assert.InDelta(t, chatmemory.MaxConfidence, f.store.Learned(ctx, "en")[0].Confidence, 1e-9)
}

func TestUpdater_BelowMergeThresholdCreatesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := NewUpdater(f.store, f.opts)

	require.NoError(t, u.RecordTurn(ctx, Turn{Locale: "en", Question: "do you work on weekends?", Answer: "A"}))
	// Scores 0.68: similar enough for history, not for merging.
	require.NoError(t, u.RecordTurn(ctx, Turn{Locale: "en", Question: "do you work on weekends", Answer: "A"}))

	assert.Len(t, f.store.Learned(ctx, "en"), 2)
}

func TestUpdater_WriteFailure(t *testing.T) {
	f := newFixture(t)
	f.kv.set(func(k *faultyKV) { k.failSet = true })

	err := NewUpdater(f.store, f.opts).RecordTurn(context.Background(), Turn{Locale: "en", Question: "q", Answer: "a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBackend))
	assert.Contains(t, err.Error(), "appending conversation")
	assert.Contains(t, err.Error(), "saving learned responses")
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.StoreErrors.WithLabelValues("write")))
	assert.Empty(t, f.publisher.types())
}

func TestUpdater_PublishFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("nats down")

	err := NewUpdater(f.store, f.opts).RecordTurn(context.Background(), Turn{Locale: "en", Question: "q", Answer: "a"})
	require.NoError(t, err)
	f.logger.AssertLogged(t, zapcore.WarnLevel, "failed to publish learning event")
	assert.Len(t, f.store.Learned(context.Background(), "en"), 1)
}
