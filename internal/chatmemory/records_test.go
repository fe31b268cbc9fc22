package chatmemory

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewLearnedResponse(t *testing.T) {
	r := NewLearnedResponse("what is your hourly rate?", "Our rates depend on the project.", t0)

	assert.Equal(t, "what is your hourly rate?", r.Question)
	assert.Equal(t, []string{"what is your hourly rate?"}, r.Variations)
	assert.Equal(t, 1, r.UseCount)
	assert.InDelta(t, 0.5, r.Confidence, 1e-9)
	assert.Equal(t, t0, r.CreatedAt)
	assert.Equal(t, t0, r.LastUsed)
}

func TestReinforce(t *testing.T) {
	r := NewLearnedResponse("q", "a", t0)
	later := t0.Add(time.Hour)

	r.Reinforce(0.02, later)
	assert.Equal(t, 2, r.UseCount)
	assert.InDelta(t, 0.52, r.Confidence, 1e-9)
	assert.Equal(t, later, r.LastUsed)
	assert.Equal(t, t0, r.CreatedAt)
}

func TestReinforce_ClampsConfidence(t *testing.T) {
	r := NewLearnedResponse("q", "a", t0)
	r.Confidence = 0.97

	r.Reinforce(0.03, t0)
	assert.InDelta(t, 0.98, r.Confidence, 1e-9)

	for i := 0; i < 50; i++ {
		r.Reinforce(0.03, t0)
		assert.LessOrEqual(t, r.Confidence, MaxConfidence)
	}
	assert.Equal(t, 52, r.UseCount)
}

func TestAddVariation_Dedup(t *testing.T) {
	r := NewLearnedResponse("what is your hourly rate?", "a", t0)

	assert.False(t, r.AddVariation("what is your hourly rate?"))
	assert.True(t, r.AddVariation("so what is your hourly rate?"))
	assert.False(t, r.AddVariation("so what is your hourly rate?"))
	// Dedup is exact-string only.
	assert.True(t, r.AddVariation("so what is your hourly rate"))

	assert.Equal(t, []string{
		"what is your hourly rate?",
		"so what is your hourly rate?",
		"so what is your hourly rate",
	}, r.Variations)
}

func TestPhrasings(t *testing.T) {
	r := LearnedResponse{Question: "q", Variations: []string{"q", "v1", "v2"}}
	assert.Equal(t, []string{"q", "v1", "v2"}, r.Phrasings())

	// A record whose variations lost the question still matches on it.
	r = LearnedResponse{Question: "q", Variations: []string{"v1"}}
	assert.Equal(t, []string{"q", "v1"}, r.Phrasings())

	r = LearnedResponse{Question: "q"}
	assert.Equal(t, []string{"q"}, r.Phrasings())
}

func TestNewTurn_KeepsLastThreeContext(t *testing.T) {
	recent := []string{"a", "b", "c", "d", "e"}
	turn := NewTurn("q", "ans", recent, t0)

	assert.Equal(t, []string{"c", "d", "e"}, turn.Context)
	recent[4] = "mutated"
	assert.Equal(t, "e", turn.Context[2])

	turn = NewTurn("q", "ans", nil, t0)
	assert.NotNil(t, turn.Context)
	assert.Empty(t, turn.Context)
}

func TestJSONFieldNames(t *testing.T) {
	b, err := json.Marshal(NewLearnedResponse("q", "a", t0))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	for _, key := range []string{"question", "answer", "variations", "useCount", "confidence", "createdAt", "lastUsed"} {
		assert.Contains(t, m, key)
	}

	b, err = json.Marshal(NewTurn("q", "a", []string{"x"}, t0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"question":"q","answer":"a","timestamp":"2025-03-01T12:00:00Z","context":["x"]}`, string(b))
}
