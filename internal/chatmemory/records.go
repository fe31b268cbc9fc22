package chatmemory

import "time"

const (
	// InitialConfidence is the confidence of a newly learned response.
	InitialConfidence = 0.5

	// MaxConfidence caps reinforcement.
	MaxConfidence = 0.98

	// MaxHistory is the number of turns kept per locale.
	MaxHistory = 200

	// MaxContext is the number of preceding questions kept on a turn.
	MaxContext = 3
)

// ConversationTurn is one answered question in a locale's history.
type ConversationTurn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
	Context   []string  `json:"context"`
}

// LearnedResponse is a question/answer pair the assistant has learned,
// together with the alternative phrasings that mapped to it.
type LearnedResponse struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Variations []string  `json:"variations"`
	UseCount   int       `json:"useCount"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsed   time.Time `json:"lastUsed"`
}

// NewLearnedResponse creates a record for a question seen for the first time.
func NewLearnedResponse(question, answer string, now time.Time) LearnedResponse {
	return LearnedResponse{
		Question:   question,
		Answer:     answer,
		Variations: []string{question},
		UseCount:   1,
		Confidence: InitialConfidence,
		CreatedAt:  now,
		LastUsed:   now,
	}
}

// Reinforce records another use: useCount++, confidence += delta (capped
// at MaxConfidence), lastUsed = now.
func (r *LearnedResponse) Reinforce(delta float64, now time.Time) {
	r.UseCount++
	r.Confidence = min(r.Confidence+delta, MaxConfidence)
	r.LastUsed = now
}

// AddVariation appends q unless an identical string is already present.
// It reports whether q was added.
func (r *LearnedResponse) AddVariation(q string) bool {
	for _, v := range r.Variations {
		if v == q {
			return false
		}
	}
	r.Variations = append(r.Variations, q)
	return true
}

// Phrasings returns the question followed by the variations. The question
// is always included even if a stored record omits it from Variations.
func (r *LearnedResponse) Phrasings() []string {
	out := make([]string, 0, len(r.Variations)+1)
	out = append(out, r.Question)
	for _, v := range r.Variations {
		if v != r.Question {
			out = append(out, v)
		}
	}
	return out
}

// NewTurn builds a history entry, keeping only the last MaxContext items of
// recent.
func NewTurn(question, answer string, recent []string, now time.Time) ConversationTurn {
	if len(recent) > MaxContext {
		recent = recent[len(recent)-MaxContext:]
	}
	ctx := make([]string, len(recent))
	copy(ctx, recent)
	return ConversationTurn{
		Question:  question,
		Answer:    answer,
		Timestamp: now,
		Context:   ctx,
	}
}
