package http

import (
	"time"

	"github.com/fyrsmithlabs/chatmatch/internal/chatmemory"
)

// ChatRequest is the request body for POST /api/v1/chat.
type ChatRequest struct {
	Locale  string   `json:"locale"`
	Message string   `json:"message"`
	Context []string `json:"context,omitempty"`
}

// ChatResponse is the response body for POST /api/v1/chat.
type ChatResponse struct {
	Answer string  `json:"answer"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Locale string  `json:"locale"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// LearnedResponse is the response body for GET /api/v1/locales/:locale/learned.
type LearnedResponse struct {
	Locale  string                       `json:"locale"`
	Count   int                          `json:"count"`
	Records []chatmemory.LearnedResponse `json:"records"`
}

// ConversationsResponse is the response body for
// GET /api/v1/locales/:locale/conversations.
type ConversationsResponse struct {
	Locale string                        `json:"locale"`
	Count  int                           `json:"count"`
	Turns  []chatmemory.ConversationTurn `json:"turns"`
}

// ErrorResponse mirrors echo's HTTPError body.
type ErrorResponse struct {
	Message string `json:"message"`
}

// maxContextItems bounds the context a client may send with a message.
const maxContextItems = 20

// maxMessageLen bounds a chat message, in bytes.
const maxMessageLen = 4000

const defaultRateLimitTTL = time.Hour
