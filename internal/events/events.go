// Package events publishes learning events (a response was learned,
// reinforced, or a locale was reset) so other systems can follow what the
// assistant picks up.
package events

import (
	"context"
	"time"
)

// Type identifies an event.
type Type string

const (
	LearnedCreated    Type = "learned.created"
	LearnedReinforced Type = "learned.reinforced"
	LearnedReset      Type = "learned.reset"
)

// Event describes one change to a locale's learned data.
type Event struct {
	Type       Type      `json:"type"`
	Locale     string    `json:"locale"`
	Question   string    `json:"question,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	UseCount   int       `json:"useCount,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher delivers events. Publish failures are reported but callers are
// expected to log and carry on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
