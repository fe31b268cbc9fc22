// Package matcher answers chat messages and learns from them.
//
// Each turn goes through three stages, stopping at the first hit:
//
//  1. learned: the closest learned response (over its question and all
//     recorded variations) scoring above LearnedThreshold. Reusing a learned
//     response reinforces it.
//  2. history: the closest past question scoring above HistoryThreshold.
//  3. static: the keyword responder, which always produces an answer.
//
// After answering, the turn is appended to the locale's history and merged
// into the learned responses: a question scoring above MergeThreshold
// against an existing record becomes one of its variations, anything else
// becomes a new record.
//
// Assistant ties the stages together and serializes turns per locale:
// learning for a turn runs in the background but holds the locale until it
// has been persisted, so the next turn always sees it.
package matcher
