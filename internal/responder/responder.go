package responder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ShortInputLen is the input length (in characters) below which unmatched
// input receives the "short question" response.
const ShortInputLen = 15

// FallbackMessage is returned only if no locale table can be resolved at all.
const FallbackMessage = "Sorry, something went wrong."

// Responder maps input to canned responses. It is safe for concurrent use;
// the taxonomy can be swapped while requests are in flight.
type Responder struct {
	taxonomy atomic.Pointer[Taxonomy]
	logger   *zap.Logger
}

// New creates a Responder over a validated taxonomy.
func New(t *Taxonomy, logger *zap.Logger) (*Responder, error) {
	if t == nil {
		return nil, fmt.Errorf("taxonomy cannot be nil")
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid taxonomy: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Responder{logger: logger}
	r.taxonomy.Store(t)
	return r, nil
}

// NewDefault creates a Responder over the embedded taxonomy.
func NewDefault(logger *zap.Logger) (*Responder, error) {
	t, err := DefaultTaxonomy()
	if err != nil {
		return nil, err
	}
	return New(t, logger)
}

// Taxonomy returns the taxonomy currently in use.
func (r *Responder) Taxonomy() *Taxonomy {
	return r.taxonomy.Load()
}

// ResolveLocale maps a requested locale onto one the taxonomy declares:
// exact match, then the primary subtag ("en-US" -> "en"), then the default
// locale.
func (r *Responder) ResolveLocale(locale string) string {
	t := r.taxonomy.Load()
	code := strings.ToLower(strings.TrimSpace(locale))
	if _, ok := t.Locales[code]; ok {
		return code
	}
	if i := strings.IndexAny(code, "-_"); i > 0 {
		if _, ok := t.Locales[code[:i]]; ok {
			return code[:i]
		}
	}
	return t.DefaultLocale
}

// Respond returns the canned response for input in the given locale.
func (r *Responder) Respond(input, locale string) string {
	table := r.table(locale)
	if table == nil {
		return FallbackMessage
	}

	text := strings.ToLower(input)
	for _, c := range table.Categories {
		for _, kw := range c.Keywords {
			if kw == "" || !strings.Contains(text, kw) {
				continue
			}
			if c.Response == "" {
				r.logger.Warn("category has no response, using default",
					zap.String("locale", locale),
					zap.String("category", c.Name))
				return table.Default
			}
			return c.Response
		}
	}

	if utf8.RuneCountInString(input) < ShortInputLen {
		return table.Short
	}
	return table.Default
}

// LearnedPrefix marks answers that came from the learned corpus.
func (r *Responder) LearnedPrefix(locale string) string {
	if t := r.table(locale); t != nil {
		return t.LearnedPrefix
	}
	return ""
}

// HistoryPrefix marks answers reused from a similar past conversation.
func (r *Responder) HistoryPrefix(locale string) string {
	if t := r.table(locale); t != nil {
		return t.HistoryPrefix
	}
	return ""
}

// ErrorMessage is shown when answering failed outright.
func (r *Responder) ErrorMessage(locale string) string {
	if t := r.table(locale); t != nil && t.ErrorMessage != "" {
		return t.ErrorMessage
	}
	return FallbackMessage
}

func (r *Responder) table(locale string) *LocaleTable {
	t := r.taxonomy.Load()
	if t == nil {
		return nil
	}
	return t.Locales[r.ResolveLocale(locale)]
}

// Reload replaces the taxonomy with the contents of path. The current
// taxonomy is kept if the file is invalid.
func (r *Responder) Reload(path string) error {
	t, err := LoadFile(path)
	if err != nil {
		return err
	}
	r.taxonomy.Store(t)
	r.logger.Info("taxonomy reloaded",
		zap.String("path", path),
		zap.Strings("locales", t.LocaleCodes()))
	return nil
}

// Watch reloads the taxonomy whenever path changes, until ctx is done.
// The parent directory is watched so editors that replace the file on save
// are picked up.
func (r *Responder) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve taxonomy path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create taxonomy watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := r.Reload(abs); err != nil {
					r.logger.Warn("taxonomy reload failed, keeping previous",
						zap.String("path", abs),
						zap.Error(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if !errors.Is(err, fsnotify.ErrEventOverflow) {
					r.logger.Warn("taxonomy watcher error", zap.Error(err))
				}
			}
		}
	}()
	return nil
}
