package matcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/chatmatch/internal/chatmemory"
	"github.com/fyrsmithlabs/chatmatch/internal/events"
	"github.com/fyrsmithlabs/chatmatch/internal/kvstore"
	"github.com/fyrsmithlabs/chatmatch/internal/logging"
	"github.com/fyrsmithlabs/chatmatch/internal/responder"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock advances one second per call.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// recordingPublisher keeps published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// faultyKV wraps a memory store and can fail or panic on demand.
type faultyKV struct {
	*kvstore.MemoryStore
	mu         sync.Mutex
	failSet    bool
	failGet    bool
	panicOnGet bool
}

var errBackend = errors.New("backend unavailable")

func (f *faultyKV) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	failGet, panicOnGet := f.failGet, f.panicOnGet
	f.mu.Unlock()
	if panicOnGet {
		panic("corrupted driver state")
	}
	if failGet {
		return "", false, errBackend
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *faultyKV) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	failSet := f.failSet
	f.mu.Unlock()
	if failSet {
		return errBackend
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func (f *faultyKV) set(fn func(f *faultyKV)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type fixture struct {
	kv        *faultyKV
	store     *chatmemory.Store
	responder *responder.Responder
	publisher *recordingPublisher
	metrics   *Metrics
	registry  *prometheus.Registry
	logger    *logging.TestLogger
	opts      Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	resp, err := responder.NewDefault(nil)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	tl := logging.NewTestLogger()
	kv := &faultyKV{MemoryStore: kvstore.NewMemoryStore()}
	clock := &fakeClock{now: t0}
	pub := &recordingPublisher{}

	return &fixture{
		kv:        kv,
		store:     chatmemory.NewStore(kv, "en", tl.Logger, chatmemory.WithReadErrorHook(metrics.ReadErrorHook())),
		responder: resp,
		publisher: pub,
		metrics:   metrics,
		registry:  reg,
		logger:    tl,
		opts: Options{
			Logger:    tl.Logger,
			Metrics:   metrics,
			Publisher: pub,
			Now:       clock.Now,
		},
	}
}

func (f *fixture) assistant(t *testing.T) *Assistant {
	t.Helper()
	a := NewAssistant(f.store, f.responder, f.opts)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// ask answers and waits for learning to finish.
func (f *fixture) ask(t *testing.T, a *Assistant, locale, text string) Result {
	t.Helper()
	res, err := a.Ask(context.Background(), locale, text, nil)
	require.NoError(t, err)
	a.Wait()
	return res
}
