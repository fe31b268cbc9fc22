package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLimiter(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newClientLimiter(1, 2, time.Hour)
	l.now = func() time.Time { return now }
	l.lastCleanup = now

	allow := func(id string) bool {
		ok, err := l.Allow(id)
		require.NoError(t, err)
		return ok
	}

	assert.True(t, allow("10.0.0.1"))
	assert.True(t, allow("10.0.0.1"))
	assert.False(t, allow("10.0.0.1"), "burst exhausted")
	assert.True(t, allow("10.0.0.2"), "clients are independent")

	now = now.Add(time.Second)
	assert.True(t, allow("10.0.0.1"), "one token refilled")
	assert.False(t, allow("10.0.0.1"))

	now = now.Add(2 * time.Hour)
	assert.True(t, allow("10.0.0.1"))
	assert.Len(t, l.limiters, 1, "table dropped after ttl")
}

func TestClientLimiter_MinimumBurst(t *testing.T) {
	l := newClientLimiter(1, 0, time.Hour)
	assert.Equal(t, 1, l.burst)
}
