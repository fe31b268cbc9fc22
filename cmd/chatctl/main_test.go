package main

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/fyrsmithlabs/chatmatch/internal/chatmemory"
	httpapi "github.com/fyrsmithlabs/chatmatch/internal/http"
	"github.com/fyrsmithlabs/chatmatch/internal/kvstore"
	"github.com/fyrsmithlabs/chatmatch/internal/logging"
	"github.com/fyrsmithlabs/chatmatch/internal/matcher"
	"github.com/fyrsmithlabs/chatmatch/internal/responder"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *matcher.Assistant) {
	t.Helper()

	resp, err := responder.NewDefault(nil)
	require.NoError(t, err)
	store := chatmemory.NewStore(kvstore.NewMemoryStore(), "en", logging.NewNop())
	a := matcher.NewAssistant(store, resp, matcher.Options{})
	t.Cleanup(func() { _ = a.Close() })

	srv, err := httpapi.NewServer(a, logging.NewNop(), &httpapi.Config{Version: "test", Gatherer: prometheus.NewRegistry()})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, a
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	out, err := execute(t, "health", "--server", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Status: ok")
	assert.Contains(t, out, "Version: test")
}

func TestAskLearnedHistoryReset(t *testing.T) {
	ts, a := newTestServer(t)

	out, err := execute(t, "ask", "--server", ts.URL, "what", "is", "your", "hourly", "rate?")
	require.NoError(t, err)
	assert.Contains(t, out, "Pricing")
	a.Wait()

	out, err = execute(t, "learned", "--server", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "QUESTION")
	assert.Contains(t, out, "what is your hourly rate?")

	out, err = execute(t, "history", "--server", ts.URL, "--locale", "en")
	require.NoError(t, err)
	assert.Contains(t, out, "what is your hourly rate?")

	out, err = execute(t, "reset", "--server", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Reset locale en")

	out, err = execute(t, "learned", "--server", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "No learned responses for en")
}

func TestAskRejectedMessage(t *testing.T) {
	ts, _ := newTestServer(t)

	_, err := execute(t, "ask", "--server", ts.URL, "   ")
	require.Error(t, err)

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)
	assert.Contains(t, apiErr.Message, "message field is required")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "çğıöşüç...", truncate("çğıöşüçğıöşü", 10))
}
