package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestNATSServer starts an embedded NATS server on a random port.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	server, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func TestNATSPublisher_Publish(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync("chatmatch.learned.>")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	p := NewNATSPublisher(nc, "chatmatch", nil)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), Event{
		Type:       LearnedReinforced,
		Locale:     "tr",
		Question:   "saatlik ücretiniz nedir?",
		Confidence: 0.53,
		UseCount:   2,
		At:         at,
	}))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "chatmatch.learned.reinforced.tr", msg.Subject)

	var got Event
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, LearnedReinforced, got.Type)
	assert.Equal(t, "tr", got.Locale)
	assert.Equal(t, 2, got.UseCount)
	assert.True(t, at.Equal(got.At))

	// Borrowed connection stays open.
	require.NoError(t, p.Close())
	assert.False(t, nc.IsClosed())
}

func TestConnect_OwnsConnection(t *testing.T) {
	server := startTestNATSServer(t)

	p, err := Connect(server.ClientURL(), "demo.", nil)
	require.NoError(t, err)

	assert.Equal(t, "demo.learned.reset.en", p.Subject(Event{Type: LearnedReset, Locale: "en"}))
	require.NoError(t, p.Publish(context.Background(), Event{Type: LearnedReset, Locale: "en"}))
	require.NoError(t, p.Close())
	assert.Eventually(t, p.conn.IsClosed, 2*time.Second, 10*time.Millisecond)
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewNATSPublisher(nc, "", nil).Publish(ctx, Event{Type: LearnedCreated})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubject_EmptyLocale(t *testing.T) {
	p := NewNATSPublisher(nil, "", nil)
	assert.Equal(t, "chatmatch.learned.created._", p.Subject(Event{Type: LearnedCreated}))
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
