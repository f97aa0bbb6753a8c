package eventbus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/Black-And-White-Club/quickdraw/internal/testutils"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	MatchID string `json:"match_id"`
	Round   int    `json:"round"`
}

func TestInProcessPublish(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus, ch := NewInProcess(logger)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := ch.Subscribe(ctx, "match.round.advanced.v1")
	require.NoError(t, err)

	ctx = attr.WithCorrelationID(ctx, "corr-1")
	require.NoError(t, bus.Publish(ctx, "match.round.advanced.v1", samplePayload{MatchID: "game7", Round: 2}))

	select {
	case msg := <-messages:
		msg.Ack()
		var got samplePayload
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, samplePayload{MatchID: "game7", Round: 2}, got)
		assert.Equal(t, "corr-1", msg.Metadata.Get("correlation_id"))
		assert.Equal(t, "match.round.advanced.v1", msg.Metadata.Get("topic"))
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	bus, _ := NewInProcess(nil)
	defer bus.Close()

	err := bus.Publish(context.Background(), "match.completed.v1", map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestNKeyOptionRejectsBadSeed(t *testing.T) {
	_, err := nkeyOption("not-a-seed")
	assert.Error(t, err)
}

func TestNATSPublish(t *testing.T) {
	url := testutils.NATSURL(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync("match.completed.v1")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	bus, err := NewNATS(NATSConfig{URL: url}, nil)
	require.NoError(t, err)
	defer bus.Close()

	require.NoError(t, bus.Publish(ctx, "match.completed.v1", samplePayload{MatchID: "game3", Round: 4}))

	msg, err := sub.NextMsg(10 * time.Second)
	require.NoError(t, err)

	var got samplePayload
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "game3", got.MatchID)
	assert.Equal(t, 4, got.Round)
}
