package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CDeX-Labs/CDeX-Typing-Service/pkg/protocol"
)

func TestPubSub_RelaysToOtherInstancesOnly(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(mr.Addr(), "", 0, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	gotA := make(chan *PubSubEnvelope, 1)
	gotB := make(chan *PubSubEnvelope, 1)
	a := NewPubSub(client, func(e *PubSubEnvelope) { gotA <- e }, zerolog.Nop())
	b := NewPubSub(client, func(e *PubSubEnvelope) { gotB <- e }, zerolog.Nop())
	require.NoError(t, a.Start())
	require.NoError(t, b.Start())
	t.Cleanup(func() {
		_ = a.Stop()
		_ = b.Stop()
	})

	msg, err := protocol.NewMessage(protocol.MsgLeaderboardUpdated, map[string]int{"wpm": 101})
	require.NoError(t, err)
	require.NoError(t, a.PublishToRoom(context.Background(), "leaderboard:30", msg))

	select {
	case e := <-gotB:
		assert.Equal(t, a.InstanceID(), e.SourceInstance)
		assert.Equal(t, "leaderboard:30", e.TargetRoom)
		assert.Equal(t, protocol.MsgLeaderboardUpdated, e.Message.Type)
		assert.JSONEq(t, `{"wpm":101}`, string(e.Message.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("message not relayed")
	}

	select {
	case <-gotA:
		t.Fatal("publisher received its own message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClient_ObservesOperations(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(mr.Addr(), "", 0, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	ok, err := client.SetNX(ctx, "k", "v", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mr.Set("lb:30", "x"))
	require.NoError(t, mr.Set("lb:60", "x"))
	keys, err := client.ScanKeys(ctx, "lb:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lb:30", "lb:60"}, keys)
}
