package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CDeX-Labs/CDeX-Typing-Service/pkg/events"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

// fakeReader hands out queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		msg := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeReader) commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

type fakeRebuilder struct {
	mu         sync.Mutex
	rebuilt    []int
	rebuiltAll int
	err        error
}

func (f *fakeRebuilder) Rebuild(_ context.Context, d int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.rebuilt = append(f.rebuilt, d)
	return 10, nil
}

func (f *fakeRebuilder) RebuildAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuiltAll++
	return f.err
}

func rebuildMsg(t *testing.T, d int) kafka.Message {
	t.Helper()
	value, err := json.Marshal(events.LeaderboardRebuildRequestedEvent{Duration: d, RequestedBy: "ops", Reason: "drift"})
	require.NoError(t, err)
	return kafka.Message{Topic: events.TopicLeaderboardRebuild, Value: value}
}

func TestProducer_KeysAndTopics(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, nil, zerolog.Nop())

	require.NoError(t, p.PublishResultAccepted(context.Background(), events.ResultAcceptedEvent{ResultID: "r1", PlayerID: "p1", WPM: 80}))
	require.NoError(t, p.PublishRebuildRequest(context.Background(), events.LeaderboardRebuildRequestedEvent{Duration: 30}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, events.TopicResultAccepted, w.msgs[0].Topic)
	assert.Equal(t, "p1", string(w.msgs[0].Key))

	var got events.ResultAcceptedEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "r1", got.ResultID)
	assert.Equal(t, 80, got.WPM)

	assert.Equal(t, events.TopicLeaderboardRebuild, w.msgs[1].Topic)
}

func TestProducer_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewProducerWithWriter(w, nil, zerolog.Nop())
	assert.Error(t, p.PublishResultAccepted(context.Background(), events.ResultAcceptedEvent{PlayerID: "p1"}))
}

func TestHandleRebuildRequested(t *testing.T) {
	rb := &fakeRebuilder{}
	h := NewHandlers(rb, zerolog.Nop())

	require.NoError(t, h.HandleRebuildRequested(context.Background(), rebuildMsg(t, 60)))
	require.NoError(t, h.HandleRebuildRequested(context.Background(), rebuildMsg(t, 0)))

	assert.Equal(t, []int{60}, rb.rebuilt)
	assert.Equal(t, 1, rb.rebuiltAll)

	assert.Error(t, h.HandleRebuildRequested(context.Background(), kafka.Message{Value: []byte("{")}))

	rb.err = errors.New("store down")
	assert.Error(t, h.HandleRebuildRequested(context.Background(), rebuildMsg(t, 15)))
}

func TestConsumer_DispatchesAndCommits(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		rebuildMsg(t, 30),
		{Topic: events.TopicLeaderboardRebuild, Value: []byte("not json")},
		rebuildMsg(t, 0),
	}}
	rb := &fakeRebuilder{}

	c := NewConsumerWithReaders(map[string]MessageReader{events.TopicLeaderboardRebuild: reader}, nil, zerolog.Nop())
	NewHandlers(rb, zerolog.Nop()).RegisterAll(c)
	c.Start(context.Background())

	// the malformed message is committed too
	assert.Eventually(t, func() bool { return reader.commits() == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())

	assert.True(t, reader.closed)
	assert.Equal(t, []int{30}, rb.rebuilt)
	assert.Equal(t, 1, rb.rebuiltAll)
}

func TestConsumer_UnhandledTopicIsSkipped(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Topic: "other", Value: []byte("{}")}}}
	c := NewConsumerWithReaders(map[string]MessageReader{"other": reader}, nil, zerolog.Nop())
	c.Start(context.Background())

	assert.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())
}
