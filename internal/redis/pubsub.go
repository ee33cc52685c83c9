package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Typing-Service/pkg/protocol"
)

// ChannelRooms carries room messages between instances.
const ChannelRooms = "ws:rooms"

type PubSubEnvelope struct {
	SourceInstance string            `json:"sourceInstance"`
	TargetRoom     string            `json:"targetRoom"`
	Message        *protocol.Message `json:"message"`
}

type MessageHandler func(envelope *PubSubEnvelope)

// PubSub relays room messages across instances. Messages an instance
// published itself are dropped on receipt.
type PubSub struct {
	client     *Client
	pubsub     *redis.PubSub
	instanceID string
	handler    MessageHandler
	logger     zerolog.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	started    bool
}

func NewPubSub(client *Client, handler MessageHandler, logger zerolog.Logger) *PubSub {
	ctx, cancel := context.WithCancel(context.Background())
	return &PubSub{
		client:     client,
		instanceID: uuid.New().String()[:8],
		handler:    handler,
		logger:     logger.With().Str("component", "pubsub").Logger(),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

func (p *PubSub) Start() error {
	p.pubsub = p.client.Subscribe(p.ctx, ChannelRooms)

	if _, err := p.pubsub.Receive(p.ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	p.started = true
	go p.listen()

	p.logger.Info().Str("instanceId", p.instanceID).Msg("PubSub started")
	return nil
}

func (p *PubSub) Stop() error {
	p.cancel()
	if p.pubsub == nil {
		return nil
	}
	err := p.pubsub.Close()
	if p.started {
		<-p.done
	}
	return err
}

func (p *PubSub) InstanceID() string {
	return p.instanceID
}

func (p *PubSub) listen() {
	defer close(p.done)
	ch := p.pubsub.Channel()
	for {
		select {
		case <-p.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			p.handleMessage(msg)
		}
	}
}

func (p *PubSub) handleMessage(msg *redis.Message) {
	var envelope PubSubEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
		p.logger.Error().Err(err).Msg("Failed to unmarshal pubsub message")
		return
	}

	if envelope.SourceInstance == p.instanceID {
		return
	}

	p.logger.Debug().
		Str("room", envelope.TargetRoom).
		Str("sourceInstance", envelope.SourceInstance).
		Msg("Received pubsub message")

	if p.handler != nil {
		p.handler(&envelope)
	}
}

func (p *PubSub) PublishToRoom(ctx context.Context, roomID string, msg *protocol.Message) error {
	data, err := json.Marshal(PubSubEnvelope{
		SourceInstance: p.instanceID,
		TargetRoom:     roomID,
		Message:        msg,
	})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, ChannelRooms, data)
}
