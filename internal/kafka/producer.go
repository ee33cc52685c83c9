package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Typing-Service/pkg/events"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer  MessageWriter
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewProducer(brokers []string, m *metrics.Metrics, logger zerolog.Logger) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(w, m, logger)
}

func NewProducerWithWriter(w MessageWriter, m *metrics.Metrics, logger zerolog.Logger) *Producer {
	return &Producer{
		writer:  w,
		metrics: m,
		logger:  logger.With().Str("component", "kafka-producer").Logger(),
	}
}

func (p *Producer) publish(ctx context.Context, topic, key string, event interface{}) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: []byte(key), Value: value})
	if err != nil {
		p.metrics.IncKafkaMessage(topic, "error")
		return err
	}
	p.metrics.IncKafkaMessage(topic, "published")
	return nil
}

// PublishResultAccepted is keyed by player so one player's results stay ordered.
func (p *Producer) PublishResultAccepted(ctx context.Context, event events.ResultAcceptedEvent) error {
	return p.publish(ctx, events.TopicResultAccepted, event.PlayerID, event)
}

func (p *Producer) PublishRebuildRequest(ctx context.Context, event events.LeaderboardRebuildRequestedEvent) error {
	return p.publish(ctx, events.TopicLeaderboardRebuild, "rebuild", event)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
