package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/metrics"
)

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type EventHandler func(ctx context.Context, message kafka.Message) error

type Consumer struct {
	readers  map[string]MessageReader
	handlers map[string]EventHandler
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	retryDelay time.Duration
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewConsumer(brokers []string, groupID string, topics []string, m *metrics.Metrics, logger zerolog.Logger) *Consumer {
	readers := make(map[string]MessageReader, len(topics))
	for _, topic := range topics {
		readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        groupID,
			Topic:          topic,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        1 * time.Second,
			CommitInterval: 0,
			StartOffset:    kafka.LastOffset,
		})
	}
	return NewConsumerWithReaders(readers, m, logger)
}

// NewConsumerWithReaders takes one reader per topic.
func NewConsumerWithReaders(readers map[string]MessageReader, m *metrics.Metrics, logger zerolog.Logger) *Consumer {
	return &Consumer{
		readers:    readers,
		handlers:   make(map[string]EventHandler),
		metrics:    m,
		logger:     logger.With().Str("component", "kafka-consumer").Logger(),
		retryDelay: 1 * time.Second,
	}
}

// RegisterHandler must be called before Start.
func (c *Consumer) RegisterHandler(topic string, handler EventHandler) {
	c.handlers[topic] = handler
}

func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	for topic, reader := range c.readers {
		c.wg.Add(1)
		go func(topic string, reader MessageReader) {
			defer c.wg.Done()
			c.consume(ctx, topic, reader)
		}(topic, reader)
	}
	c.logger.Info().Int("topics", len(c.readers)).Msg("Kafka consumer started")
}

func (c *Consumer) consume(ctx context.Context, topic string, reader MessageReader) {
	c.logger.Info().Str("topic", topic).Msg("Starting consumer for topic")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error().Err(err).Str("topic", topic).Msg("Failed to fetch message")
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
			continue
		}

		c.logger.Debug().
			Str("topic", topic).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("Received message")

		status := "consumed"
		if handler, ok := c.handlers[topic]; !ok {
			c.logger.Warn().Str("topic", topic).Msg("No handler registered for topic")
			status = "skipped"
		} else if err := handler(ctx, msg); err != nil {
			// Poison messages are committed so they cannot wedge the partition.
			c.logger.Error().Err(err).Str("topic", topic).Msg("Handler failed")
			status = "failed"
		}
		c.metrics.IncKafkaMessage(topic, status)

		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error().Err(err).Str("topic", topic).Msg("Failed to commit message")
		}
	}
}

func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	var lastErr error
	for topic, reader := range c.readers {
		if err := reader.Close(); err != nil {
			lastErr = err
			c.logger.Error().Err(err).Str("topic", topic).Msg("Failed to close reader")
		}
	}

	c.logger.Info().Msg("Kafka consumer stopped")
	return lastErr
}
