package kafka

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/CDeX-Labs/CDeX-Typing-Service/pkg/events"
)

// Rebuilder reloads leaderboard partitions from the store.
type Rebuilder interface {
	Rebuild(ctx context.Context, duration int) (int, error)
	RebuildAll(ctx context.Context) error
}

type Handlers struct {
	boards Rebuilder
	logger zerolog.Logger
}

func NewHandlers(b Rebuilder, logger zerolog.Logger) *Handlers {
	return &Handlers{
		boards: b,
		logger: logger.With().Str("component", "kafka-handlers").Logger(),
	}
}

func (h *Handlers) HandleRebuildRequested(ctx context.Context, msg kafka.Message) error {
	var event events.LeaderboardRebuildRequestedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error().Err(err).Msg("Failed to unmarshal leaderboard.rebuild event")
		return err
	}

	h.logger.Info().
		Int("duration", event.Duration).
		Str("requestedBy", event.RequestedBy).
		Str("reason", event.Reason).
		Msg("Processing leaderboard.rebuild")

	if event.Duration == 0 {
		return h.boards.RebuildAll(ctx)
	}

	n, err := h.boards.Rebuild(ctx, event.Duration)
	if err != nil {
		return err
	}
	h.logger.Info().Int("duration", event.Duration).Int("entries", n).Msg("Leaderboard rebuilt")
	return nil
}

func (h *Handlers) RegisterAll(consumer *Consumer) {
	consumer.RegisterHandler(events.TopicLeaderboardRebuild, h.HandleRebuildRequested)
}
