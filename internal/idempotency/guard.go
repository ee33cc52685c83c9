// Package idempotency rejects replayed typing-test submissions.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/metrics"
	redisclient "github.com/CDeX-Labs/CDeX-Typing-Service/internal/redis"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

const (
	keyFmt = "submit:idem:%s:%s"

	// Window is how long an attempt id stays claimed.
	Window = 24 * time.Hour

	fallbackSize = 50_000
)

var (
	ErrInvalidAttemptID = errors.New("invalid attempt id")
	ErrAlreadySubmitted = errors.New("attempt already submitted")
)

var uuidV4 = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// ValidAttemptID reports whether id is a canonical version-4 UUID.
func ValidAttemptID(id string) bool {
	return uuidV4.MatchString(id)
}

type Guard struct {
	redis   *redisclient.Client
	window  time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu       sync.Mutex
	fallback *expirable.LRU[string, struct{}]
}

func NewGuard(redis *redisclient.Client, m *metrics.Metrics, logger zerolog.Logger) *Guard {
	return &Guard{
		redis:    redis,
		window:   Window,
		metrics:  m,
		logger:   logger.With().Str("component", "idempotency").Logger(),
		fallback: expirable.NewLRU[string, struct{}](fallbackSize, nil, Window),
	}
}

// Claim marks (playerID, attemptID) as used. It returns ErrAlreadySubmitted
// when the pair was claimed before within the window. Claims are mirrored in
// process so ones taken while the store was down still count once it is back.
func (g *Guard) Claim(ctx context.Context, playerID, attemptID string) error {
	if !ValidAttemptID(attemptID) {
		return ErrInvalidAttemptID
	}

	key := fmt.Sprintf(keyFmt, playerID, attemptID)

	if g.redis != nil {
		ok, err := g.redis.SetNX(ctx, key, time.Now().UnixMilli(), g.window)
		if err == nil {
			if !ok {
				return ErrAlreadySubmitted
			}
			return g.claimLocal(key)
		}
		g.logger.Warn().Err(err).Str("playerId", playerID).Msg("Idempotency store unavailable, using in-process fallback")
	}

	g.metrics.IncIdempotencyFallback()
	return g.claimLocal(key)
}

func (g *Guard) claimLocal(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fallback.Contains(key) {
		return ErrAlreadySubmitted
	}
	g.fallback.Add(key, struct{}{})
	return nil
}
