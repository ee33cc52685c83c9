// Package reward credits coins for accepted results.
package reward

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/metrics"
)

// DefaultMaxAttempts bounds the compare-and-swap fallback.
const DefaultMaxAttempts = 5

var ErrContended = errors.New("balance kept changing during credit")

// Balances is the coin ledger the issuer writes to.
type Balances interface {
	AddBalance(ctx context.Context, playerID string, amount int64) (int64, error)
	GetBalance(ctx context.Context, playerID string) (int64, error)
	CompareAndSwapBalance(ctx context.Context, playerID string, prev, next int64) (bool, error)
}

// Outcome is nil-valued where issuance did not complete.
type Outcome struct {
	Earned *int64
	Total  *int64
}

type Issuer struct {
	balances    Balances
	maxAttempts int
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

func NewIssuer(balances Balances, m *metrics.Metrics, logger zerolog.Logger) *Issuer {
	return &Issuer{
		balances:    balances,
		maxAttempts: DefaultMaxAttempts,
		metrics:     m,
		logger:      logger.With().Str("component", "reward").Logger(),
	}
}

// Amount is round(wpm * duration / 7), never negative.
func Amount(wpm, durationSec int) int64 {
	if durationSec <= 0 || wpm <= 0 {
		return 0
	}
	return int64(math.Round(float64(wpm) * (float64(durationSec) / 7)))
}

// Issue credits the player. Failures are logged and reported as a partial
// outcome; the caller's result is already saved.
func (i *Issuer) Issue(ctx context.Context, playerID string, wpm, durationSec int) Outcome {
	amount := Amount(wpm, durationSec)

	total, err := i.balances.AddBalance(ctx, playerID, amount)
	if err == nil {
		return Outcome{Earned: &amount, Total: &total}
	}

	i.logger.Warn().Err(err).Str("playerId", playerID).Int64("amount", amount).
		Msg("Atomic credit failed, using compare-and-swap fallback")

	total, err = i.casCredit(ctx, playerID, amount)
	if err != nil {
		i.metrics.IncRewardFallback("failed")
		i.logger.Error().Err(err).Str("playerId", playerID).Int64("amount", amount).
			Msg("Failed to issue reward")
		return Outcome{}
	}

	i.metrics.IncRewardFallback("ok")
	return Outcome{Earned: &amount, Total: &total}
}

func (i *Issuer) casCredit(ctx context.Context, playerID string, amount int64) (int64, error) {
	for attempt := 0; attempt < i.maxAttempts; attempt++ {
		current, err := i.balances.GetBalance(ctx, playerID)
		if err != nil {
			return 0, err
		}
		next := current + amount
		swapped, err := i.balances.CompareAndSwapBalance(ctx, playerID, current, next)
		if err != nil {
			return 0, err
		}
		if swapped {
			return next, nil
		}
		i.logger.Debug().Str("playerId", playerID).Int("attempt", attempt+1).Msg("Balance changed concurrently, retrying")
	}
	return 0, ErrContended
}
