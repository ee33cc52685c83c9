// Package ratelimit bounds request frequency per identity with a sliding
// window kept in Redis, falling back to an in-process log when Redis is down.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/metrics"
	redisclient "github.com/CDeX-Labs/CDeX-Typing-Service/internal/redis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyFmt = "rl:%s:%s"

// Policy is a per-endpoint quota.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

var (
	PolicySubmit      = Policy{Name: "submit", Limit: 20, Window: time.Minute}
	PolicyLeaderboard = Policy{Name: "leaderboard", Limit: 30, Window: time.Minute}
	PolicyAuth        = Policy{Name: "auth", Limit: 5, Window: time.Minute}
)

// Decision is the answer for one request.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter struct {
	redis    *redisclient.Client
	fallback *Fallback
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

func NewLimiter(redis *redisclient.Client, fallback *Fallback, m *metrics.Metrics, logger zerolog.Logger) *Limiter {
	if fallback == nil {
		fallback = NewFallback(DefaultFallbackSize)
	}
	return &Limiter{
		redis:    redis,
		fallback: fallback,
		metrics:  m,
		logger:   logger.With().Str("component", "ratelimit").Logger(),
		now:      time.Now,
	}
}

// Allow records one request for identity under p and reports whether it fits.
// Store failures are answered by the in-process fallback, never by allowing
// unconditionally.
func (l *Limiter) Allow(ctx context.Context, p Policy, identity string) Decision {
	now := l.now()
	key := fmt.Sprintf(keyFmt, p.Name, identity)

	if l.redis != nil {
		d, err := l.allowRedis(ctx, key, p, now)
		if err == nil {
			return d
		}
		l.logger.Warn().Err(err).Str("policy", p.Name).Msg("Rate limit store unavailable, using in-process fallback")
	}

	l.metrics.IncLimiterFallback(p.Name)
	return l.fallback.Allow(key, p, now)
}

func (l *Limiter) allowRedis(ctx context.Context, key string, p Policy, now time.Time) (Decision, error) {
	nowMs := now.UnixMilli()
	cutoff := nowMs - p.Window.Milliseconds()
	member := strconv.FormatInt(nowMs, 10) + ":" + uuid.NewString()

	var card *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(nowMs), Member: member})
		card = pipe.ZCard(ctx, key)
		oldest = pipe.ZRangeWithScores(ctx, key, 0, 0)
		pipe.PExpire(ctx, key, p.Window)
		return nil
	})
	if err != nil {
		return Decision{}, err
	}

	count := int(card.Val())
	if count <= p.Limit {
		return Decision{Allowed: true, Limit: p.Limit, Remaining: p.Limit - count}, nil
	}

	// Denied requests do not occupy the window.
	if err := l.redis.ZRem(ctx, key, member); err != nil {
		l.logger.Debug().Err(err).Str("key", key).Msg("Failed to drop denied request from window")
	}

	retryAfter := p.Window
	if zs := oldest.Val(); len(zs) > 0 {
		resetAt := time.UnixMilli(int64(zs[0].Score)).Add(p.Window)
		retryAfter = resetAt.Sub(now)
	}
	if retryAfter < 0 {
		retryAfter = 0
	}

	return Decision{Allowed: false, Limit: p.Limit, Remaining: 0, RetryAfter: retryAfter}, nil
}
