// Package submission runs a finished typing test through replay protection,
// rate limiting and anti-cheat checks, then saves and rewards it.
package submission

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/anticheat"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/idempotency"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/leaderboard"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/ratelimit"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/reward"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/store"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/streak"
	"github.com/CDeX-Labs/CDeX-Typing-Service/pkg/events"
)

const defaultLanguage = "en"

var ErrInvalidDuration = errors.New("invalid test duration")

type Guard interface {
	Claim(ctx context.Context, playerID, attemptID string) error
}

type Limiter interface {
	Allow(ctx context.Context, p ratelimit.Policy, identity string) ratelimit.Decision
}

type Store interface {
	InsertValidatedResult(ctx context.Context, r store.ValidatedResult) (*store.SavedResult, error)
}

type Rewards interface {
	Issue(ctx context.Context, playerID string, wpm, durationSec int) reward.Outcome
}

type Streaks interface {
	Touch(ctx context.Context, playerID string, now time.Time) (*streak.Streak, error)
}

type Leaderboard interface {
	Record(ctx context.Context, duration int, e leaderboard.Entry)
}

type Publisher interface {
	PublishResultAccepted(ctx context.Context, event events.ResultAcceptedEvent) error
}

// Deps are the collaborators of the pipeline. Streaks, Leaderboard and
// Publisher are optional.
type Deps struct {
	Guard       Guard
	Limiter     Limiter
	Store       Store
	Rewards     Rewards
	Streaks     Streaks
	Leaderboard Leaderboard
	Publisher   Publisher
}

type Config struct {
	Policy       ratelimit.Policy
	Timing       anticheat.TimingLimits
	Plausibility anticheat.PlausibilityLimits
}

func DefaultConfig() Config {
	return Config{
		Policy:       ratelimit.PolicySubmit,
		Timing:       anticheat.DefaultTimingLimits(),
		Plausibility: anticheat.DefaultPlausibilityLimits(),
	}
}

type Service struct {
	deps    Deps
	cfg     Config
	now     func() time.Time
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewService(deps Deps, cfg Config, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		deps:    deps,
		cfg:     cfg,
		now:     time.Now,
		metrics: m,
		logger:  logger.With().Str("component", "submission").Logger(),
	}
}

// Submit adjudicates one run. Every non-nil error is a *Rejection.
func (s *Service) Submit(ctx context.Context, who Identity, req Request) (*Response, error) {
	start := s.now()
	resp, err := s.submit(ctx, who, req)

	outcome := "accepted"
	if rej, ok := AsRejection(err); ok {
		outcome = rej.Kind.String()
	}
	s.metrics.IncSubmission(outcome)
	s.metrics.ObserveStage("total", s.now().Sub(start).Seconds())
	return resp, err
}

func (s *Service) submit(ctx context.Context, who Identity, req Request) (*Response, error) {
	if who.PlayerID == "" {
		return nil, &Rejection{Kind: KindUnauthenticated, Reason: MsgUnauthenticated}
	}
	log := s.logger.With().Str("playerId", who.PlayerID).Str("attemptId", req.AttemptID).Logger()

	if err := s.deps.Guard.Claim(ctx, who.PlayerID, req.AttemptID); err != nil {
		if errors.Is(err, idempotency.ErrInvalidAttemptID) {
			return nil, reject(KindInvalidInput, err)
		}
		return nil, reject(KindReplay, err)
	}

	if d := s.deps.Limiter.Allow(ctx, s.cfg.Policy, "player:"+who.PlayerID); !d.Allowed {
		return nil, &Rejection{Kind: KindRateLimited, Reason: MsgRateLimited, RetryAfter: d.RetryAfter}
	}

	if req.Duration <= 0 {
		return nil, reject(KindInvalidInput, ErrInvalidDuration)
	}

	t := s.now()
	if err := anticheat.ValidateTiming(req.Keystrokes, req.StartTime, req.Duration, s.cfg.Timing); err != nil {
		log.Info().Err(err).Int("keystrokes", len(req.Keystrokes)).Msg("Rejected submission timing")
		return nil, reject(KindTimingInvalid, err)
	}

	stats := anticheat.Recalculate(req.TypedWords, req.ExpectedWords, req.Duration)
	sample := anticheat.NewSample(req.Keystrokes, req.TypedWords, req.ExpectedWords, stats)
	if err := anticheat.CheckPlausibility(sample, s.cfg.Plausibility); err != nil {
		log.Info().Err(err).Int("wpm", stats.WPM).Int("accuracy", stats.Accuracy).Msg("Rejected implausible submission")
		return nil, reject(KindPlausibilityInvalid, err)
	}
	s.metrics.ObserveStage("validate", s.now().Sub(t).Seconds())

	lang := req.Language
	if lang == "" {
		lang = defaultLanguage
	}

	t = s.now()
	saved, err := s.deps.Store.InsertValidatedResult(ctx, store.ValidatedResult{
		PlayerID:       who.PlayerID,
		DisplayName:    who.DisplayName,
		Email:          who.Email,
		WPM:            stats.WPM,
		Accuracy:       stats.Accuracy,
		CorrectChars:   stats.CorrectChars,
		IncorrectChars: stats.IncorrectChars,
		Duration:       req.Duration,
		Theme:          req.Theme,
		Language:       lang,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to save result")
		return nil, &Rejection{Kind: KindPersistenceFailed, Reason: MsgSaveFailed, Err: err}
	}
	s.metrics.ObserveStage("persist", s.now().Sub(t).Seconds())

	resp := &Response{ID: saved.ID, WPM: stats.WPM, Accuracy: stats.Accuracy, CreatedAt: saved.CreatedAt}

	// The result is saved; nothing below may fail the submission.
	outcome := s.deps.Rewards.Issue(ctx, who.PlayerID, stats.WPM, req.Duration)
	resp.CoinsEarned, resp.TotalCoins = outcome.Earned, outcome.Total

	if s.deps.Streaks != nil {
		st, err := s.deps.Streaks.Touch(ctx, who.PlayerID, saved.CreatedAt)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to update streak")
		}
		resp.Streak = st
	}

	if s.deps.Leaderboard != nil {
		s.deps.Leaderboard.Record(ctx, req.Duration, leaderboard.Entry{
			ID:          saved.ID,
			PlayerID:    who.PlayerID,
			DisplayName: who.DisplayName,
			Email:       who.Email,
			WPM:         stats.WPM,
			Accuracy:    stats.Accuracy,
			CreatedAt:   saved.CreatedAt,
		})
	}

	if s.deps.Publisher != nil {
		err := s.deps.Publisher.PublishResultAccepted(ctx, events.ResultAcceptedEvent{
			ResultID:       saved.ID,
			PlayerID:       who.PlayerID,
			WPM:            stats.WPM,
			Accuracy:       stats.Accuracy,
			CorrectChars:   stats.CorrectChars,
			IncorrectChars: stats.IncorrectChars,
			Duration:       req.Duration,
			Theme:          req.Theme,
			Language:       lang,
			CoinsEarned:    outcome.Earned,
			Timestamp:      saved.CreatedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to publish result event")
		}
	}

	log.Info().Str("resultId", saved.ID).Int("wpm", stats.WPM).Int("accuracy", stats.Accuracy).Int("duration", req.Duration).
		Msg("Result accepted")
	return resp, nil
}
