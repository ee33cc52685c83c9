// Package streak tracks consecutive days of play per player.
package streak

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	redisclient "github.com/CDeX-Labs/CDeX-Typing-Service/internal/redis"
)

const (
	streakKeyFmt    = "streak:%s"
	dayLayout       = "2006-01-02"
	maxWatchRetries = 5
)

var ErrUnavailable = errors.New("streak store unavailable")

type Streak struct {
	Current int    `json:"current"`
	Longest int    `json:"longest"`
	LastDay string `json:"lastDay"`
}

// Day is the UTC calendar day containing t.
func Day(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// Advance records activity at now. The second result is false when s already
// covers that day, or a later one.
func Advance(s Streak, now time.Time) (Streak, bool) {
	today := Day(now)

	last, err := time.Parse(dayLayout, s.LastDay)
	if err != nil {
		return Streak{Current: 1, Longest: max(s.Longest, 1), LastDay: today}, true
	}

	cur, _ := time.Parse(dayLayout, today)
	gap := int(cur.Sub(last).Hours() / 24)
	switch {
	case gap <= 0:
		return s, false
	case gap == 1:
		s.Current++
	default:
		s.Current = 1
	}
	s.Longest = max(s.Longest, s.Current)
	s.LastDay = today
	return s, true
}

// At is s as seen on now's day: a streak whose last day is before yesterday
// has lapsed and counts as zero.
func (s Streak) At(now time.Time) Streak {
	last, err := time.Parse(dayLayout, s.LastDay)
	if err != nil {
		return Streak{Longest: s.Longest}
	}
	cur, _ := time.Parse(dayLayout, Day(now))
	if cur.Sub(last) > 24*time.Hour {
		s.Current = 0
	}
	return s
}

type Tracker struct {
	redis  *redisclient.Client
	logger zerolog.Logger
}

func NewTracker(redis *redisclient.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redis,
		logger: logger.With().Str("component", "streak").Logger(),
	}
}

// Touch applies today's activity at most once, using WATCH so concurrent
// submissions from the same player cannot both advance the streak.
func (t *Tracker) Touch(ctx context.Context, playerID string, now time.Time) (*Streak, error) {
	if t.redis == nil {
		return nil, ErrUnavailable
	}
	key := fmt.Sprintf(streakKeyFmt, playerID)

	var result Streak
	apply := func(tx *redisclient.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		next, changed := Advance(decode(fields), now)
		result = next
		if !changed {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redisclient.Pipeliner) error {
			p.HSet(ctx, key, "current", next.Current, "longest", next.Longest, "lastDay", next.LastDay)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := t.redis.Watch(ctx, apply, key)
		if err == nil {
			return &result, nil
		}
		if !errors.Is(err, redisclient.TxFailedErr) {
			return nil, err
		}
		t.logger.Debug().Str("playerId", playerID).Int("attempt", attempt+1).Msg("Streak changed concurrently, retrying")
	}
	return nil, fmt.Errorf("streak for %s: %w", playerID, redisclient.TxFailedErr)
}

// Get returns the stored streak, or nil if the player has none.
func (t *Tracker) Get(ctx context.Context, playerID string) (*Streak, error) {
	if t.redis == nil {
		return nil, ErrUnavailable
	}
	fields, err := t.redis.HGetAll(ctx, fmt.Sprintf(streakKeyFmt, playerID))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	s := decode(fields)
	return &s, nil
}

func decode(fields map[string]string) Streak {
	current, _ := strconv.Atoi(fields["current"])
	longest, _ := strconv.Atoi(fields["longest"])
	return Streak{Current: current, Longest: longest, LastDay: fields["lastDay"]}
}
