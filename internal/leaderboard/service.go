package leaderboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/store"
)

const (
	SourceCache = "cache"
	SourceStore = "store"

	rebuildTimeout = 30 * time.Second
)

var ErrUnknownDuration = errors.New("unknown leaderboard duration")

// DefaultDurations are the partitions served.
var DefaultDurations = []int{15, 30, 60, 120}

// Store is the authoritative source the cache is rebuilt from.
type Store interface {
	TopResults(ctx context.Context, duration, offset, limit int) ([]store.RankedResult, error)
	PlayerRank(ctx context.Context, playerID string, duration int) (int, *store.RankedResult, error)
}

// Notifier is told about every entry recorded on this instance.
type Notifier interface {
	LeaderboardUpdated(ctx context.Context, duration int, e Entry)
}

type Page struct {
	Duration int     `json:"duration"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
	Entries  []Entry `json:"entries"`
	Source   string  `json:"source"`
}

type Service struct {
	cache     *Cache
	store     Store
	notifier  Notifier
	durations []int
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	rebuilding sync.Map
	wg         sync.WaitGroup
}

func NewService(cache *Cache, st Store, durations []int, m *metrics.Metrics, logger zerolog.Logger) *Service {
	if len(durations) == 0 {
		durations = DefaultDurations
	}
	return &Service{
		cache:     cache,
		store:     st,
		durations: durations,
		metrics:   m,
		logger:    logger.With().Str("component", "leaderboard").Logger(),
	}
}

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func (s *Service) Durations() []int { return s.durations }

func (s *Service) ValidDuration(d int) bool {
	for _, v := range s.durations {
		if v == d {
			return true
		}
	}
	return false
}

// Page serves from the cache when it is warm. Any cache failure falls back to
// the store; an empty or stale partition also schedules a rebuild.
func (s *Service) Page(ctx context.Context, duration, page, pageSize int) (*Page, error) {
	if !s.ValidDuration(duration) {
		return nil, ErrUnknownDuration
	}
	out := &Page{Duration: duration, Page: page, PageSize: pageSize}

	if page < 1 || page > MaxPage(pageSize) {
		out.Entries, out.Source = []Entry{}, SourceCache
		return out, nil
	}
	offset := (page - 1) * pageSize

	entries, err := s.cache.Page(ctx, duration, page, pageSize)
	switch {
	case err == nil:
		s.metrics.IncLeaderboardCache("hit")
		out.Entries, out.Source = entries, SourceCache
		return out, nil
	case errors.Is(err, ErrCacheMiss):
		s.metrics.IncLeaderboardCache("miss")
		s.scheduleRebuild(duration)
	case errors.Is(err, ErrCacheStale):
		s.metrics.IncLeaderboardCache("stale")
		s.scheduleRebuild(duration)
	default:
		s.metrics.IncLeaderboardCache("error")
		s.logger.Warn().Err(err).Int("duration", duration).Msg("Leaderboard cache read failed, using store")
	}

	limit := min(pageSize, TopN-offset)
	rows, err := s.store.TopResults(ctx, duration, offset, limit)
	if err != nil {
		return nil, err
	}
	out.Entries = make([]Entry, len(rows))
	for i, r := range rows {
		out.Entries[i] = FromResult(r)
		out.Entries[i].Rank = offset + i + 1
	}
	out.Source = SourceStore
	return out, nil
}

// Record adds a freshly saved result to the cache and notifies listeners.
// A cold partition is rebuilt from the store, which already holds e. Other
// cache failures are logged only. Unranked durations are ignored.
func (s *Service) Record(ctx context.Context, duration int, e Entry) {
	if !s.ValidDuration(duration) {
		return
	}
	err := s.cache.Upsert(ctx, duration, e)
	switch {
	case err == nil:
	case errors.Is(err, ErrCacheMiss):
		s.metrics.IncLeaderboardCache("miss")
		s.scheduleRebuild(duration)
	default:
		s.metrics.IncLeaderboardCache("error")
		s.logger.Warn().Err(err).Int("duration", duration).Str("id", e.ID).Msg("Failed to update leaderboard cache")
	}
	if s.notifier != nil {
		s.notifier.LeaderboardUpdated(ctx, duration, e)
	}
}

// Rebuild reloads one partition from the store and returns its size.
func (s *Service) Rebuild(ctx context.Context, duration int) (int, error) {
	if !s.ValidDuration(duration) {
		return 0, ErrUnknownDuration
	}
	rows, err := s.store.TopResults(ctx, duration, 0, TopN)
	if err != nil {
		return 0, err
	}
	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = FromResult(r)
	}
	if err := s.cache.Rebuild(ctx, duration, entries); err != nil {
		return 0, err
	}

	s.metrics.IncLeaderboardCache("rebuild")
	s.logger.Info().Int("duration", duration).Int("entries", len(entries)).Msg("Leaderboard rebuilt")
	return len(entries), nil
}

func (s *Service) RebuildAll(ctx context.Context) error {
	var errs []error
	for _, d := range s.durations {
		if _, err := s.Rebuild(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) ClearAll(ctx context.Context) (int, error) {
	n, err := s.cache.ClearAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int("keys", n).Msg("Leaderboard cache cleared")
	return n, nil
}

// PruneAll drops orphaned detail records in every partition.
func (s *Service) PruneAll(ctx context.Context) (int, error) {
	total := 0
	for _, d := range s.durations {
		n, err := s.cache.Prune(ctx, d)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// PlayerRank returns the player's best entry with its rank, from the store.
func (s *Service) PlayerRank(ctx context.Context, playerID string, duration int) (*Entry, error) {
	if !s.ValidDuration(duration) {
		return nil, ErrUnknownDuration
	}
	rank, best, err := s.store.PlayerRank(ctx, playerID, duration)
	if err != nil {
		return nil, err
	}
	e := FromResult(*best)
	e.Rank = rank
	return &e, nil
}

// RunJanitor prunes every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PruneAll(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("Leaderboard prune failed")
				continue
			}
			if n > 0 {
				s.logger.Debug().Int("removed", n).Msg("Pruned leaderboard details")
			}
		}
	}
}

// Wait blocks until background rebuilds finish.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) scheduleRebuild(duration int) {
	if _, busy := s.rebuilding.LoadOrStore(duration, struct{}{}); busy {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.rebuilding.Delete(duration)

		ctx, cancel := context.WithTimeout(context.Background(), rebuildTimeout)
		defer cancel()
		if _, err := s.Rebuild(ctx, duration); err != nil {
			s.logger.Warn().Err(err).Int("duration", duration).Msg("Background leaderboard rebuild failed")
		}
	}()
}
