package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/metrics"
	redisclient "github.com/CDeX-Labs/CDeX-Typing-Service/internal/redis"
)

const maxWatchRetries = 3

var (
	ErrCacheMiss        = errors.New("leaderboard cache is empty")
	ErrCacheStale       = errors.New("leaderboard cache is stale")
	ErrCacheUnavailable = errors.New("leaderboard cache unavailable")
)

// Cache is a ZSET of ranked members plus a hash of entry details per
// duration. Writes go out as a single MULTI so readers never see a ranked
// member without its details. A partition is only served once a rebuild has
// set its warm marker; anything else is a miss.
type Cache struct {
	redis   *redisclient.Client
	topN    int
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewCache(redis *redisclient.Client, m *metrics.Metrics, logger zerolog.Logger) *Cache {
	return &Cache{
		redis:   redis,
		topN:    TopN,
		metrics: m,
		logger:  logger.With().Str("component", "leaderboard-cache").Logger(),
	}
}

// MaxPage is the last page of size pageSize that can hold ranked entries.
func MaxPage(pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (TopN-1)/pageSize + 1
}

// Upsert ranks e and trims the partition back to the top N. A cold
// partition is left alone and reported as ErrCacheMiss so the caller can
// rebuild it from the store instead.
func (c *Cache) Upsert(ctx context.Context, duration int, e Entry) error {
	if c.redis == nil {
		return ErrCacheUnavailable
	}
	e.Rank = 0
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	rk, ek, wk := rankKey(duration), entriesKey(duration), warmKey(duration)
	apply := func(tx *redisclient.Tx) error {
		n, err := tx.Exists(ctx, wk, rk).Result()
		if err != nil {
			return err
		}
		if n < 2 {
			return ErrCacheMiss
		}
		_, err = tx.TxPipelined(ctx, func(p redisclient.Pipeliner) error {
			p.ZAdd(ctx, rk, redisclient.Z{Score: score(e), Member: member(e)})
			p.HSet(ctx, ek, e.ID, data)
			p.ZRemRangeByRank(ctx, rk, 0, int64(-(c.topN + 1)))
			return nil
		})
		return err
	}

	// Only the marker is watched. Concurrent upserts may interleave, but a
	// rebuild or clear landing mid-write forces a recheck.
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err = c.redis.Watch(ctx, apply, wk)
		if !errors.Is(err, redisclient.TxFailedErr) {
			return err
		}
	}
	return ErrCacheMiss
}

// Page returns entries for a 1-based page. ErrCacheMiss means the partition
// is cold or empty; ErrCacheStale means more than half of the page's details
// are missing and the caller should read from the store.
func (c *Cache) Page(ctx context.Context, duration, page, pageSize int) ([]Entry, error) {
	if c.redis == nil {
		return nil, ErrCacheUnavailable
	}
	rk := rankKey(duration)

	warm, err := c.redis.Exists(ctx, warmKey(duration))
	if err != nil {
		return nil, err
	}
	if warm == 0 {
		return nil, ErrCacheMiss
	}
	size, err := c.redis.ZCard(ctx, rk)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, ErrCacheMiss
	}
	if page < 1 || page > MaxPage(pageSize) {
		return []Entry{}, nil
	}

	start := int64(page-1) * int64(pageSize)
	stop := start + int64(pageSize) - 1
	members, err := c.redis.ZRevRange(ctx, rk, start, stop)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []Entry{}, nil
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = idFromMember(m)
	}
	details, err := c.redis.HMGet(ctx, entriesKey(duration), ids...)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(ids))
	missing := 0
	for i, raw := range details {
		s, ok := raw.(string)
		if !ok {
			missing++
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			c.logger.Warn().Err(err).Str("id", ids[i]).Msg("Corrupt leaderboard entry")
			missing++
			continue
		}
		e.Rank = int(start) + i + 1
		entries = append(entries, e)
	}

	if missing*2 > len(ids) {
		c.logger.Warn().Int("duration", duration).Int("missing", missing).Int("expected", len(ids)).
			Msg("Leaderboard details missing, treating cache as stale")
		return nil, ErrCacheStale
	}
	return entries, nil
}

// Rebuild replaces the partition with entries and marks it warm in one
// MULTI. Entries beyond the top N are ignored.
func (c *Cache) Rebuild(ctx context.Context, duration int, entries []Entry) error {
	if c.redis == nil {
		return ErrCacheUnavailable
	}
	if len(entries) > c.topN {
		entries = entries[:c.topN]
	}

	members := make([]redisclient.Z, 0, len(entries))
	details := make([]interface{}, 0, 2*len(entries))
	for _, e := range entries {
		e.Rank = 0
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		members = append(members, redisclient.Z{Score: score(e), Member: member(e)})
		details = append(details, e.ID, data)
	}

	rk, ek, wk := rankKey(duration), entriesKey(duration), warmKey(duration)
	_, err := c.redis.TxPipelined(ctx, func(p redisclient.Pipeliner) error {
		p.Del(ctx, rk, ek)
		if len(members) > 0 {
			p.ZAdd(ctx, rk, members...)
			p.HSet(ctx, ek, details...)
		}
		p.Set(ctx, wk, time.Now().UTC().Format(time.RFC3339), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("rebuild duration %d: %w", duration, err)
	}
	return nil
}

// ClearAll drops every leaderboard key and returns how many were removed.
func (c *Cache) ClearAll(ctx context.Context) (int, error) {
	if c.redis == nil {
		return 0, ErrCacheUnavailable
	}
	keys, err := c.redis.ScanKeys(ctx, keyPattern)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.redis.Del(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Prune removes detail records whose entries were trimmed from the ranking.
func (c *Cache) Prune(ctx context.Context, duration int) (int, error) {
	if c.redis == nil {
		return 0, ErrCacheUnavailable
	}
	ek := entriesKey(duration)

	ids, err := c.redis.HKeys(ctx, ek)
	if err != nil {
		return 0, err
	}
	members, err := c.redis.ZRevRange(ctx, rankKey(duration), 0, -1)
	if err != nil {
		return 0, err
	}

	ranked := make(map[string]struct{}, len(members))
	for _, m := range members {
		ranked[idFromMember(m)] = struct{}{}
	}
	var orphans []string
	for _, id := range ids {
		if _, ok := ranked[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}
	if err := c.redis.HDel(ctx, ek, orphans...); err != nil {
		return 0, err
	}
	return len(orphans), nil
}
