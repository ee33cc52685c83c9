package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/CDeX-Labs/CDeX-Typing-Service/internal/redis"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis, *clock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redisclient.NewClient(mr.Addr(), "", 0, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(client, nil, nil, zerolog.Nop())
	l.now = c.now
	return l, mr, c
}

func TestAllow_EnforcesQuota(t *testing.T) {
	l, _, _ := newLimiter(t)
	ctx := context.Background()
	p := Policy{Name: "submit", Limit: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		d := l.Allow(ctx, p, "player:1")
		require.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 3-(i+1), d.Remaining)
	}

	d := l.Allow(ctx, p, "player:1")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.Minute, d.RetryAfter)

	// other identities have their own window
	assert.True(t, l.Allow(ctx, p, "player:2").Allowed)
}

func TestAllow_WindowSlides(t *testing.T) {
	l, _, c := newLimiter(t)
	ctx := context.Background()
	p := Policy{Name: "leaderboard", Limit: 2, Window: time.Minute}

	require.True(t, l.Allow(ctx, p, "ip:1.2.3.4").Allowed)
	c.advance(30 * time.Second)
	require.True(t, l.Allow(ctx, p, "ip:1.2.3.4").Allowed)

	d := l.Allow(ctx, p, "ip:1.2.3.4")
	require.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	// first request leaves the window, second is still inside it
	c.advance(31 * time.Second)
	require.True(t, l.Allow(ctx, p, "ip:1.2.3.4").Allowed)
	require.False(t, l.Allow(ctx, p, "ip:1.2.3.4").Allowed)
}

func TestAllow_DeniedRequestsDoNotExtendWindow(t *testing.T) {
	l, mr, _ := newLimiter(t)
	ctx := context.Background()
	p := Policy{Name: "chat", Limit: 1, Window: time.Minute}

	require.True(t, l.Allow(ctx, p, "u").Allowed)
	for i := 0; i < 5; i++ {
		require.False(t, l.Allow(ctx, p, "u").Allowed)
	}

	members, err := mr.ZMembers("rl:chat:u")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestAllow_StoreUnavailableStillBounds(t *testing.T) {
	l, mr, _ := newLimiter(t)
	ctx := context.Background()

	mr.SetError("ERR store unavailable")

	for i := 0; i < PolicySubmit.Limit; i++ {
		require.True(t, l.Allow(ctx, PolicySubmit, "player:9").Allowed, "request %d", i)
	}
	d := l.Allow(ctx, PolicySubmit, "player:9")
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestAllow_NoStoreUsesFallback(t *testing.T) {
	l := NewLimiter(nil, NewFallback(10), nil, zerolog.Nop())
	p := Policy{Name: "auth", Limit: 1, Window: time.Minute}

	assert.True(t, l.Allow(context.Background(), p, "ip:x").Allowed)
	assert.False(t, l.Allow(context.Background(), p, "ip:x").Allowed)
}

func TestFallback_SlidingAndBounded(t *testing.T) {
	f := NewFallback(2)
	p := Policy{Name: "auth", Limit: 2, Window: time.Minute}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.True(t, f.Allow("a", p, now).Allowed)
	require.True(t, f.Allow("a", p, now.Add(10*time.Second)).Allowed)

	d := f.Allow("a", p, now.Add(20*time.Second))
	require.False(t, d.Allowed)
	assert.Equal(t, 40*time.Second, d.RetryAfter)

	require.True(t, f.Allow("a", p, now.Add(61*time.Second)).Allowed)

	f.Allow("b", p, now)
	f.Allow("c", p, now)
	assert.Equal(t, 2, f.Len())
}
