package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/auth"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/store"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/streak"
)

type fakeProfiles struct {
	p   *store.Profile
	err error
}

func (f fakeProfiles) GetProfile(context.Context, string) (*store.Profile, error) { return f.p, f.err }

type fakeStreaks struct {
	s   *streak.Streak
	err error
}

func (f fakeStreaks) Get(context.Context, string) (*streak.Streak, error) { return f.s, f.err }

func serveProfile(h *ProfileHandler, claims *auth.Claims) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/profile", nil)
	if claims != nil {
		req = req.WithContext(auth.WithClaims(req.Context(), claims))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestProfile(t *testing.T) {
	profile := &store.Profile{ID: "p1", DisplayName: "Ada", Coins: 120, CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	h := NewProfileHandler(fakeProfiles{p: profile}, fakeStreaks{s: &streak.Streak{Current: 3, Longest: 5, LastDay: "2026-03-08"}}, zerolog.Nop())
	h.now = func() time.Time { return time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC) }

	assert.Equal(t, http.StatusUnauthorized, serveProfile(h, nil).Code)

	rr := serveProfile(h, &auth.Claims{Sub: "p1"})
	require.Equal(t, http.StatusOK, rr.Code)
	out := decode(t, rr)
	assert.EqualValues(t, 120, out["coins"])
	streakOut := out["streak"].(map[string]interface{})
	assert.EqualValues(t, 0, streakOut["current"])
	assert.EqualValues(t, 5, streakOut["longest"])
}

func TestProfile_StreakUnavailable(t *testing.T) {
	h := NewProfileHandler(fakeProfiles{p: &store.Profile{ID: "p1"}}, fakeStreaks{err: streak.ErrUnavailable}, zerolog.Nop())

	rr := serveProfile(h, &auth.Claims{Sub: "p1"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, decode(t, rr)["streak"])
}

func TestProfile_Errors(t *testing.T) {
	h := NewProfileHandler(fakeProfiles{err: store.ErrNotFound}, fakeStreaks{}, zerolog.Nop())
	assert.Equal(t, http.StatusNotFound, serveProfile(h, &auth.Claims{Sub: "p1"}).Code)

	h = NewProfileHandler(fakeProfiles{err: errors.New("conn reset")}, fakeStreaks{}, zerolog.Nop())
	assert.Equal(t, http.StatusInternalServerError, serveProfile(h, &auth.Claims{Sub: "p1"}).Code)
}
