package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/auth"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/ratelimit"
)

func TestRateLimit_PerIdentity(t *testing.T) {
	limiter := ratelimit.NewLimiter(nil, ratelimit.NewFallback(100), nil, zerolog.Nop())
	p := ratelimit.Policy{Name: "leaderboard", Limit: 2, Window: time.Minute}
	h := RateLimit(limiter, p, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(remote string, claims *auth.Claims) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/leaderboard/30", nil)
		req.RemoteAddr = remote
		if claims != nil {
			req = req.WithContext(auth.WithClaims(req.Context(), claims))
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:5000", nil).Code)
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:5001", nil).Code)

	rr := do("10.0.0.1:5002", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "Too many requests")

	// authenticated callers are keyed by player, not address
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:5003", &auth.Claims{Sub: "p1"}).Code)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:4242"
	assert.Equal(t, "192.168.1.5", GetClientIP(req))

	req.Header.Set("X-Real-IP", "172.16.0.9")
	assert.Equal(t, "172.16.0.9", GetClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", GetClientIP(req))
}

func TestWriteTooManyRequests_RoundsUp(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteTooManyRequests(rr, 1500*time.Millisecond)
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))

	rr = httptest.NewRecorder()
	WriteTooManyRequests(rr, 0)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}
