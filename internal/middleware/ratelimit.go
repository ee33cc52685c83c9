package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/auth"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/ratelimit"
	"github.com/rs/zerolog"
)

// RateLimit applies policy p per player when the request is authenticated
// and per client address otherwise.
func RateLimit(limiter *ratelimit.Limiter, p ratelimit.Policy, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "ratelimit-mw").Str("policy", p.Name).Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := Identity(r)
			d := limiter.Allow(r.Context(), p, identity)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				logger.Warn().Str("identity", identity).Msg("Rate limit exceeded")
				WriteTooManyRequests(w, d.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Identity is the rate-limit key for r.
func Identity(r *http.Request) string {
	if claims := auth.GetUserFromContext(r.Context()); claims != nil {
		return "player:" + claims.GetPlayerID()
	}
	return "ip:" + GetClientIP(r)
}

// WriteTooManyRequests writes a 429 with a whole-second Retry-After hint.
func WriteTooManyRequests(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":      "Too many requests",
		"retryAfter": secs,
	})
}

func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
