package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/auth"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/middleware"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/ratelimit"
)

type RouterDeps struct {
	Validator   *auth.JWTValidator
	Limiter     *ratelimit.Limiter
	Results     http.Handler
	Leaderboard *LeaderboardHandler
	Profile     http.Handler
	WebSocket   http.Handler
	Ready       http.Handler
	Metrics     http.Handler
	Logger      zerolog.Logger
}

// NewRouter wires the public API. Submissions are rate limited inside the
// pipeline, after replay protection, so that route has no limiter here.
func NewRouter(d RouterDeps) http.Handler {
	optional := auth.OptionalAuth(d.Validator)
	required := auth.AuthMiddleware(d.Validator)
	boardLimit := middleware.RateLimit(d.Limiter, ratelimit.PolicyLeaderboard, d.Logger)

	mux := http.NewServeMux()

	mux.Handle("POST /v1/results", optional(d.Results))

	if d.Profile != nil {
		mux.Handle("GET /v1/profile", required(d.Profile))
	}

	mux.Handle("GET /v1/leaderboard/{duration}", optional(boardLimit(http.HandlerFunc(d.Leaderboard.Page))))
	mux.Handle("GET /v1/leaderboard/{duration}/rank", required(boardLimit(http.HandlerFunc(d.Leaderboard.Rank))))

	mux.Handle("POST /v1/admin/leaderboard/rebuild", required(auth.RequireAdmin(http.HandlerFunc(d.Leaderboard.Rebuild))))
	mux.Handle("DELETE /v1/admin/leaderboard/cache", required(auth.RequireAdmin(http.HandlerFunc(d.Leaderboard.Clear))))

	if d.WebSocket != nil {
		handshakeLimit := middleware.RateLimit(d.Limiter, ratelimit.PolicyAuth, d.Logger)
		mux.Handle("GET /v1/ws", handshakeLimit(required(d.WebSocket)))
	}

	mux.Handle("GET /health", HealthHandler())
	if d.Ready != nil {
		mux.Handle("GET /ready", d.Ready)
	}
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	return middleware.RequestLogger(d.Logger)(mux)
}
