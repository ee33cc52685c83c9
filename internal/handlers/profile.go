package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/auth"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/store"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/streak"
)

type Profiles interface {
	GetProfile(ctx context.Context, id string) (*store.Profile, error)
}

type Streaks interface {
	Get(ctx context.Context, playerID string) (*streak.Streak, error)
}

type profileResponse struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"displayName"`
	Email       string         `json:"email"`
	Coins       int64          `json:"coins"`
	Streak      *streak.Streak `json:"streak"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type ProfileHandler struct {
	profiles Profiles
	streaks  Streaks
	now      func() time.Time
	logger   zerolog.Logger
}

func NewProfileHandler(p Profiles, s Streaks, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: p,
		streaks:  s,
		now:      time.Now,
		logger:   logger.With().Str("component", "profile-handler").Logger(),
	}
}

// ServeHTTP handles GET /v1/profile. The streak is omitted when its store is
// unreachable.
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	p, err := h.profiles.GetProfile(r.Context(), claims.GetPlayerID())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		h.logger.Error().Err(err).Str("playerId", claims.GetPlayerID()).Msg("Failed to load profile")
		writeError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	resp := profileResponse{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		Coins:       p.Coins,
		CreatedAt:   p.CreatedAt,
	}
	s, err := h.streaks.Get(r.Context(), p.ID)
	switch {
	case err != nil:
		h.logger.Warn().Err(err).Str("playerId", p.ID).Msg("Streak unavailable")
	case s != nil:
		current := s.At(h.now())
		resp.Streak = &current
	}

	writeJSON(w, http.StatusOK, resp)
}
