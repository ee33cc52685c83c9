package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/auth"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/leaderboard"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type Leaderboards interface {
	Page(ctx context.Context, duration, page, pageSize int) (*leaderboard.Page, error)
	PlayerRank(ctx context.Context, playerID string, duration int) (*leaderboard.Entry, error)
	Rebuild(ctx context.Context, duration int) (int, error)
	RebuildAll(ctx context.Context) error
	ClearAll(ctx context.Context) (int, error)
	Durations() []int
}

type LeaderboardHandler struct {
	boards Leaderboards
	logger zerolog.Logger
}

func NewLeaderboardHandler(b Leaderboards, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		boards: b,
		logger: logger.With().Str("component", "leaderboard-handler").Logger(),
	}
}

// Page handles GET /v1/leaderboard/{duration}?page=&pageSize=.
func (h *LeaderboardHandler) Page(w http.ResponseWriter, r *http.Request) {
	duration, err := strconv.Atoi(r.PathValue("duration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid duration")
		return
	}
	page, ok := queryInt(r, "page", 1)
	if !ok || page < 1 {
		writeError(w, http.StatusBadRequest, "Invalid page")
		return
	}
	size, ok := queryInt(r, "pageSize", defaultPageSize)
	if !ok || size < 1 || size > maxPageSize {
		writeError(w, http.StatusBadRequest, "Invalid page size")
		return
	}

	// Nothing is ranked past TopN, and larger pages would overflow the offset.
	if page > leaderboard.MaxPage(size) && slices.Contains(h.boards.Durations(), duration) {
		writeJSON(w, http.StatusOK, &leaderboard.Page{
			Duration: duration,
			Page:     page,
			PageSize: size,
			Entries:  []leaderboard.Entry{},
			Source:   leaderboard.SourceCache,
		})
		return
	}

	result, err := h.boards.Page(r.Context(), duration, page, size)
	if err != nil {
		if errors.Is(err, leaderboard.ErrUnknownDuration) {
			writeError(w, http.StatusBadRequest, "Invalid duration")
			return
		}
		h.logger.Error().Err(err).Int("duration", duration).Msg("Failed to load leaderboard")
		writeError(w, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}

	if claims := auth.GetUserFromContext(r.Context()); claims == nil || !claims.IsAdmin() {
		for i := range result.Entries {
			result.Entries[i].Email = ""
		}
	}
	writeJSON(w, http.StatusOK, result)
}

// Rank handles GET /v1/leaderboard/{duration}/rank for the caller.
func (h *LeaderboardHandler) Rank(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	duration, err := strconv.Atoi(r.PathValue("duration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid duration")
		return
	}

	entry, err := h.boards.PlayerRank(r.Context(), claims.GetPlayerID(), duration)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, entry)
	case errors.Is(err, leaderboard.ErrUnknownDuration):
		writeError(w, http.StatusBadRequest, "Invalid duration")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "No results for this duration")
	default:
		h.logger.Error().Err(err).Msg("Failed to compute rank")
		writeError(w, http.StatusInternalServerError, "Failed to compute rank")
	}
}

// Rebuild handles POST /v1/admin/leaderboard/rebuild?duration=. Without a
// duration every partition is rebuilt.
func (h *LeaderboardHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	duration, ok := queryInt(r, "duration", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid duration")
		return
	}

	if duration == 0 {
		if err := h.boards.RebuildAll(r.Context()); err != nil {
			h.logger.Error().Err(err).Msg("Failed to rebuild leaderboards")
			writeError(w, http.StatusInternalServerError, "Failed to rebuild leaderboards")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"rebuilt": h.boards.Durations()})
		return
	}

	n, err := h.boards.Rebuild(r.Context(), duration)
	if err != nil {
		if errors.Is(err, leaderboard.ErrUnknownDuration) {
			writeError(w, http.StatusBadRequest, "Invalid duration")
			return
		}
		h.logger.Error().Err(err).Int("duration", duration).Msg("Failed to rebuild leaderboard")
		writeError(w, http.StatusInternalServerError, "Failed to rebuild leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rebuilt": []int{duration}, "entries": n})
}

// Clear handles DELETE /v1/admin/leaderboard/cache.
func (h *LeaderboardHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.boards.ClearAll(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to clear leaderboard cache")
		writeError(w, http.StatusInternalServerError, "Failed to clear leaderboard cache")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"keysRemoved": n})
}

func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil
}
