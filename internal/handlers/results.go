package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/auth"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/middleware"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/submission"
)

// maxSubmissionBytes bounds a request body; a 120s test at 100 keys/s is
// well under this.
const maxSubmissionBytes = 2 << 20

type Submitter interface {
	Submit(ctx context.Context, who submission.Identity, req submission.Request) (*submission.Response, error)
}

type ResultsHandler struct {
	submitter Submitter
	logger    zerolog.Logger
}

func NewResultsHandler(s Submitter, logger zerolog.Logger) *ResultsHandler {
	return &ResultsHandler{
		submitter: s,
		logger:    logger.With().Str("component", "results-handler").Logger(),
	}
}

// ServeHTTP handles POST /v1/results.
func (h *ResultsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var who submission.Identity
	if claims := auth.GetUserFromContext(r.Context()); claims != nil {
		who = submission.Identity{PlayerID: claims.GetPlayerID(), DisplayName: claims.GetDisplayName(), Email: claims.Email}
	}

	var req submission.Request
	if who.PlayerID != "" {
		body := http.MaxBytesReader(w, r.Body, maxSubmissionBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	resp, err := h.submitter.Submit(r.Context(), who, req)
	if err != nil {
		rej, ok := submission.AsRejection(err)
		if !ok {
			h.logger.Error().Err(err).Msg("Unexpected submission error")
			writeError(w, http.StatusInternalServerError, submission.MsgSaveFailed)
			return
		}
		if rej.Kind == submission.KindRateLimited {
			middleware.WriteTooManyRequests(w, rej.RetryAfter)
			return
		}
		writeError(w, StatusFor(rej.Kind), rej.Reason)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// StatusFor maps a rejection kind to its HTTP status.
func StatusFor(k submission.Kind) int {
	switch k {
	case submission.KindUnauthenticated:
		return http.StatusUnauthorized
	case submission.KindRateLimited:
		return http.StatusTooManyRequests
	case submission.KindPersistenceFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
