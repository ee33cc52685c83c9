package handlers

import (
	"context"
	"net/http"
	"time"
)

// Check is one readiness probe. A failing optional check marks the instance
// degraded but still ready, since callers fall back around it.
type Check struct {
	Name     string
	Ping     func(ctx context.Context) error
	Optional bool
}

func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyHandler reports 503 when a required check fails. Stats are included
// when provided.
func ReadyHandler(stats func() map[string]interface{}, checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "ready", http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Ping(ctx); err != nil {
				results[c.Name] = err.Error()
				if c.Optional {
					if code == http.StatusOK {
						status = "degraded"
					}
					continue
				}
				status, code = "unavailable", http.StatusServiceUnavailable
				continue
			}
			results[c.Name] = "ok"
		}

		body := map[string]interface{}{"status": status, "checks": results}
		if stats != nil {
			body["stats"] = stats()
		}
		writeJSON(w, code, body)
	}
}
