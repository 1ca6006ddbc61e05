package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/chat-assistant/internal/api/response"
	"github.com/rs/zerolog/log"
)

// PingFunc checks one backing service
type PingFunc func(ctx context.Context) error

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck pings every dependency and reports 503 naming the first one that fails
func ReadyCheck(checks map[string]PingFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for name, ping := range checks {
			if err := ping(r.Context()); err != nil {
				log.Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
				response.Error(w, http.StatusServiceUnavailable, name+" not ready")
				return
			}
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}
