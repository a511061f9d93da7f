package handlers

import (
	"net/http"
	"time"
)

const version = "0.1.0"

var startedAt = time.Now()

// HealthResponse represents the health check response. The relay is
// memory-only, so there are no downstream dependencies to probe.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Online    int    `json:"online"`
	Timestamp string `json:"timestamp"`
}

// Health handles the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   version,
		Uptime:    time.Since(startedAt).Round(time.Second).String(),
		Online:    h.presence.OnlineCount(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
