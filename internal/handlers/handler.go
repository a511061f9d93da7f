package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/enot3481-eng/messenger-app/internal/directory"
	"github.com/enot3481-eng/messenger-app/internal/presence"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	dir      *directory.Index
	presence *presence.Tracker
}

// NewHandler creates a new Handler over the directory and presence
// tracker.
func NewHandler(dir *directory.Index, tracker *presence.Tracker) *Handler {
	return &Handler{dir: dir, presence: tracker}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
