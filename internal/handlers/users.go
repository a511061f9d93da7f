package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/enot3481-eng/messenger-app/internal/models"
	"github.com/enot3481-eng/messenger-app/internal/presence"
)

// UserResponse is a directory profile plus its presence, as served by
// the HTTP fallback endpoints.
type UserResponse struct {
	models.Profile
	Presence presence.Status `json:"presence"`
}

// UserByTag handles exact tag lookup: GET /users/tag/{tag}.
// Matching is case-insensitive and tolerates a missing "@" prefix.
func (h *Handler) UserByTag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if tag == "" {
		h.Error(w, http.StatusBadRequest, "tag is required")
		return
	}

	p, ok := h.dir.FindByTag(tag)
	if !ok {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	h.JSON(w, http.StatusOK, UserResponse{
		Profile:  p,
		Presence: h.presence.Status(p.ID),
	})
}

// SearchUsers handles substring tag search: GET /users/search/{query}.
// This mirrors the realtime directory-search and is used by clients
// when the realtime channel is unavailable.
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")
	if query == "" {
		h.Error(w, http.StatusBadRequest, "query is required")
		return
	}
	if len(query) > 100 {
		h.Error(w, http.StatusBadRequest, "query too long (max 100 chars)")
		return
	}

	profiles := h.dir.Search(query)
	results := make([]UserResponse, 0, len(profiles))
	for _, p := range profiles {
		results = append(results, UserResponse{
			Profile:  p,
			Presence: h.presence.Status(p.ID),
		})
	}

	h.JSON(w, http.StatusOK, results)
}
