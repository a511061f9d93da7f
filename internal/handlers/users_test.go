package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/enot3481-eng/messenger-app/internal/directory"
	"github.com/enot3481-eng/messenger-app/internal/models"
	"github.com/enot3481-eng/messenger-app/internal/presence"
)

func newTestServer(t *testing.T) (*httptest.Server, *directory.Index, *presence.Tracker) {
	t.Helper()
	dir := directory.NewIndex()
	tracker := presence.NewTracker()
	h := NewHandler(dir, tracker)

	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Get("/users/tag/{tag}", h.UserByTag)
	r.Get("/users/search/{query}", h.SearchUsers)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, dir, tracker
}

func TestHealth(t *testing.T) {
	srv, _, tracker := newTestServer(t)
	tracker.Connected("u1", time.Now())

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status field = %q", body.Status)
	}
	if body.Online != 1 {
		t.Errorf("online = %d, want 1", body.Online)
	}
}

func TestUserByTag(t *testing.T) {
	srv, dir, tracker := newTestServer(t)
	if err := dir.Upsert(models.Profile{ID: "u1", DisplayName: "Alice", Tag: "@alice99"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	tracker.Connected("u1", time.Now())

	resp, err := http.Get(srv.URL + "/users/tag/ALICE99")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body UserResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != "u1" || !body.Presence.IsOnline {
		t.Fatalf("body = %+v", body)
	}
}

func TestUserByTagNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/users/tag/ghost")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSearchUsers(t *testing.T) {
	srv, dir, _ := newTestServer(t)
	for _, p := range []models.Profile{
		{ID: "u1", Tag: "@alice"},
		{ID: "u2", Tag: "@malice"},
		{ID: "u3", Tag: "@bob"},
	} {
		if err := dir.Upsert(p); err != nil {
			t.Fatalf("seed %s: %v", p.ID, err)
		}
	}

	resp, err := http.Get(srv.URL + "/users/search/alice")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var results []UserResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestSearchUsersQueryTooLong(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/users/search/" + strings.Repeat("a", 101))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
