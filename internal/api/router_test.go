package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/enot3481-eng/messenger-app/internal/config"
	"github.com/enot3481-eng/messenger-app/internal/directory"
	"github.com/enot3481-eng/messenger-app/internal/models"
	"github.com/enot3481-eng/messenger-app/internal/presence"
	"github.com/enot3481-eng/messenger-app/internal/registry"
	"github.com/enot3481-eng/messenger-app/internal/relay"
)

func newFullServer(t *testing.T) (*httptest.Server, *presence.Tracker) {
	t.Helper()
	cfg := &config.Config{
		Port:           "0",
		Env:            "test",
		ReadLimitBytes: 64 * 1024,
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	}
	tracker := presence.NewTracker()
	reg := registry.New(tracker)
	dir := directory.NewIndex()
	rt := relay.NewRouter(reg, dir, zerolog.Nop())

	srv := httptest.NewServer(NewRouter(cfg, zerolog.Nop(), rt, dir, tracker))
	t.Cleanup(srv.Close)
	return srv, tracker
}

// The websocket upgrade must survive the whole middleware chain, not
// just a bare relay.Handler.
func TestWebsocketUpgradeThroughFullRouter(t *testing.T) {
	srv, tracker := newFullServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(srv.URL, "http://", "ws://", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial through full router: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	data, _ := json.Marshal(models.Envelope{
		Type:     models.TypePresenceAnnounce,
		SenderID: "u1",
		UserInfo: &models.Profile{ID: "u1", DisplayName: "Alice", Tag: "@alice"},
	})
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write announce: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tracker.Status("u1").IsOnline {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("announce over /ws never reached the presence tracker")
}

func TestHealthThroughFullRouter(t *testing.T) {
	srv, _ := newFullServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
