package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/enot3481-eng/messenger-app/internal/api/middleware"
)

// writeTimeout bounds every outbound frame so routing never stalls on
// a slow peer.
const writeTimeout = 5 * time.Second

// Session is one live websocket connection. It is the registry handle
// for whichever identity announces itself on it, and it feeds every
// inbound frame through the router in read order, which preserves
// per-connection envelope ordering.
type Session struct {
	conn   *websocket.Conn
	router *Router
	logger zerolog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	identity string
}

// Send delivers one raw frame to the peer within writeTimeout.
func (s *Session) Send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// Close tears the websocket down with a reason.
func (s *Session) Close(reason string) error {
	return s.conn.Close(websocket.StatusPolicyViolation, reason)
}

// run reads frames until the connection drops, then unregisters
// exactly once. The registry's handle-match rule keeps a stale close
// from evicting a newer connection of the same identity.
func (s *Session) run(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		identity := s.identity
		s.mu.Unlock()
		s.router.Disconnect(identity, s)
		s.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.logger.Debug().Err(err).Msg("session read ended")
			return
		}

		if id := s.router.Route(s, data); id != "" {
			s.mu.Lock()
			s.identity = id
			s.mu.Unlock()
		}
	}
}

// Handler returns the HTTP handler that upgrades GET /ws requests and
// runs a session per connection.
func Handler(router *Router, readLimit int64, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// Browser clients connect from arbitrary origins, matching
			// the permissive CORS policy on the HTTP surface.
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warn().Err(err).Msg("websocket accept failed")
			return
		}
		if readLimit > 0 {
			conn.SetReadLimit(readLimit)
		}

		sess := &Session{
			conn:   conn,
			router: router,
			logger: logger.With().Str("remote", middleware.RealIP(r)).Logger(),
		}
		sess.run(r.Context())
	}
}
