// Package relay contains the message router and the websocket session
// loop sitting on top of the connection registry, presence tracker and
// directory index.
package relay

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/enot3481-eng/messenger-app/internal/directory"
	"github.com/enot3481-eng/messenger-app/internal/metrics"
	"github.com/enot3481-eng/messenger-app/internal/models"
	"github.com/enot3481-eng/messenger-app/internal/registry"
)

// relaySenderID identifies envelopes originated by the relay itself
// (search results and error replies).
const relaySenderID = "relay"

// Router decides, per inbound envelope, whether to forward, answer or
// drop. It never blocks on a recipient: a dead or slow handle surfaces
// as a send error and the message is dropped.
type Router struct {
	reg    *registry.Registry
	dir    *directory.Index
	logger zerolog.Logger
}

// NewRouter creates a router over the given registry and directory.
func NewRouter(reg *registry.Registry, dir *directory.Index, logger zerolog.Logger) *Router {
	return &Router{reg: reg, dir: dir, logger: logger}
}

// Route handles one raw frame read from conn. Malformed frames are
// logged and dropped; they never propagate to other connections.
// The returned identity is non-empty when the frame was a presence
// announcement, so the session can remember who it speaks for.
func (rt *Router) Route(conn registry.Conn, raw []byte) (identity string) {
	env, err := models.ParseEnvelope(raw)
	if err != nil {
		if errors.Is(err, models.ErrUnknownType) {
			metrics.MessagesDropped.WithLabelValues("unknown_type").Inc()
			rt.sendError(conn, err.Error())
		} else {
			metrics.MessagesDropped.WithLabelValues("malformed").Inc()
		}
		rt.logger.Warn().Err(err).Msg("dropping malformed envelope")
		return ""
	}

	switch env.Type {
	case models.TypePresenceAnnounce:
		rt.handleAnnounce(conn, env)
		return env.SenderID

	case models.TypeDirectorySearch:
		rt.handleSearch(conn, env)
		return ""

	default:
		rt.forward(env, raw)
		return ""
	}
}

// handleAnnounce registers the sender's connection and upserts its
// profile into the directory. No forwarding happens.
func (rt *Router) handleAnnounce(conn registry.Conn, env *models.Envelope) {
	metrics.PresenceAnnounces.Inc()

	if superseded := rt.reg.Register(env.SenderID, conn); superseded != nil {
		// The old handle belongs to a previous session of the same
		// identity; close it so its owner notices.
		_ = superseded.Close("superseded by newer connection")
	}
	metrics.ConnectionsActive.Set(float64(rt.reg.Len()))

	if err := rt.dir.Upsert(*env.UserInfo); err != nil {
		if errors.Is(err, directory.ErrTagTaken) {
			metrics.TagConflicts.Inc()
		}
		rt.logger.Warn().
			Str("user", env.SenderID).
			Str("tag", env.UserInfo.Tag).
			Err(err).
			Msg("profile upsert rejected")
		rt.sendError(conn, err.Error())
		return
	}

	rt.logger.Info().
		Str("user", env.SenderID).
		Str("tag", env.UserInfo.Tag).
		Msg("user online")
}

// handleSearch answers a directory query to the sender only; search
// traffic is never broadcast.
func (rt *Router) handleSearch(conn registry.Conn, env *models.Envelope) {
	metrics.DirectorySearches.Inc()

	profiles := rt.dir.Search(env.Query)
	if profiles == nil {
		profiles = []models.Profile{}
	}
	content, err := json.Marshal(map[string][]models.Profile{"users": profiles})
	if err != nil {
		rt.logger.Error().Err(err).Msg("encode search results")
		return
	}

	reply := models.Envelope{
		Type:       models.TypeSearchResults,
		SenderID:   relaySenderID,
		ReceiverID: env.SenderID,
		Content:    content,
		Timestamp:  time.Now().UnixMilli(),
	}
	rt.send(conn, &reply)
}

// forward delivers the raw frame unchanged to the recipient's live
// handle. No recipient means a silent drop: the relay holds no queue
// and makes no delivery promise to offline users.
func (rt *Router) forward(env *models.Envelope, raw []byte) {
	target, ok := rt.reg.Lookup(env.ReceiverID)
	if !ok {
		metrics.MessagesDropped.WithLabelValues("offline").Inc()
		rt.logger.Debug().
			Str("from", env.SenderID).
			Str("to", env.ReceiverID).
			Msg("recipient offline, dropping")
		return
	}

	if err := target.Send(raw); err != nil {
		metrics.MessagesDropped.WithLabelValues("send_failed").Inc()
		rt.logger.Warn().
			Str("to", env.ReceiverID).
			Err(err).
			Msg("forward failed, evicting dead connection")
		if rt.reg.Unregister(env.ReceiverID, target) {
			metrics.ConnectionsActive.Set(float64(rt.reg.Len()))
		}
		_ = target.Close("send failed")
		return
	}
	metrics.MessagesForwarded.Inc()
}

// Disconnect removes conn from the registry if it still owns identity.
// Safe to call more than once; the handle-match rule in the registry
// makes removal happen exactly once per connection.
func (rt *Router) Disconnect(identity string, conn registry.Conn) {
	if identity == "" {
		return
	}
	if rt.reg.Unregister(identity, conn) {
		metrics.ConnectionsActive.Set(float64(rt.reg.Len()))
		rt.logger.Info().Str("user", identity).Msg("user offline")
	}
}

func (rt *Router) sendError(conn registry.Conn, msg string) {
	content, _ := json.Marshal(map[string]string{"error": msg})
	rt.send(conn, &models.Envelope{
		Type:      models.TypeError,
		SenderID:  relaySenderID,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (rt *Router) send(conn registry.Conn, env *models.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		rt.logger.Error().Err(err).Msg("encode envelope")
		return
	}
	if err := conn.Send(data); err != nil {
		rt.logger.Warn().Err(err).Msg("reply send failed")
	}
}
