package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Relay metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_connections_active",
			Help: "Currently registered connections",
		},
	)

	MessagesForwarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_forwarded_total",
			Help: "Envelopes forwarded to a live recipient",
		},
	)

	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_dropped_total",
			Help: "Envelopes dropped instead of forwarded",
		},
		[]string{"reason"}, // "offline", "send_failed", "malformed", "unknown_type"
	)

	PresenceAnnounces = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_presence_announces_total",
			Help: "Presence announcements processed",
		},
	)

	DirectorySearches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_directory_searches_total",
			Help: "Directory searches served over the realtime channel",
		},
	)

	TagConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_tag_conflicts_total",
			Help: "Profile upserts rejected for a duplicate tag",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)
)
