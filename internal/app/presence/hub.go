/*
Package presence tracks which identities hold open live connections and routes
presence, typing, and new-message events to those connections.

This file defines the Hub, which owns the Registry for the lifetime of the
process and turns registry mutations into presence broadcasts.
*/
package presence

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"duochat/internal/app/message"
	"duochat/internal/pkg/logx"
)

// PresencePolicy selects when the Hub broadcasts the online set.
type PresencePolicy int

const (
	// PresenceOnEveryMutation broadcasts on every connect and disconnect.
	// Clients replace their online set wholesale, so repeats are harmless.
	PresenceOnEveryMutation PresencePolicy = iota

	// PresenceOnChange broadcasts only when an identity goes online or offline.
	// A connection that joins an already-online identity receives the list directly.
	PresenceOnChange
)

// ParsePresencePolicy accepts "every" or "change" (case-insensitive); "" means every.
func ParsePresencePolicy(s string) (PresencePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "every":
		return PresenceOnEveryMutation, nil
	case "change":
		return PresenceOnChange, nil
	default:
		return PresenceOnEveryMutation, fmt.Errorf("unknown presence policy %q (want every or change)", s)
	}
}

// String implements fmt.Stringer.
func (p PresencePolicy) String() string {
	if p == PresenceOnChange {
		return "change"
	}
	return "every"
}

// Hub coordinates the Registry, Broadcaster, Router, and FanOut.
type Hub struct {
	registry    *Registry
	broadcaster *Broadcaster
	router      *Router
	fanout      *FanOut
	policy      PresencePolicy

	// mu serializes a registry mutation with its broadcast so presence pushes
	// are enqueued on every connection in mutation order.
	mu sync.Mutex

	logger zerolog.Logger
}

// NewHub constructs a Hub with a fresh Registry.
func NewHub(policy PresencePolicy) *Hub {
	logger := logx.Component("PresenceHub")
	registry := NewRegistry()

	return &Hub{
		registry:    registry,
		broadcaster: NewBroadcaster(registry, logger),
		router:      NewRouter(registry, logger),
		fanout:      NewFanOut(registry, logger),
		policy:      policy,
		logger:      logger,
	}
}

// Registry exposes the read accessors of the hub's registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Connect registers conn under its identity and emits presence according to the policy.
func (h *Hub) Connect(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	changed := h.registry.Register(conn.Identity(), conn)

	h.logger.Info().
		Str("conn_id", conn.ID()).
		Str("user_id", conn.Identity()).
		Bool("went_online", changed).
		Int("connections", h.registry.ConnectionCount()).
		Msg("Live connection registered.")

	if changed || h.policy == PresenceOnEveryMutation {
		h.broadcaster.BroadcastPresence()
		return
	}

	h.broadcaster.SendPresenceTo(conn)
}

// Disconnect removes conn and emits presence according to the policy.
// Calling it for an unknown or already removed connection does nothing.
func (h *Hub) Disconnect(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	identity, changed := h.registry.Unregister(conn)
	if identity == "" {
		return
	}

	h.logger.Info().
		Str("conn_id", conn.ID()).
		Str("user_id", identity).
		Bool("went_offline", changed).
		Int("connections", h.registry.ConnectionCount()).
		Msg("Live connection unregistered.")

	if changed || h.policy == PresenceOnEveryMutation {
		h.broadcaster.BroadcastPresence()
	}
}

// Route forwards a typing or stopTyping signal; see Router.Route.
func (h *Hub) Route(kind EventType, sender, target string) (int, error) {
	return h.router.Route(kind, sender, target)
}

// NotifyNewMessage pushes a stored message to its recipient; see FanOut.NotifyNewMessage.
func (h *Hub) NotifyNewMessage(msg message.Message) int {
	return h.fanout.NotifyNewMessage(msg)
}

// Shutdown closes every live connection and empties the registry.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := h.registry.drain()
	h.mu.Unlock()

	h.logger.Info().Int("connections", len(conns)).Msg("Shutting down presence hub.")

	for _, c := range conns {
		if err := c.Close(); err != nil {
			h.logger.Debug().Err(err).Str("conn_id", c.ID()).Msg("Connection close error during shutdown.")
		}
	}

	h.logger.Info().Msg("Presence hub shutdown complete.")
}
