package presence

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Router forwards typing and stopTyping signals to the target's connections.
// It performs no check that sender and target share a conversation.
type Router struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewRouter returns a Router reading from registry.
func NewRouter(registry *Registry, logger zerolog.Logger) *Router {
	return &Router{registry: registry, logger: logger}
}

// Route pushes {senderId} to every connection of target and returns the number
// of connections reached. An offline target yields 0 and no error.
func (rt *Router) Route(kind EventType, sender, target string) (int, error) {
	if !IsSignal(kind) {
		return 0, fmt.Errorf("route %q: %w", kind, ErrUnknownEventKind)
	}

	conns := rt.registry.ConnectionsFor(target)
	if len(conns) == 0 {
		return 0, nil
	}

	return deliver(rt.logger, conns, Event{Type: kind, Payload: SignalPayload{SenderID: sender}}), nil
}
