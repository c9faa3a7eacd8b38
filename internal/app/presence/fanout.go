package presence

import (
	"github.com/rs/zerolog"

	"duochat/internal/app/message"
)

// FanOut pushes persisted messages to the recipient's live connections.
// Delivery is at most once: an offline recipient gets nothing and nothing is queued.
type FanOut struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewFanOut returns a FanOut reading from registry.
func NewFanOut(registry *Registry, logger zerolog.Logger) *FanOut {
	return &FanOut{registry: registry, logger: logger}
}

// NotifyNewMessage must only be called after msg was durably stored.
// It returns the number of recipient connections reached.
func (f *FanOut) NotifyNewMessage(msg message.Message) int {
	conns := f.registry.ConnectionsFor(msg.ReceiverID)
	if len(conns) == 0 {
		f.logger.Debug().
			Str("message_id", msg.ID).
			Str("receiver_id", msg.ReceiverID).
			Msg("Recipient offline, live push skipped.")
		return 0
	}

	return deliver(f.logger, conns, Event{Type: EventNewMessage, Payload: msg})
}
