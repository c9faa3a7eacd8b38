package presence

import (
	"github.com/rs/zerolog"
)

// Broadcaster pushes the online identity list to live connections.
type Broadcaster struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewBroadcaster returns a Broadcaster reading from registry.
func NewBroadcaster(registry *Registry, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, logger: logger}
}

// BroadcastPresence sends the current online set to every open connection and
// returns the number of connections that accepted it.
func (b *Broadcaster) BroadcastPresence() int {
	ev := b.presenceEvent()
	conns := b.registry.AllConnections()

	delivered := deliver(b.logger, conns, ev)

	b.logger.Debug().
		Int("online_users", len(ev.Payload.([]string))).
		Int("connections", len(conns)).
		Int("delivered", delivered).
		Msg("Presence broadcast.")

	return delivered
}

// SendPresenceTo sends the current online set to conn only.
func (b *Broadcaster) SendPresenceTo(conn Conn) bool {
	return deliver(b.logger, []Conn{conn}, b.presenceEvent()) == 1
}

func (b *Broadcaster) presenceEvent() Event {
	return Event{Type: EventOnlineUsers, Payload: b.registry.OnlineIdentities()}
}
