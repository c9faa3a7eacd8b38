package presence

import "errors"

// EventType names a server-to-client (and for signals, client-to-server) event.
type EventType string

const (
	// EventOnlineUsers carries the full online identity list, replacing the client's copy.
	EventOnlineUsers EventType = "getOnlineUsers"

	// EventNewMessage carries a freshly persisted message.
	EventNewMessage EventType = "newMessage"

	// EventTyping signals that the sender started typing to the receiver.
	EventTyping EventType = "typing"

	// EventStopTyping signals that the sender stopped typing.
	EventStopTyping EventType = "stopTyping"
)

var (
	// ErrUnknownEventKind is returned by Route for kinds other than typing/stopTyping.
	ErrUnknownEventKind = errors.New("unknown ephemeral event kind")

	// ErrConnectionClosed is returned by Conn.Push after the connection closed.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrSendQueueFull is returned by Conn.Push when the outbound queue is saturated.
	ErrSendQueueFull = errors.New("connection send queue full")
)

// Event is the envelope pushed to a live connection.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// SignalPayload is the body of typing and stopTyping events.
type SignalPayload struct {
	SenderID string `json:"senderId"`
}

// IsSignal reports whether kind is an ephemeral signal the Router accepts.
func IsSignal(kind EventType) bool {
	return kind == EventTyping || kind == EventStopTyping
}

// Conn is a live, addressable connection owned by exactly one identity.
// Push must not block: it either queues the event or returns an error.
type Conn interface {
	ID() string
	Identity() string
	Push(ev Event) error
	Close() error
}
