package peer

import (
	"encoding/json"
	"fmt"
	"sync"

	"duochat/internal/app/presence"
	"duochat/internal/pkg/randx"
)

// Emitted is one event recorded by a LocalChannel.
type Emitted struct {
	Event   presence.EventType
	Payload json.RawMessage
}

// LocalChannel is an in-process Channel. Attached to a presence.Hub it is
// also a presence.Conn, so a Store can talk to the hub without a socket.
// With a nil hub it only records what is emitted, and Deliver plays the
// server's role.
type LocalChannel struct {
	id       string
	identity string
	hub      *presence.Hub

	handlers handlerSet

	mu      sync.Mutex
	emitted []Emitted
	closed  bool
}

var (
	_ Channel       = (*LocalChannel)(nil)
	_ presence.Conn = (*LocalChannel)(nil)
)

// NewLocalChannel returns a channel for identity. hub may be nil.
func NewLocalChannel(identity string, hub *presence.Hub) *LocalChannel {
	return &LocalChannel{
		id:       randx.ConnectionID(),
		identity: identity,
		hub:      hub,
	}
}

// On implements Channel.
func (c *LocalChannel) On(event presence.EventType, h Handler) func() {
	return c.handlers.add(event, h)
}

// Emit implements Channel. Typing signals are routed through the hub when one is attached.
func (c *LocalChannel) Emit(event presence.EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return presence.ErrConnectionClosed
	}
	c.emitted = append(c.emitted, Emitted{Event: event, Payload: data})
	c.mu.Unlock()

	if c.hub == nil {
		return nil
	}

	var sig outboundSignal
	if err := json.Unmarshal(data, &sig); err != nil {
		return fmt.Errorf("decode outbound %s: %w", event, err)
	}

	_, err = c.hub.Route(event, c.identity, sig.ReceiverID)
	return err
}

// Deliver dispatches an inbound event to the registered handlers as if the
// server had sent it. It returns the number of handlers called.
func (c *LocalChannel) Deliver(event presence.EventType, payload any) (int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	return c.handlers.dispatch(event, data), nil
}

// Emitted returns every event emitted so far.
func (c *LocalChannel) Emitted() []Emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Emitted(nil), c.emitted...)
}

// HandlerCount returns the number of handlers registered for event.
func (c *LocalChannel) HandlerCount(event presence.EventType) int {
	return c.handlers.count(event)
}

// Connect registers the channel with its hub.
func (c *LocalChannel) Connect() {
	if c.hub != nil {
		c.hub.Connect(c)
	}
}

// ID implements presence.Conn.
func (c *LocalChannel) ID() string { return c.id }

// Identity implements presence.Conn.
func (c *LocalChannel) Identity() string { return c.identity }

// Push implements presence.Conn by dispatching synchronously.
func (c *LocalChannel) Push(ev presence.Event) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return presence.ErrConnectionClosed
	}

	_, err := c.Deliver(ev.Type, ev.Payload)
	return err
}

// Close implements presence.Conn. It disconnects from the hub once.
func (c *LocalChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.hub != nil {
		c.hub.Disconnect(c)
	}
	return nil
}
