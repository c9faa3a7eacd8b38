/*
Package chat contains the live websocket connection used by the presence layer.

This file defines the Client struct, representing one open websocket. It owns the
read and write loops, decodes inbound typing signals, and implements
presence.Conn so the hub can push events to it without blocking.
*/
package chat

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"duochat/internal/app/presence"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/randx"
)

const (
	// timeout duration for writing to the websocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed between two pongs from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of an inbound frame; inbound traffic is signals only.
	maxMessageSize = 4096

	// SendQueueSize is the number of outbound events buffered per connection.
	SendQueueSize = 256
)

// Hub is the part of presence.Hub a Client talks to.
type Hub interface {
	Connect(conn presence.Conn)
	Disconnect(conn presence.Conn)
	Route(kind presence.EventType, sender, target string) (int, error)
}

// Client is one live websocket connection owned by a single identity.
type Client struct {
	id       string
	identity string

	hub Hub

	// underlying websocket connection object.
	conn *websocket.Conn

	// buffered queue of encoded events waiting to be written.
	send chan []byte

	// done is closed exactly once when the client shuts down.
	done      chan struct{}
	closeOnce sync.Once

	// disconnectOnce guarantees the hub sees one Disconnect per lifecycle.
	disconnectOnce sync.Once

	logger zerolog.Logger
}

// NewClient constructs a Client for identity on the given websocket connection.
func NewClient(hub Hub, wsConn *websocket.Conn, identity string) *Client {
	id := randx.ConnectionID()

	return &Client{
		id:       id,
		identity: identity,
		hub:      hub,
		conn:     wsConn,
		send:     make(chan []byte, SendQueueSize),
		done:     make(chan struct{}),
		logger: logx.Logger().With().
			Str("component", "Client").
			Str("conn_id", id).
			Str("user_id", identity).
			Logger(),
	}
}

// ID implements presence.Conn.
func (c *Client) ID() string { return c.id }

// Identity implements presence.Conn.
func (c *Client) Identity() string { return c.identity }

// Push implements presence.Conn. It never blocks: when the queue is full the
// event is dropped and ErrSendQueueFull returned.
func (c *Client) Push(ev presence.Event) error {
	select {
	case <-c.done:
		return presence.ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return presence.ErrConnectionClosed
	default:
		return presence.ErrSendQueueFull
	}
}

// Close implements presence.Conn. It stops the write loop and closes the socket;
// the read loop then fails and runs the disconnect cleanup. Safe to call repeatedly.
func (c *Client) Close() error {
	var err error

	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			err = c.conn.Close()
		}
	})

	return err
}

// Serve registers the client with the hub, starts the write loop, and blocks in
// the read loop until the connection ends.
func (c *Client) Serve() {
	go c.WritePump()

	c.hub.Connect(c)

	c.ReadPump()
}

// ReadPump reads inbound frames until the connection fails, then unregisters
// the client before closing it.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Unexpected websocket close")
			}
			return
		}

		c.processInbound(data)
	}
}

// cleanupOnDisconnect removes the client from the hub before the socket is
// closed, so no routing decision can pick a dead connection afterwards.
func (c *Client) cleanupOnDisconnect() {
	c.disconnectOnce.Do(func() {
		c.hub.Disconnect(c)
	})

	if err := c.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// inboundSignal is the envelope clients send. senderId is accepted for
// compatibility but ignored: the sender is always the authenticated identity.
type inboundSignal struct {
	Type    presence.EventType `json:"type"`
	Payload struct {
		SenderID   string `json:"senderId,omitempty"`
		ReceiverID string `json:"receiverId"`
	} `json:"payload"`
}

func (c *Client) processInbound(data []byte) {
	var in inboundSignal
	if err := json.Unmarshal(data, &in); err != nil {
		c.logger.Warn().Err(err).Int("bytes", len(data)).Msg("Client sent invalid JSON")
		return
	}

	if !presence.IsSignal(in.Type) {
		c.logger.Warn().Str("msg_type", string(in.Type)).Msg("Client sent unsupported event type")
		return
	}

	if in.Payload.ReceiverID == "" {
		c.logger.Warn().Str("msg_type", string(in.Type)).Msg("Client sent signal without receiverId")
		return
	}

	if in.Payload.SenderID != "" && in.Payload.SenderID != c.identity {
		c.logger.Debug().Str("claimed_sender", in.Payload.SenderID).Msg("Ignoring claimed senderId")
	}

	if _, err := c.hub.Route(in.Type, c.identity, in.Payload.ReceiverID); err != nil {
		c.logger.Warn().Err(err).Msg("Signal routing failed")
	}
}

// WritePump writes queued events and periodic pings until the client closes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			if !c.write(websocket.TextMessage, data) {
				_ = c.Close()
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				_ = c.Close()
				return
			}

		case <-c.done:
			return
		}
	}
}

// write sends one frame under the write deadline. Returns false when the
// connection should be considered dead.
func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Msg("Error writing to websocket")
		return false
	}

	return true
}
