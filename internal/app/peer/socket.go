package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"duochat/internal/app/presence"
	"duochat/internal/pkg/logx"
)

const socketWriteWait = 10 * time.Second

// SocketChannel is a Channel over a gorilla/websocket connection to /ws.
type SocketChannel struct {
	conn     *websocket.Conn
	handlers handlerSet

	// gorilla allows one concurrent writer.
	writeMu sync.Mutex

	logger zerolog.Logger
}

var _ Channel = (*SocketChannel)(nil)

// DialSocket opens the live channel at url. jar supplies the session cookie;
// header may carry an Authorization bearer token instead. Either may be nil.
func DialSocket(ctx context.Context, url string, jar http.CookieJar, header http.Header) (*SocketChannel, error) {
	dialer := websocket.Dialer{
		Jar:              jar,
		HandshakeTimeout: 10 * time.Second,
	}

	conn, res, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", url, err, res.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	return &SocketChannel{
		conn:   conn,
		logger: logx.Component("SocketChannel"),
	}, nil
}

// On implements Channel.
func (c *SocketChannel) On(event presence.EventType, h Handler) func() {
	return c.handlers.add(event, h)
}

// Emit implements Channel.
func (c *SocketChannel) Emit(event presence.EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(envelope{Type: event, Payload: data})
}

// Run dispatches inbound events until ctx is cancelled or the server closes
// the connection. A cancelled ctx is not reported as an error.
func (c *SocketChannel) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		return c.conn.Close()
	})

	g.Go(func() error {
		for {
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return errClosed
				}
				return fmt.Errorf("read: %w", err)
			}

			var env envelope
			if err := json.Unmarshal(data, &env); err != nil {
				c.logger.Warn().Err(err).Msg("Server sent invalid JSON")
				continue
			}

			c.handlers.dispatch(env.Type, env.Payload)
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errClosed) {
		return err
	}
	return nil
}

// errClosed ends the errgroup when the connection closes normally.
var errClosed = errors.New("socket closed")
