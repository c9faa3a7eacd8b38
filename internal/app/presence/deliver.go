package presence

import (
	"errors"

	"github.com/rs/zerolog"
)

// deliver pushes ev to every connection and returns how many accepted it.
// Failures are logged and skipped; the eventual disconnect cleans up the registry.
func deliver(logger zerolog.Logger, conns []Conn, ev Event) int {
	delivered := 0

	for _, c := range conns {
		if err := c.Push(ev); err != nil {
			event := logger.Warn()
			if errors.Is(err, ErrConnectionClosed) {
				event = logger.Debug()
			}
			event.Err(err).
				Str("conn_id", c.ID()).
				Str("user_id", c.Identity()).
				Str("event", string(ev.Type)).
				Msg("Push to live connection failed, skipping.")
			continue
		}
		delivered++
	}

	return delivered
}
