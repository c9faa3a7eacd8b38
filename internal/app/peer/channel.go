/*
Package peer is the client side of the live channel: a store that mirrors the
online set, the visible conversation and who is typing, kept up to date by
handlers registered on a Channel.
*/
package peer

import (
	"encoding/json"
	"sync"

	"duochat/internal/app/presence"
)

// Handler receives the raw JSON payload of one inbound event.
type Handler func(payload json.RawMessage)

// Channel is a live, bidirectional event channel to the server.
type Channel interface {
	// On registers h for event and returns a func that removes it again.
	// The returned func is safe to call more than once.
	On(event presence.EventType, h Handler) (off func())

	// Emit sends one outbound event.
	Emit(event presence.EventType, payload any) error
}

// handlerSet is the handler registry shared by the Channel implementations.
type handlerSet struct {
	mu      sync.RWMutex
	next    int
	byEvent map[presence.EventType]map[int]Handler
}

func (s *handlerSet) add(event presence.EventType, h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byEvent == nil {
		s.byEvent = make(map[presence.EventType]map[int]Handler)
	}
	if s.byEvent[event] == nil {
		s.byEvent[event] = make(map[int]Handler)
	}

	id := s.next
	s.next++
	s.byEvent[event][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			delete(s.byEvent[event], id)
			if len(s.byEvent[event]) == 0 {
				delete(s.byEvent, event)
			}
		})
	}
}

// dispatch calls every handler for event outside the lock, so a handler may
// register or remove handlers. It returns the number of handlers called.
func (s *handlerSet) dispatch(event presence.EventType, payload json.RawMessage) int {
	s.mu.RLock()
	handlers := make([]Handler, 0, len(s.byEvent[event]))
	for _, h := range s.byEvent[event] {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}

	return len(handlers)
}

func (s *handlerSet) count(event presence.EventType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byEvent[event])
}

// envelope is the frame format on the wire in both directions.
type envelope struct {
	Type    presence.EventType `json:"type"`
	Payload json.RawMessage    `json:"payload"`
}

// outboundSignal is the payload of an emitted typing or stopTyping event.
type outboundSignal struct {
	ReceiverID string `json:"receiverId"`
}
