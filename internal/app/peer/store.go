package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"duochat/internal/app/message"
	"duochat/internal/app/presence"
	"duochat/internal/pkg/logx"
)

// ErrNoActivePeer is returned by SendMessage when no conversation is open.
var ErrNoActivePeer = errors.New("no active peer selected")

// MessageAPI performs the durable send round-trip.
type MessageAPI interface {
	SendMessage(ctx context.Context, receiverID string, in message.SendInput) (message.Message, error)
}

// Option configures a Store.
type Option func(*Store)

// WithObserver registers fn to be called after every applied inbound event.
// fn runs on the channel's goroutine and must not block.
func WithObserver(fn func(event presence.EventType)) Option {
	return func(s *Store) { s.observer = fn }
}

// Store mirrors the server's live state for one signed-in user.
type Store struct {
	ch  Channel
	api MessageAPI

	mu sync.Mutex

	// online is the last getOnlineUsers list, replaced wholesale.
	online []string

	// activePeer is the open conversation; only its messages enter the log.
	activePeer string
	messages   []message.Message

	// typing holds senders currently typing. A stopTyping or a message from
	// the sender deletes the key; a disconnect does not.
	typing map[string]bool

	// sub is the open subscription, nil while idle.
	sub *Subscription

	observer func(event presence.EventType)
	logger   zerolog.Logger
}

// NewStore returns an idle store bound to ch and api.
func NewStore(ch Channel, api MessageAPI, opts ...Option) *Store {
	s := &Store{
		ch:     ch,
		api:    api,
		typing: make(map[string]bool),
		logger: logx.Component("PeerStore"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Subscription is the handle for the store's registered handlers.
type Subscription struct {
	store *Store
	offs  []func()
	once  sync.Once
}

// Close removes every handler registered by Subscribe. It is idempotent and
// meant to be deferred. The store forgets the handle before the handlers are
// removed, so a concurrent Subscribe registers a fresh set.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		sub.store.mu.Lock()
		if sub.store.sub == sub {
			sub.store.sub = nil
		}
		sub.store.mu.Unlock()

		for _, off := range sub.offs {
			off()
		}
	})
}

// Subscribe registers the store's handlers on its channel. While a
// subscription is open, Subscribe returns that same handle instead of
// registering a second set.
func (s *Store) Subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		return s.sub
	}

	sub := &Subscription{store: s}
	sub.offs = []func(){
		s.ch.On(presence.EventOnlineUsers, s.handle(presence.EventOnlineUsers, s.applyOnlineUsers)),
		s.ch.On(presence.EventNewMessage, s.handle(presence.EventNewMessage, s.applyNewMessage)),
		s.ch.On(presence.EventTyping, s.handle(presence.EventTyping, s.applyTyping(true))),
		s.ch.On(presence.EventStopTyping, s.handle(presence.EventStopTyping, s.applyTyping(false))),
	}
	s.sub = sub

	return sub
}

// Subscribed reports whether handlers are currently registered.
func (s *Store) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}

// handle wraps apply with decoding error logging and the observer call.
func (s *Store) handle(event presence.EventType, apply func(json.RawMessage) error) Handler {
	return func(payload json.RawMessage) {
		if err := apply(payload); err != nil {
			s.logger.Warn().Err(err).Str("event", string(event)).Msg("Dropping malformed event")
			return
		}

		if s.observer != nil {
			s.observer(event)
		}
	}
}

func (s *Store) applyOnlineUsers(payload json.RawMessage) error {
	var ids []string
	if err := json.Unmarshal(payload, &ids); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.online = ids
	return nil
}

func (s *Store) applyNewMessage(payload json.RawMessage) error {
	var msg message.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.typing, msg.SenderID)

	if msg.SenderID != s.activePeer || s.activePeer == "" {
		return nil
	}

	s.appendLocked(msg)
	return nil
}

func (s *Store) applyTyping(isTyping bool) func(json.RawMessage) error {
	return func(payload json.RawMessage) error {
		var sig presence.SignalPayload
		if err := json.Unmarshal(payload, &sig); err != nil {
			return err
		}
		if sig.SenderID == "" {
			return errors.New("signal without senderId")
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		if isTyping {
			s.typing[sig.SenderID] = true
		} else {
			delete(s.typing, sig.SenderID)
		}
		return nil
	}
}

// appendLocked adds msg to the visible log unless a message with the same ID
// is already there.
func (s *Store) appendLocked(msg message.Message) {
	if msg.ID != "" && slices.ContainsFunc(s.messages, func(m message.Message) bool { return m.ID == msg.ID }) {
		return
	}
	s.messages = append(s.messages, msg)
}

// SetActivePeer opens the conversation with peerID and replaces the visible
// log with history. An empty peerID closes the conversation.
func (s *Store) SetActivePeer(peerID string, history []message.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activePeer = peerID
	s.messages = slices.Clone(history)
}

// ActivePeer returns the identity of the open conversation, or "".
func (s *Store) ActivePeer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePeer
}

// Online returns a copy of the last online set received.
func (s *Store) Online() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.online)
}

// IsOnline reports whether id was in the last online set received.
func (s *Store) IsOnline(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.online, id)
}

// Messages returns a copy of the visible conversation log.
func (s *Store) Messages() []message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// IsTyping reports whether id is currently marked as typing.
func (s *Store) IsTyping(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing[id]
}

// Typing returns the identities currently marked as typing, sorted.
func (s *Store) Typing() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.typing))
	for id := range s.typing {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// SendMessage stores a message for the active peer through the API, appends
// the stored message to the log once the call returns, and then signals
// stopTyping. Nothing is appended when the API call fails.
func (s *Store) SendMessage(ctx context.Context, text, image string) (message.Message, error) {
	peerID := s.ActivePeer()
	if peerID == "" {
		return message.Message{}, ErrNoActivePeer
	}

	msg, err := s.api.SendMessage(ctx, peerID, message.SendInput{Text: text, Image: image})
	if err != nil {
		return message.Message{}, fmt.Errorf("send message: %w", err)
	}

	s.mu.Lock()
	// The user may have switched conversations during the round-trip.
	if s.activePeer == msg.ReceiverID {
		s.appendLocked(msg)
	}
	s.mu.Unlock()

	if err := s.emitTo(presence.EventStopTyping, peerID); err != nil {
		s.logger.Debug().Err(err).Msg("stopTyping after send was not delivered")
	}

	return msg, nil
}

// EmitTyping tells the active peer the user is typing. No-op without an active peer.
func (s *Store) EmitTyping() error {
	return s.emitTo(presence.EventTyping, s.ActivePeer())
}

// EmitStopTyping tells the active peer the user stopped typing. No-op without an active peer.
func (s *Store) EmitStopTyping() error {
	return s.emitTo(presence.EventStopTyping, s.ActivePeer())
}

func (s *Store) emitTo(event presence.EventType, peerID string) error {
	if peerID == "" {
		return nil
	}
	return s.ch.Emit(event, outboundSignal{ReceiverID: peerID})
}
