package presence

import (
	"sync"
)

type stubConn struct {
	id       string
	identity string

	mu      sync.Mutex
	events  []Event
	closed  bool
	failErr error
}

func newStubConn(id, identity string) *stubConn {
	return &stubConn{id: id, identity: identity}
}

func (s *stubConn) ID() string       { return s.id }
func (s *stubConn) Identity() string { return s.identity }

func (s *stubConn) Push(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrConnectionClosed
	}
	if s.failErr != nil {
		return s.failErr
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *stubConn) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubConn) received() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *stubConn) ofType(t EventType) []Event {
	var out []Event
	for _, ev := range s.received() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (s *stubConn) lastPresence() []string {
	presence := s.ofType(EventOnlineUsers)
	if len(presence) == 0 {
		return nil
	}
	return presence[len(presence)-1].Payload.([]string)
}
