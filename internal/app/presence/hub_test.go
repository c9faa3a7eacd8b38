package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duochat/internal/app/message"
)

func TestParsePresencePolicy(t *testing.T) {
	p, err := ParsePresencePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PresenceOnEveryMutation, p)
	assert.Equal(t, "every", p.String())

	var zero PresencePolicy
	assert.Equal(t, PresenceOnEveryMutation, zero)

	p, err = ParsePresencePolicy(" Change ")
	require.NoError(t, err)
	assert.Equal(t, PresenceOnChange, p)
	assert.Equal(t, "change", p.String())

	_, err = ParsePresencePolicy("sometimes")
	assert.Error(t, err)
}

// A connects, B connects, B types to A, B disconnects.
func TestHubTwoUserScenario(t *testing.T) {
	hub := NewHub(PresenceOnChange)
	conn1 := newStubConn("conn1", "A")
	conn2 := newStubConn("conn2", "B")

	hub.Connect(conn1)
	assert.Equal(t, []string{"A"}, hub.Registry().OnlineIdentities())
	assert.Equal(t, []string{"A"}, conn1.lastPresence())

	hub.Connect(conn2)
	assert.Equal(t, []string{"A", "B"}, hub.Registry().OnlineIdentities())
	assert.Equal(t, []string{"A", "B"}, conn1.lastPresence())
	assert.Equal(t, []string{"A", "B"}, conn2.lastPresence())

	n, err := hub.Route(EventTyping, "B", "A")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	typing := conn1.ofType(EventTyping)
	require.Len(t, typing, 1)
	assert.Equal(t, SignalPayload{SenderID: "B"}, typing[0].Payload)

	hub.Disconnect(conn2)
	assert.Equal(t, []string{"A"}, hub.Registry().OnlineIdentities())
	assert.Equal(t, []string{"A"}, conn1.lastPresence())
}

func TestHubSecondDeviceDoesNotRebroadcast(t *testing.T) {
	hub := NewHub(PresenceOnChange)
	a1 := newStubConn("a1", "A")
	b1 := newStubConn("b1", "B")
	hub.Connect(a1)
	hub.Connect(b1)
	before := len(b1.ofType(EventOnlineUsers))

	a2 := newStubConn("a2", "A")
	hub.Connect(a2)

	assert.Len(t, b1.ofType(EventOnlineUsers), before, "B sees no new presence event")
	assert.Equal(t, []string{"A", "B"}, a2.lastPresence(), "new device still learns the online set")

	hub.Disconnect(a1)
	assert.Len(t, b1.ofType(EventOnlineUsers), before, "A still online via a2")
	assert.True(t, hub.Registry().IsOnline("A"))
}

func TestHubEveryMutationPolicyRebroadcasts(t *testing.T) {
	hub := NewHub(PresenceOnEveryMutation)
	a1 := newStubConn("a1", "A")
	b1 := newStubConn("b1", "B")
	hub.Connect(a1)
	hub.Connect(b1)
	before := len(b1.ofType(EventOnlineUsers))

	a2 := newStubConn("a2", "A")
	hub.Connect(a2)
	hub.Disconnect(a2)

	presence := b1.ofType(EventOnlineUsers)
	assert.Len(t, presence, before+2)
	assert.Equal(t, []string{"A", "B"}, presence[len(presence)-1].Payload)
}

func TestHubDisconnectTwiceIsNoop(t *testing.T) {
	hub := NewHub(PresenceOnChange)
	a := newStubConn("a1", "A")
	b := newStubConn("b1", "B")
	hub.Connect(a)
	hub.Connect(b)

	hub.Disconnect(b)
	count := len(a.ofType(EventOnlineUsers))
	hub.Disconnect(b)

	assert.Len(t, a.ofType(EventOnlineUsers), count)
}

func TestHubNotifyNewMessage(t *testing.T) {
	hub := NewHub(PresenceOnChange)
	conn1, conn2 := newStubConn("conn1", "A"), newStubConn("conn2", "A")
	hub.Connect(conn1)
	hub.Connect(conn2)

	n := hub.NotifyNewMessage(message.Message{ID: "m1", SenderID: "B", ReceiverID: "A", Text: "hello"})

	assert.Equal(t, 2, n)
	assert.Len(t, conn1.ofType(EventNewMessage), 1)
	assert.Len(t, conn2.ofType(EventNewMessage), 1)
}

func TestHubShutdownClosesConnections(t *testing.T) {
	hub := NewHub(PresenceOnChange)
	a := newStubConn("a1", "A")
	hub.Connect(a)

	hub.Shutdown()

	assert.True(t, a.closed)
	assert.Empty(t, hub.Registry().OnlineIdentities())
	hub.Disconnect(a)
}

func TestHubConcurrentConnectDisconnect(t *testing.T) {
	hub := NewHub(PresenceOnChange)
	observer := newStubConn("obs", "observer")
	hub.Connect(observer)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newStubConn(fmt.Sprintf("u%d", i), "U")
			hub.Connect(c)
			_, _ = hub.Route(EventTyping, "U", "observer")
			hub.Disconnect(c)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []string{"observer"}, hub.Registry().OnlineIdentities())
	assert.Equal(t, []string{"observer"}, observer.lastPresence())
}
