/*
Package presence tracks which identities hold open live connections and routes
presence, typing, and new-message events to those connections.

This file defines the Registry, the only owner of the identity -> connections map.
*/
package presence

import (
	"slices"
	"sync"
)

// Registry maps identities to their open connections.
// An identity is online exactly when it has at least one registered connection.
type Registry struct {
	mu sync.RWMutex

	// byIdentity holds identity -> connection ID -> connection. Empty inner maps are never kept.
	byIdentity map[string]map[string]Conn

	// owner indexes connection ID -> identity so Unregister needs only the connection.
	owner map[string]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byIdentity: make(map[string]map[string]Conn),
		owner:      make(map[string]string),
	}
}

// Register adds conn under identity. It returns true when the online set changed,
// that is when identity had no connections before (or when a reused connection
// ID moved away from an identity that thereby went offline).
// Registering the same connection ID twice for one identity is a no-op.
func (r *Registry) Register(identity string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	changed := false

	if prev, ok := r.owner[id]; ok {
		if prev == identity {
			r.byIdentity[identity][id] = conn
			return false
		}
		changed = r.removeLocked(prev, id)
	}

	conns, online := r.byIdentity[identity]
	if !online {
		conns = make(map[string]Conn)
		r.byIdentity[identity] = conns
		changed = true
	}

	conns[id] = conn
	r.owner[id] = identity

	return changed
}

// Unregister removes conn from whichever identity owns it and returns that identity.
// changed is true when it was the identity's last connection.
// Unknown connections are ignored.
func (r *Registry) Unregister(conn Conn) (identity string, changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()

	identity, ok := r.owner[id]
	if !ok {
		return "", false
	}

	return identity, r.removeLocked(identity, id)
}

func (r *Registry) removeLocked(identity, connID string) bool {
	delete(r.owner, connID)

	conns := r.byIdentity[identity]
	delete(conns, connID)

	if len(conns) == 0 {
		delete(r.byIdentity, identity)
		return true
	}
	return false
}

// ConnectionsFor returns a snapshot of identity's connections; empty when offline.
func (r *Registry) ConnectionsFor(identity string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byIdentity[identity]
	out := make([]Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// OnlineIdentities returns the sorted set of identities with at least one connection.
func (r *Registry) OnlineIdentities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byIdentity))
	for identity := range r.byIdentity {
		out = append(out, identity)
	}
	slices.Sort(out)
	return out
}

// IsOnline reports whether identity has at least one connection.
func (r *Registry) IsOnline(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byIdentity[identity]
	return ok
}

// AllConnections returns a snapshot of every registered connection.
func (r *Registry) AllConnections() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.owner))
	for _, conns := range r.byIdentity {
		for _, c := range conns {
			out = append(out, c)
		}
	}
	return out
}

// ConnectionCount returns the number of registered connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.owner)
}

// drain empties the registry and returns the connections it held.
func (r *Registry) drain() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Conn, 0, len(r.owner))
	for _, conns := range r.byIdentity {
		for _, c := range conns {
			out = append(out, c)
		}
	}

	r.byIdentity = make(map[string]map[string]Conn)
	r.owner = make(map[string]string)
	return out
}
