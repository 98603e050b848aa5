package ws

import (
	"sync"
)

// PresenceHub is the authoritative in-memory registry of who is reachable.
// It tracks every open connection plus a bidirectional user<->connection
// mapping. Both directions mutate under one lock so a forward entry always
// has exactly one matching reverse entry. All operations are fast and
// in-memory; nothing external is ever called while the lock is held.
type PresenceHub struct {
	mu     sync.RWMutex
	conns  map[string]*Client // connection id -> client, every open connection
	users  map[uint]*Client   // user id -> client, registered connections only
	byConn map[string]uint    // connection id -> user id, reverse of users
}

func NewPresenceHub() *PresenceHub {
	return &PresenceHub{
		conns:  make(map[string]*Client),
		users:  make(map[uint]*Client),
		byConn: make(map[string]uint),
	}
}

// AddConn tracks a freshly accepted connection. No presence entry exists
// until the connection registers.
func (h *PresenceHub) AddConn(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID] = c
}

// Register binds userID to c, last write wins. A prior connection for the
// same user keeps its socket but is no longer reachable through lookup, and
// its reverse entry is pruned so the two maps stay mutually consistent.
func (h *PresenceHub) Register(c *Client, userID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.users[userID]; ok && old != c {
		delete(h.byConn, old.ID)
	}
	if prev, ok := h.byConn[c.ID]; ok && prev != userID {
		delete(h.users, prev)
	}
	h.users[userID] = c
	h.byConn[c.ID] = userID
}

// Lookup returns the live connection for userID, or nil.
func (h *PresenceHub) Lookup(userID uint) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.users[userID]
}

// RemoveConn drops the connection and, via the reverse map, its presence
// entry. It reports the user id that went offline; ok is false for
// connections that never registered or were superseded, making a second
// call for the same connection a no-op.
func (h *PresenceHub) RemoveConn(c *Client) (uint, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c.ID)
	userID, ok := h.byConn[c.ID]
	if !ok {
		return 0, false
	}
	delete(h.byConn, c.ID)
	if h.users[userID] == c {
		delete(h.users, userID)
	}
	return userID, true
}

// Online snapshots the ids of all registered users.
func (h *PresenceHub) Online() []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]uint, 0, len(h.users))
	for id := range h.users {
		ids = append(ids, id)
	}
	return ids
}

// SendToUser relays one event to userID's connection. It reports false when
// the user has no presence entry; the caller decides whether that is an
// offline outcome or a silent drop.
func (h *PresenceHub) SendToUser(userID uint, event string, data interface{}) bool {
	h.mu.RLock()
	c := h.users[userID]
	h.mu.RUnlock()
	if c == nil {
		return false
	}
	c.Enqueue(event, data)
	return true
}

// BroadcastAll fans an event out to every open connection, registered or
// not. Presence changes intentionally go directory-wide.
func (h *PresenceHub) BroadcastAll(event string, data interface{}) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.conns))
	for _, c := range h.conns {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.Enqueue(event, data)
	}
}

func (h *PresenceHub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
