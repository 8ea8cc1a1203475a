package relay

import (
	"sync"
)

const defaultStreamBuffer = 16

// Connection represents one live transport session tracked by the registry.
// The relay trusts the user id and username as supplied at handshake time; it
// performs no verification of its own.
type Connection struct {
	ID       string
	UserID   string
	Username string
	stream   chan Envelope
	done     chan struct{}
}

// Stream exposes the connection's outbound envelope channel. The transport
// layer drains it; the broadcaster writes to it without blocking.
func (c *Connection) Stream() <-chan Envelope {
	return c.stream
}

// Done is closed once the connection is removed from the registry. The stream
// channel itself is never closed, so a publish racing a removal lands in the
// buffer and is garbage collected with it.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Registry owns the connection set and room membership. It is handed by
// reference into the broadcaster and the transport layer; there is no ambient
// singleton. All mutation goes through the single internal mutex.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	rooms       map[string]map[string]struct{}
	bufferSize  int
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		rooms:       make(map[string]map[string]struct{}),
		bufferSize:  defaultStreamBuffer,
	}
}

// Add registers a new connection and returns its handle.
func (r *Registry) Add(connectionID, userID, username string) *Connection {
	connection := &Connection{
		ID:       connectionID,
		UserID:   userID,
		Username: username,
		stream:   make(chan Envelope, r.bufferSize),
		done:     make(chan struct{}),
	}
	r.mu.Lock()
	r.connections[connectionID] = connection
	r.mu.Unlock()
	return connection
}

// Join adds the connection to a room, creating the room on demand. Joins are
// cumulative: joining a second room does not leave the first.
func (r *Registry) Join(connectionID, room string) {
	if room == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.connections[connectionID]; !ok {
		return
	}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[connectionID] = struct{}{}
}

// Remove unregisters the connection, clears its room memberships, and signals
// the draining transport loop to terminate.
func (r *Registry) Remove(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	connection, ok := r.connections[connectionID]
	if !ok {
		return
	}
	delete(r.connections, connectionID)
	for room, members := range r.rooms {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	close(connection.done)
}

// Get returns the connection for the given id, if still registered.
func (r *Registry) Get(connectionID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connection, ok := r.connections[connectionID]
	return connection, ok
}

// Count reports the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// others snapshots every connection except the sender, optionally restricted
// to current members of a room. The snapshot is taken under the read lock so
// sends happen outside it.
func (r *Registry) others(senderID, room string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if room != "" {
		members := r.rooms[room]
		recipients := make([]*Connection, 0, len(members))
		for memberID := range members {
			if memberID == senderID {
				continue
			}
			if connection, ok := r.connections[memberID]; ok {
				recipients = append(recipients, connection)
			}
		}
		return recipients
	}

	recipients := make([]*Connection, 0, len(r.connections))
	for connectionID, connection := range r.connections {
		if connectionID == senderID {
			continue
		}
		recipients = append(recipients, connection)
	}
	return recipients
}
