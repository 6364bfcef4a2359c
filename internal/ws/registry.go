package ws

import "sync"

// ConnectionRegistry tracks active WebSocket subscribers to the snippet event
// stream. The snippet collection is global, so there is a single flat pool
// rather than per-topic rooms.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[*Connection]struct{}
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[*Connection]struct{})}
}

// Register adds the connection to the pool.
func (r *ConnectionRegistry) Register(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = struct{}{}
	gatewayConnections.Set(float64(len(r.conns)))
}

// Unregister removes the connection.
func (r *ConnectionRegistry) Unregister(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c)
	gatewayConnections.Set(float64(len(r.conns)))
}

// Len reports the number of attached subscribers.
func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// BroadcastText delivers the payload to every attached subscriber. The
// channel contract deliberately includes the originator: clients are expected
// to self-filter by snippet identifier, so no sender exclusion happens here.
func (r *ConnectionRegistry) BroadcastText(payload []byte) int {
	r.mu.RLock()
	recipients := make([]*Connection, 0, len(r.conns))
	for c := range r.conns {
		recipients = append(recipients, c)
	}
	r.mu.RUnlock()

	sent := 0
	for _, conn := range recipients {
		if err := conn.SendText(payload); err == nil {
			sent++
		}
	}
	return sent
}

// CloseAll disconnects every subscriber, for graceful shutdown.
func (r *ConnectionRegistry) CloseAll() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
