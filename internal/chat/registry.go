// Package chat tracks live websocket connections so the message service can
// relay to recipients that are currently online. Persistence never depends on
// the registry; delivery is best-effort.
package chat

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/pratik860s/Autopart-Backend/internal/utils"
)

// Client is one registered connection. gorilla/websocket allows a single
// concurrent writer per connection, so every write to the underlying conn
// must go through WriteJSON, which serializes them.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// WriteJSON writes v to the connection, one writer at a time.
func (c *Client) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Registry maps user ids to their open websocket connections. A user may be
// connected from more than one device at a time.
type Registry interface {
	// Register wraps the connection and tracks it under the user. All
	// subsequent writes to the connection must go through the returned
	// Client so they serialize with relay sends.
	Register(userID utils.SixID, conn *websocket.Conn) *Client
	Unregister(userID utils.SixID, client *Client)
	// Send writes v as JSON to every connection the user has open. It
	// returns the number of connections written. Write failures evict the
	// dead connection.
	Send(userID utils.SixID, v interface{}) int
	// Online reports whether the user has at least one open connection.
	Online(userID utils.SixID) bool
}

// memoryRegistry is the in-process Registry used by a single api instance.
type memoryRegistry struct {
	mu      sync.RWMutex
	clients map[utils.SixID]map[*Client]bool
}

// NewRegistry creates an empty in-memory registry.
func NewRegistry() Registry {
	return &memoryRegistry{
		clients: make(map[utils.SixID]map[*Client]bool),
	}
}

func (r *memoryRegistry) Register(userID utils.SixID, conn *websocket.Conn) *Client {
	client := &Client{conn: conn}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.clients[userID]
	if !ok {
		set = make(map[*Client]bool)
		r.clients[userID] = set
	}
	set[client] = true
	return client
}

func (r *memoryRegistry) Unregister(userID utils.SixID, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.clients[userID]
	if !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(r.clients, userID)
	}
}

func (r *memoryRegistry) Send(userID utils.SixID, v interface{}) int {
	r.mu.RLock()
	set := r.clients[userID]
	targets := make([]*Client, 0, len(set))
	for client := range set {
		targets = append(targets, client)
	}
	r.mu.RUnlock()

	sent := 0
	for _, client := range targets {
		if err := client.WriteJSON(v); err != nil {
			r.Unregister(userID, client)
			continue
		}
		sent++
	}
	return sent
}

func (r *memoryRegistry) Online(userID utils.SixID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients[userID]) > 0
}
