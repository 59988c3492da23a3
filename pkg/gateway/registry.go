package gateway

import (
	"sort"
	"sync"
	"time"
)

// ClientRegistry tracks open WebSocket connections and the frames each has sent
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
	}
}

func (r *ClientRegistry) Add(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.ID] = client
}

func (r *ClientRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, clientID)
}

// Connections returns the live connections, used to close them on shutdown
func (r *ClientRegistry) Connections() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// MarkFrame records an inbound frame from clientID
func (r *ClientRegistry) MarkFrame(clientID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[clientID]; ok {
		client.LastActivity = at
		client.Frames++
	}
}

// Snapshot returns the public view of every client, oldest connection first
func (r *ClientRegistry) Snapshot() []ClientInfo {
	r.mu.RLock()
	infos := make([]ClientInfo, 0, len(r.clients))
	for _, client := range r.clients {
		infos = append(infos, ClientInfo{
			ID:           client.ID,
			IPAddress:    client.IPAddress,
			ConnectedAt:  client.ConnectedAt,
			LastActivity: client.LastActivity,
			Frames:       client.Frames,
		})
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}
