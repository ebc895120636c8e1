package ws

import (
	"sync"

	"go.uber.org/zap"
)

// Hub tracks connected clients per user. A user may hold several connections
// (tabs); every workspace event is published to all of them.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uint]map[*Client]bool
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[uint]map[*Client]bool),
		logger: logger.With(zap.String("component", "ws.hub")),
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[client.userID]
	if !ok {
		clients = make(map[*Client]bool)
		h.rooms[client.userID] = clients
	}
	clients[client] = true

	h.logger.Debug("client connected", zap.Uint("user_id", client.userID))
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.rooms[client.userID]; ok {
		if clients[client] {
			delete(clients, client)
			close(client.outbound)
		}
		if len(clients) == 0 {
			delete(h.rooms, client.userID)
		}
	}

	h.logger.Debug("client disconnected", zap.Uint("user_id", client.userID))
}

// Publish delivers a message to every connection of one user. Slow clients
// whose buffers are full are skipped rather than blocking the turn.
func (h *Hub) Publish(userID uint, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[userID] {
		select {
		case client.outbound <- msg:
		default:
			h.logger.Warn("dropping event; client buffer full",
				zap.Uint("user_id", userID),
				zap.String("event", msg.Event),
			)
		}
	}
}

// Connected reports how many connections a user currently has.
func (h *Hub) Connected(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}
