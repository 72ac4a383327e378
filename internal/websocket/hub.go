package websocket

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kapehan/kapehan-backend/pkg/logger"
)

// Hub tracks connected clients and pushes notification payloads to them.
// Delivery is best effort; a full or closed client just misses the push
// and catches up from the notification list endpoint.
type Hub struct {
	// UserID -> sessions, multiple devices per user
	clients map[uint][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint][]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
	}
}

// Run processes register/unregister events. Call in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			sessions := len(h.clients[client.UserID])
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"user_id":        client.UserID,
				"total_sessions": sessions,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if clientList, ok := h.clients[client.UserID]; ok {
				newList := make([]*Client, 0, len(clientList))
				for _, c := range clientList {
					if c != client {
						newList = append(newList, c)
					}
				}
				if len(newList) == 0 {
					delete(h.clients, client.UserID)
				} else {
					h.clients[client.UserID] = newList
				}
				close(client.Send)
			}
			h.mu.Unlock()
			logger.Info("WebSocket client unregistered", map[string]interface{}{
				"user_id": client.UserID,
			})
		}
	}
}

// Register attaches a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// SendToUser pushes a JSON payload to every session of the user.
// Returns an error only when the payload cannot be marshalled; an
// offline user is not an error.
func (h *Hub) SendToUser(userID uint, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal websocket payload: %w", err)
	}

	h.mu.RLock()
	sessions := h.clients[userID]
	h.mu.RUnlock()

	for _, client := range sessions {
		select {
		case client.Send <- data:
		default:
			// Slow consumer: drop the push rather than block the caller.
			logger.Warn("Dropping websocket push for slow client", map[string]interface{}{
				"user_id": userID,
			})
		}
	}
	return nil
}

// ConnectedUsers returns the number of distinct users online.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
