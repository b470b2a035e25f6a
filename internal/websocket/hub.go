// internal/websocket/hub.go
package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	wstypes "fanpay-service/internal/domain/websocket"
	"fanpay-service/internal/pkg/jwt"
)

// Hub tracks every connected client per user id and pushes payment events to
// a user's active sessions. Publishing to a user with no open connection is
// a silent no-op.
type Hub struct {
	// Registered clients by user ID
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	// Registration/unregistration
	Register   chan *Client
	unregister chan *Client

	// Broadcasting
	broadcast chan *userMessage

	jwtVerifier *jwt.Verifier
}

type userMessage struct {
	UserID  string
	Message *wstypes.WSMessage
}

func NewHub(jwtVerifier *jwt.Verifier) *Hub {
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		Register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *userMessage, 256),
		jwtVerifier: jwtVerifier,
	}
}

// AuthenticateClient validates the JWT token and creates an authenticated client
func (h *Hub) AuthenticateClient(token string) (*ClientAuth, error) {
	claims, err := h.jwtVerifier.Verify(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrUnauthorized
	}

	return &ClientAuth{
		UserID: claims.UserID,
		Roles:  claims.Roles,
	}, nil
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// EmitToUser pushes a message to every open session of one user.
func (h *Hub) EmitToUser(userID string, msg *wstypes.WSMessage) {
	h.broadcast <- &userMessage{UserID: userID, Message: msg}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true

	log.Printf("Client connected: user=%s, total=%d", client.userID, h.totalClients())

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"user_id": client.userID,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.userID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()

			if len(clients) == 0 {
				delete(h.clients, client.userID)
			}

			log.Printf("Client disconnected: user=%s, total=%d", client.userID, h.totalClients())
		}
	}
}

func (h *Hub) deliver(msg *userMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.clients[msg.UserID]
	if !ok {
		return
	}

	payload, err := json.Marshal(msg.Message)
	if err != nil {
		log.Printf("failed to marshal ws message: %v", err)
		return
	}

	for client := range clients {
		client.Send(payload)
	}
}

// ConnectedClients returns the number of open sessions for a user.
func (h *Hub) ConnectedClients(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}
