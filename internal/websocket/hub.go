// Package websocket pushes booking lifecycle events to connected residents and admins.
package websocket

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// envelope addresses a payload to a user, a role, or both
type envelope struct {
	userID  uuid.UUID
	role    string
	payload []byte
}

// Hub maintains the set of active WebSocket clients and routes messages to them
type Hub struct {
	clients    map[*Client]bool
	deliver    chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *logrus.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		deliver:    make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's event loop and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.WithFields(logrus.Fields{"user_id": client.UserID, "role": client.Role, "total": total}).Debug("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case env := <-h.deliver:
			h.mu.Lock()
			for client := range h.clients {
				if !env.matches(client) {
					continue
				}
				select {
				case client.send <- env.payload:
				default:
					// Slow consumer: drop the connection
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (e envelope) matches(c *Client) bool {
	if e.userID != uuid.Nil && c.UserID == e.userID {
		return true
	}
	return e.role != "" && c.Role == e.role
}

// SendToUser queues a message for every connection of one user
func (h *Hub) SendToUser(userID uuid.UUID, msg Message) {
	h.enqueue(envelope{userID: userID}, msg)
}

// SendToRole queues a message for every connection whose user has role
func (h *Hub) SendToRole(role string, msg Message) {
	h.enqueue(envelope{role: role}, msg)
}

// SendToUserAndRole queues one message for a user and a role; a client matching both receives it once
func (h *Hub) SendToUserAndRole(userID uuid.UUID, role string, msg Message) {
	h.enqueue(envelope{userID: userID, role: role}, msg)
}

func (h *Hub) enqueue(env envelope, msg Message) {
	payload, err := msg.JSON()
	if err != nil {
		h.logger.WithError(err).WithField("type", msg.Type).Error("Failed to encode WebSocket message")
		return
	}
	env.payload = payload

	select {
	case h.deliver <- env:
	default:
		h.logger.WithField("type", msg.Type).Warn("WebSocket delivery queue full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is one authenticated WebSocket connection
type Client struct {
	UserID uuid.UUID
	Role   string
	send   chan []byte
}

// NewClient creates a new WebSocket client
func NewClient(userID uuid.UUID, role string) *Client {
	return &Client{
		UserID: userID,
		Role:   role,
		send:   make(chan []byte, 64),
	}
}

// Send returns the send channel for the client
func (c *Client) Send() <-chan []byte {
	return c.send
}
