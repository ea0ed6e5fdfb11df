package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Message types
const (
	MessageTypeResult      = "result"
	MessageTypeError       = "error"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeOnlineCount = "online_count"
)

// Message is the envelope of every frame sent to a client
type Message struct {
	Type      string     `json:"type"`
	ID        string     `json:"id,omitempty"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ErrorBody describes a failed command
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OnlineCount is the payload of an online_count broadcast
type OnlineCount struct {
	Count int `json:"count"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// All connected clients
	clients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Messages for every client
	broadcast chan *Message

	// Last broadcast online count, sent to clients as they connect
	lastCount *Message

	mu     sync.RWMutex
	logger *slog.Logger

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			last := h.lastCount
			h.mu.Unlock()
			if last != nil {
				client.enqueue(last)
			}
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to every client
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.Lock()
	if message.Type == MessageTypeOnlineCount {
		h.lastCount = message
	}
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}
	for client := range h.clients {
		if !client.enqueueRaw(data) {
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// BroadcastOnlineCount sends the number of online users to every client
func (h *Hub) BroadcastOnlineCount(count int) {
	message := &Message{
		Type:      MessageTypeOnlineCount,
		Data:      OnlineCount{Count: count},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.closeSend()
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
		client.closeSend()
	}
}

// ConnectionCount returns the number of connected clients
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
