package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/arcade-social/internal/arcade"
	"github.com/arcade-social/internal/auth"
	"github.com/arcade-social/internal/dispatch"
	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/session"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Time allowed for one command
	commandTimeout = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// TokenParser validates bearer tokens
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Client represents a WebSocket client connection
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	session *arcade.Client
	logger  *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger.With("client_id", id),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Push implements arcade.Pusher
func (c *Client) Push(event string, data any) {
	c.enqueue(&Message{Type: event, Data: data, Timestamp: time.Now()})
}

func (c *Client) enqueue(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal message", "type", msg.Type, "error", err)
		return
	}
	if !c.enqueueRaw(data) {
		c.logger.Warn("client buffer full, dropping message", "type", msg.Type)
	}
}

// enqueueRaw reports false only when the buffer is full
func (c *Client) enqueueRaw(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump reads commands from the connection and executes them in order
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.session.Close()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			break
		}

		var cmd dispatch.Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.logger.Warn("invalid message format", "error", err)
			c.sendError("", &ErrorBody{Code: domain.KindInvalid, Message: "invalid message format"})
			continue
		}

		c.handleCommand(cmd)
	}
}

func (c *Client) handleCommand(cmd dispatch.Command) {
	if cmd.Type == MessageTypePing {
		c.enqueue(&Message{Type: MessageTypePong, ID: cmd.ID, Timestamp: time.Now()})
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, commandTimeout)
	defer cancel()

	result, err := c.session.Dispatch(ctx, cmd)
	if err != nil {
		body := c.errorBody(cmd.Type, err)
		c.sendError(cmd.ID, body)
		return
	}
	c.enqueue(&Message{Type: MessageTypeResult, ID: cmd.ID, Data: result, Timestamp: time.Now()})
}

func (c *Client) errorBody(command string, err error) *ErrorBody {
	if code := auth.CodeOf(err); code != "" {
		return &ErrorBody{Code: code, Message: err.Error()}
	}
	if errors.Is(err, dispatch.ErrUnknownCommand) {
		return &ErrorBody{Code: domain.KindInvalid, Message: err.Error()}
	}

	kind := domain.KindOf(err)
	if kind == domain.KindInternal {
		c.logger.Error("command failed", "command", command, "error", err)
		return &ErrorBody{Code: kind, Message: domain.ErrInternalError.Error()}
	}
	return &ErrorBody{Code: kind, Message: err.Error()}
}

func (c *Client) sendError(id string, body *ErrorBody) {
	c.enqueue(&Message{Type: MessageTypeError, ID: id, Error: body, Timestamp: time.Now()})
}

// writePump pumps messages from the send buffer to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and binds a new arcade session to the
// connection. A valid token signs the session in; an invalid one is refused.
func ServeWs(hub *Hub, app *arcade.App, tokens TokenParser, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	sess := session.New()
	if token := requestToken(r); token != "" {
		claims, err := tokens.Parse(token)
		if err != nil {
			http.Error(w, domain.ErrNotAuthenticated.Error(), http.StatusUnauthorized)
			return
		}
		sess, err = app.Resume(r.Context(), claims.UserID, claims.Username)
		if err != nil {
			logger.Error("failed to resume session", "user_id", claims.UserID, "error", err)
			http.Error(w, domain.ErrRemoteOperationFailed.Error(), http.StatusServiceUnavailable)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(hub, conn, logger)
	client.session = app.Connect(sess, client)
	hub.Register(client)

	// Start client goroutines
	go client.writePump()
	go client.readPump()

	client.logger.Debug("new websocket connection")
}

func requestToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
