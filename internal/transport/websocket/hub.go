package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"livechat/internal/domain"
	"livechat/internal/service"
)

// Event names pushed to clients.
const (
	EventReceiveMessage       = "ReceiveMessage"
	EventMessageStatusChanged = "MessageStatusChanged"
	EventSessionEnded         = "SessionEnded"
	EventUserPresenceChanged  = "UserPresenceChanged"
	EventAdminUnreadChanged   = "AdminUnreadChanged"
)

// Frame is the wire format in both directions. Clients send control frames
// (join/leave/ping) with SessionKey set; the server pushes events with Event
// and Data set.
type Frame struct {
	Type       string      `json:"type"`
	SessionKey string      `json:"session_key,omitempty"`
	Event      string      `json:"event,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Timestamp  string      `json:"timestamp,omitempty"`
}

// Client represents one websocket connection. A user may hold several.
type Client struct {
	UserID int64
	Role   domain.UserRole
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *ChatHub

	mu       sync.Mutex
	sessions map[string]struct{}
}

func (c *Client) joinSession(key string) {
	c.mu.Lock()
	c.sessions[key] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) leaveSession(key string) {
	c.mu.Lock()
	delete(c.sessions, key)
	c.mu.Unlock()
}

func (c *Client) inSession(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sessions[key]
	return ok
}

// ChatHub tracks connected clients and fans events out to session groups and
// to the admin group. Messages themselves travel over REST; the hub only
// pushes notifications.
type ChatHub struct {
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	logger   *zap.Logger
	services *service.Services

	mutex sync.RWMutex
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

func NewChatHub(logger *zap.Logger, services *service.Services) *ChatHub {
	return &ChatHub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		services:   services,
	}
}

// Run owns the client set. Registration and teardown go through the channels
// so the pumps never touch the map directly.
func (h *ChatHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = struct{}{}
			h.mutex.Unlock()

			h.services.Presence.ConnectionOpened(client.UserID)
			h.logger.Info("websocket client connected",
				zap.Int64("user_id", client.UserID),
				zap.String("role", string(client.Role)))

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mutex.Unlock()

			h.services.Presence.ConnectionClosed(client.UserID)
			h.logger.Info("websocket client disconnected",
				zap.Int64("user_id", client.UserID))
		}
	}
}

// BroadcastToSession pushes an event to every connection joined to the
// session's group.
func (h *ChatHub) BroadcastToSession(sessionKey, event string, data interface{}) {
	payload, err := marshalEvent(event, data)
	if err != nil {
		h.logger.Error("failed to marshal event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		if client.inSession(sessionKey) {
			h.sendToClient(client, payload)
		}
	}
}

// BroadcastToAdmins pushes an event to every connected admin.
func (h *ChatHub) BroadcastToAdmins(event string, data interface{}) {
	payload, err := marshalEvent(event, data)
	if err != nil {
		h.logger.Error("failed to marshal event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		if client.Role == domain.UserRoleAdmin {
			h.sendToClient(client, payload)
		}
	}
}

func marshalEvent(event string, data interface{}) ([]byte, error) {
	return json.Marshal(Frame{
		Type:      "event",
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// sendToClient must be called with the mutex held. A full send buffer drops
// the frame; the connection is cleaned up by the pumps when it actually dies.
func (h *ChatHub) sendToClient(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		h.logger.Warn("client send buffer full, dropping event",
			zap.Int64("user_id", client.UserID))
	}
}

// HandleWebSocket authenticates via the token query parameter and upgrades
// the connection.
func (h *ChatHub) HandleWebSocket(c *gin.Context) {
	tokenStr := strings.TrimSpace(c.Query("token"))
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
		return
	}

	userID, role, err := h.services.Auth.ParseToken(c.Request.Context(), tokenStr)
	if err != nil {
		h.logger.Warn("websocket auth failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	client := &Client{
		UserID:   userID,
		Role:     role,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      h,
		sessions: make(map[string]struct{}),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump handles inbound control frames: join/leave a session group, ping.
// An admin may join any session group; a user only the sessions they own,
// which the ownership check in handleJoin enforces.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.Hub.logger.Warn("malformed websocket frame", zap.Error(err))
			continue
		}

		switch frame.Type {
		case "join":
			c.handleJoin(frame.SessionKey)
		case "leave":
			if frame.SessionKey != "" {
				c.leaveSession(frame.SessionKey)
			}
		case "ping":
			pong, err := json.Marshal(Frame{Type: "pong", Timestamp: time.Now().UTC().Format(time.RFC3339)})
			if err == nil {
				select {
				case c.Send <- pong:
				default:
				}
			}
		default:
			c.Hub.logger.Warn("unknown websocket frame type", zap.String("type", frame.Type))
		}
	}
}

func (c *Client) handleJoin(sessionKey string) {
	if sessionKey == "" {
		return
	}

	if c.Role != domain.UserRoleAdmin {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		session, err := c.Hub.services.Chat.GetSessionInfo(ctx, sessionKey, c.UserID, c.Role)
		if err != nil || session == nil {
			c.Hub.logger.Warn("join rejected",
				zap.Int64("user_id", c.UserID),
				zap.String("session_key", sessionKey))
			return
		}
	}

	c.joinSession(sessionKey)
}

// writePump serializes all writes to the connection and keeps it alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Warn("failed to write websocket message",
					zap.Int64("user_id", c.UserID), zap.Error(err))
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
