package websocket

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cehpoint/project-portal/project-portal-backend/internal/auth"
	"cehpoint/project-portal/project-portal-backend/internal/notifications"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

var (
	ErrNotConnected = errors.New("user not connected")
	ErrClosed       = errors.New("websocket manager closed")
)

// Client is one websocket session of a user
type Client struct {
	ID          string
	UserID      string
	ConnectedAt time.Time

	conn *websocket.Conn
	send chan notifications.Message
}

type delivery struct {
	userID  string
	message notifications.Message
	result  chan error
}

// Hub owns the set of clients. Only the run loop touches the map.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	stop       chan struct{}
	count      atomic.Int64
}

// Manager upgrades connections and routes messages to users
type Manager struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
	once     sync.Once
}

// NewManager starts the hub. allowOrigin of "" or "*" accepts any origin.
func NewManager(allowOrigin string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery),
		stop:       make(chan struct{}),
	}

	m := &Manager{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowOrigin == "" || allowOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowOrigin
			},
		},
	}
	go m.run()
	return m
}

// Handle is the gin endpoint for GET /ws. It must run behind auth.Middleware.
func (m *Manager) Handle(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	if _, err := m.HandleConnection(c.Writer, c.Request, claims.UserID); err != nil {
		m.logger.Warn("Websocket upgrade failed", zap.String("user_id", claims.UserID), zap.Error(err))
	}
}

// HandleConnection upgrades the request and attaches the session to userID
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, userID string) (*Client, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	client := &Client{
		ID:          uuid.New().String(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan notifications.Message, sendBuffer),
	}
	client.send <- notifications.Message{
		Type:      notifications.MessageTypeConnected,
		Data:      map[string]interface{}{"connectionId": client.ID},
		Timestamp: client.ConnectedAt,
		Target:    userID,
	}

	select {
	case m.hub.register <- client:
	case <-m.hub.stop:
		conn.Close()
		return nil, ErrClosed
	}

	go m.writePump(client)
	go m.readPump(client)
	return client, nil
}

// SendToUser queues message on every open session of userID
func (m *Manager) SendToUser(userID string, message notifications.Message) error {
	message.Target = userID
	d := delivery{userID: userID, message: message, result: make(chan error, 1)}
	select {
	case m.hub.deliver <- d:
	case <-m.hub.stop:
		return ErrClosed
	}
	return <-d.result
}

// ConnectionCount returns the number of open sessions
func (m *Manager) ConnectionCount() int {
	return int(m.hub.count.Load())
}

// Close disconnects every client and stops the hub
func (m *Manager) Close() {
	m.once.Do(func() { close(m.hub.stop) })
}

func (m *Manager) run() {
	h := m.hub
	for {
		select {
		case c := <-h.register:
			if h.clients[c.UserID] == nil {
				h.clients[c.UserID] = make(map[*Client]struct{})
			}
			h.clients[c.UserID][c] = struct{}{}
			h.count.Add(1)
			m.logger.Debug("Websocket client registered", zap.String("client_id", c.ID), zap.String("user_id", c.UserID))

		case c := <-h.unregister:
			m.drop(c)

		case d := <-h.deliver:
			sessions := h.clients[d.userID]
			if len(sessions) == 0 {
				d.result <- ErrNotConnected
				continue
			}
			for c := range sessions {
				select {
				case c.send <- d.message:
				default:
					m.logger.Warn("Websocket client too slow, dropping", zap.String("client_id", c.ID))
					m.drop(c)
				}
			}
			d.result <- nil

		case <-h.stop:
			for _, sessions := range h.clients {
				for c := range sessions {
					close(c.send)
				}
			}
			h.clients = map[string]map[*Client]struct{}{}
			h.count.Store(0)
			return
		}
	}
}

// drop removes c and closes its queue. Safe to call twice for one client.
func (m *Manager) drop(c *Client) {
	h := m.hub
	sessions, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := sessions[c]; !ok {
		return
	}
	delete(sessions, c)
	if len(sessions) == 0 {
		delete(h.clients, c.UserID)
	}
	close(c.send)
	h.count.Add(-1)
	m.logger.Debug("Websocket client unregistered", zap.String("client_id", c.ID), zap.String("user_id", c.UserID))
}

func (m *Manager) readPump(c *Client) {
	defer func() {
		select {
		case m.hub.unregister <- c:
		case <-m.hub.stop:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg notifications.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Debug("Websocket read failed", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
		m.handleMessage(c, msg)
	}
}

func (m *Manager) writePump(c *Client) {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
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

// handleMessage answers the few frames clients may send
func (m *Manager) handleMessage(c *Client, msg notifications.Message) {
	switch msg.Type {
	case "ping":
		// pong goes to every session of the user
		if err := m.SendToUser(c.UserID, notifications.Message{
			Type:      notifications.MessageTypePong,
			Timestamp: time.Now(),
		}); err != nil {
			m.logger.Debug("Pong not delivered", zap.String("client_id", c.ID), zap.Error(err))
		}
	default:
		m.logger.Debug("Ignoring websocket message", zap.String("type", msg.Type))
	}
}
