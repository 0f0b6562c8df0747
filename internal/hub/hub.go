package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/weiawesome/wes-meet/internal/config"
	"github.com/weiawesome/wes-meet/internal/domain"
	pkglog "github.com/weiawesome/wes-meet/pkg/log"
)

// DisconnectHandler is called when a client disconnects.
type DisconnectHandler func(*Client)

// Client represents a connected WebSocket client.
type Client struct {
	ID                string
	Hub               *Hub
	Conn              *websocket.Conn
	Send              chan []byte
	Session           *domain.Session
	RemoteIP          string
	ctx               context.Context
	disconnectHandler DisconnectHandler
	closeOnce         sync.Once
}

// NewClient creates a client bound to h. ctx carries the connection logger.
func NewClient(ctx context.Context, h *Hub, conn *websocket.Conn, id, remoteIP string) *Client {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Client{
		ID:       id,
		Hub:      h,
		Conn:     conn,
		Send:     make(chan []byte, h.config.SendBuffer),
		Session:  domain.NewSession(id, remoteIP),
		RemoteIP: remoteIP,
		ctx:      ctx,
	}
}

// Context returns the connection's context.
func (c *Client) Context() context.Context {
	return c.ctx
}

// SetDisconnectHandler sets the handler to be called on disconnect.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.disconnectHandler = handler
}

// Close closes the underlying connection, which ends ReadPump and triggers
// the disconnect handler. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// Hub is the connection registry. It maps client ids to live clients and
// delivers frames to them without blocking.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	config  config.WebSocketConfig
}

// NewHub creates a new Hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	return &Hub{
		clients: make(map[string]*Client),
		config:  cfg,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	l := pkglog.Ctx(client.ctx)
	l.Debug().Msg("client registered")
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	cur, ok := h.clients[client.ID]
	if ok && cur == client {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.mu.Unlock()

	if ok {
		l := pkglog.Ctx(client.ctx)
		l.Debug().Msg("client unregistered")
	}
}

// Get returns the client with the given id.
func (h *Hub) Get(clientID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[clientID]
	return c, ok
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SendToClient sends a message to a specific client. It reports whether
// the client was registered; delivery itself is best effort.
func (h *Hub) SendToClient(clientID string, message interface{}) (bool, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return false, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return false, nil
	}
	h.deliver(client, data)
	return true, nil
}

// SendToClients marshals message once and sends it to every listed client
// that is still registered. Unknown ids are skipped.
func (h *Hub) SendToClients(clientIDs []string, message interface{}) error {
	if len(clientIDs) == 0 {
		return nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range clientIDs {
		if client, ok := h.clients[id]; ok {
			h.deliver(client, data)
		}
	}
	return nil
}

// deliver must be called with h.mu held. A client whose buffer is full is
// dropped: its connection is closed and the disconnect path cleans up.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		l := pkglog.Ctx(client.ctx)
		l.Warn().Msg("send buffer full, dropping client")
		go client.Close()
	}
}

// ReadPump pumps messages from the WebSocket connection to the handler.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		// Call disconnect handler before unregistering
		if c.disconnectHandler != nil {
			c.disconnectHandler(c)
		}
		c.Hub.Unregister(c)
		c.Close()
	}()

	c.Conn.SetReadLimit(c.Hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l := pkglog.Ctx(c.ctx)
				l.Warn().Err(err).Msg("websocket read error")
			}
			break
		}

		c.Session.UpdateActivity()
		handler(c, message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.Hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage sends a message to this client through the hub.
func (c *Client) SendMessage(message interface{}) error {
	_, err := c.Hub.SendToClient(c.ID, message)
	return err
}
