package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kaliumosint/api/internal/metrics"
	"github.com/kaliumosint/api/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize            = 4096
	maxSubscriptionsPerClient = 8
	sendBufferSize            = 256
)

// Client represents a single WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *logger.Logger

	ID      string
	Session string

	subscriptions map[string]bool
	subMu         sync.RWMutex

	closed bool
	mu     sync.Mutex
}

// NewClient creates a new WebSocket client for a browser session.
func NewClient(hub *Hub, conn *websocket.Conn, session string, log *logger.Logger) *Client {
	return &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		logger:        log,
		ID:            uuid.NewString(),
		Session:       session,
		subscriptions: make(map[string]bool),
	}
}

// Subscribe adds a channel subscription.
// Returns false if already subscribed or the limit is reached.
func (c *Client) Subscribe(channel string) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.subscriptions[channel] {
		return false
	}
	if len(c.subscriptions) >= maxSubscriptionsPerClient {
		c.logger.Warn("subscription limit exceeded",
			"client_id", c.ID,
			"session", c.Session,
			"max", maxSubscriptionsPerClient,
		)
		return false
	}

	c.subscriptions[channel] = true
	return true
}

// Unsubscribe removes a channel subscription.
func (c *Client) Unsubscribe(channel string) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if !c.subscriptions[channel] {
		return false
	}
	delete(c.subscriptions, channel)
	return true
}

// IsSubscribed checks if client is subscribed to a channel.
func (c *Client) IsSubscribed(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subscriptions[channel]
}

// SendMessage queues a message for the client. A client whose buffer is
// full is closed rather than silently losing progress events.
func (c *Client) SendMessage(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	select {
	case c.send <- data:
		c.mu.Unlock()
		return nil
	default:
	}
	c.mu.Unlock()

	metrics.WebSocketSlowClients.Inc()
	c.Close()
	return ErrSlowClient
}

// Close closes the client connection. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	_ = c.conn.Close()
}

// ReadPump pumps messages from the WebSocket connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "client_id", c.ID, "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("INVALID_MESSAGE", "Invalid message format", "")
			continue
		}
		c.handleMessage(&msg)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One frame per message so clients can parse each as JSON.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.handleSubscribe(msg)
	case MessageTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case MessageTypePing:
		_ = c.SendMessage(NewMessage(MessageTypePong).WithRequestID(msg.RequestID))
	default:
		c.sendError("UNKNOWN_MESSAGE_TYPE", "Unknown message type: "+string(msg.Type), msg.RequestID)
	}
}

func channelRequest(msg *Message) ChannelRequest {
	var req ChannelRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.Channel == "" {
		req.Channel = msg.Channel
	}
	if req.RequestID == "" {
		req.RequestID = msg.RequestID
	}
	return req
}

func (c *Client) handleSubscribe(msg *Message) {
	req := channelRequest(msg)
	if req.Channel == "" {
		c.sendError("INVALID_CHANNEL", "Channel is required", req.RequestID)
		return
	}
	if !c.hub.authorizeSubscription(c, req.Channel) {
		c.sendError("FORBIDDEN", "Access denied to channel", req.RequestID)
		return
	}

	if c.Subscribe(req.Channel) {
		c.hub.subscribeToChannel(c, req.Channel)
	}
	_ = c.SendMessage(NewMessage(MessageTypeSubscribed).
		WithChannel(req.Channel).
		WithRequestID(req.RequestID))
}

func (c *Client) handleUnsubscribe(msg *Message) {
	req := channelRequest(msg)
	if req.Channel == "" {
		c.sendError("INVALID_CHANNEL", "Channel is required", req.RequestID)
		return
	}

	if c.Unsubscribe(req.Channel) {
		c.hub.unsubscribeFromChannel(c, req.Channel)
	}
	_ = c.SendMessage(NewMessage(MessageTypeUnsubscribed).
		WithChannel(req.Channel).
		WithRequestID(req.RequestID))
}

func (c *Client) sendError(code, message, requestID string) {
	_ = c.SendMessage(NewMessage(MessageTypeError).
		WithData(ErrorData{Code: code, Message: message}).
		WithRequestID(requestID))
}
