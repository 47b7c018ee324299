package websocket

import (
	"context"
	"sync"

	"github.com/kaliumosint/api/internal/metrics"
	"github.com/kaliumosint/api/pkg/logger"
)

const (
	maxConnectionsPerSession = 5
	broadcastBufferSize      = 256
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients      map[*Client]bool
	sessionConns map[string]int

	// channel -> subscribed clients
	channels map[string]map[*Client]bool

	broadcast  chan *BroadcastMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	logger      *logger.Logger
	authorizeFn AuthorizeFunc

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast to a channel.
type BroadcastMessage struct {
	Channel string
	Message *Message
}

// AuthorizeFunc reports whether a client may subscribe to a channel.
type AuthorizeFunc func(client *Client, channel string) bool

// NewHub creates a new Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		sessionConns: make(map[string]int),
		channels:     make(map[string]map[*Client]bool),
		broadcast:    make(chan *BroadcastMessage, broadcastBufferSize),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		done:         make(chan struct{}),
		logger:       log.With("component", "websocket_hub"),
		authorizeFn:  sessionAuthorize,
	}
}

// sessionAuthorize lets a client follow only its own session's scans.
func sessionAuthorize(client *Client, channel string) bool {
	channelType, id := ParseChannel(channel)
	return channelType == ChannelTypeScan && id != "" && id == client.Session
}

// SetAuthorizeFunc sets a custom authorization function.
func (h *Hub) SetAuthorizeFunc(fn AuthorizeFunc) {
	h.authorizeFn = fn
}

// Run starts the hub's main loop. It returns when ctx ends, after closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("websocket hub started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("websocket hub stopping")
			h.stop()
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.broadcastToChannel(msg)
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.closeAllClients()
	})
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	count := h.sessionConns[client.Session]
	if count >= maxConnectionsPerSession {
		h.mu.Unlock()
		h.logger.Warn("connection limit exceeded",
			"session", client.Session,
			"current", count,
			"max", maxConnectionsPerSession,
		)
		client.Close()
		return
	}
	h.sessionConns[client.Session] = count + 1
	h.clients[client] = true
	h.mu.Unlock()

	// Every session follows its own scan channel without asking.
	channel := ScanChannel(client.Session)
	if client.Subscribe(channel) {
		h.subscribeToChannel(client, channel)
	}
	metrics.WebSocketConnections.Inc()

	h.logger.Debug("client registered", "client_id", client.ID, "session", client.Session)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		h.removeClientFromAllChannels(client)
		if count := h.sessionConns[client.Session]; count > 1 {
			h.sessionConns[client.Session] = count - 1
		} else {
			delete(h.sessionConns, client.Session)
		}
	}
	h.mu.Unlock()

	if ok {
		metrics.WebSocketConnections.Dec()
		h.logger.Debug("client unregistered", "client_id", client.ID, "session", client.Session)
	}
}

// RegisterClient registers a new client. It returns false if the hub is
// stopped.
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// UnregisterClient unregisters a client.
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues msg for every subscriber of channel.
func (h *Hub) Broadcast(ctx context.Context, channel string, msg *Message) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}

	select {
	case h.broadcast <- &BroadcastMessage{Channel: channel, Message: msg}:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BroadcastEvent wraps data in an event message and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, channel string, data any) error {
	msg := NewMessage(MessageTypeEvent).
		WithChannel(channel).
		WithData(data)
	return h.Broadcast(ctx, channel, msg)
}

func (h *Hub) subscribeToChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]bool)
	}
	h.channels[channel][client] = true
}

func (h *Hub) unsubscribeFromChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.channels[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) authorizeSubscription(client *Client, channel string) bool {
	if h.authorizeFn == nil {
		return true
	}
	return h.authorizeFn(client, channel)
}

func (h *Hub) broadcastToChannel(msg *BroadcastMessage) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.channels[msg.Channel]))
	for client := range h.channels[msg.Channel] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.SendMessage(msg.Message); err != nil {
			h.logger.Warn("disconnecting websocket client",
				"client_id", client.ID,
				"channel", msg.Channel,
				"error", err,
			)
		}
	}
}

// removeClientFromAllChannels expects h.mu to be held.
func (h *Hub) removeClientFromAllChannels(client *Client) {
	for channel, clients := range h.channels {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
		metrics.WebSocketConnections.Dec()
	}
	h.channels = make(map[string]map[*Client]bool)
	h.sessionConns = make(map[string]int)
}

// HubStats contains hub statistics.
type HubStats struct {
	TotalClients   int            `json:"total_clients"`
	TotalChannels  int            `json:"total_channels"`
	ChannelClients map[string]int `json:"channel_clients"`
}

// GetStats returns hub statistics.
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	channelStats := make(map[string]int, len(h.channels))
	for channel, clients := range h.channels {
		channelStats[channel] = len(clients)
	}
	return HubStats{
		TotalClients:   len(h.clients),
		TotalChannels:  len(h.channels),
		ChannelClients: channelStats,
	}
}
