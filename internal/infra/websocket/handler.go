package websocket

import (
	"net/http"
	"regexp"

	"github.com/gorilla/websocket"

	"github.com/kaliumosint/api/pkg/apierror"
	"github.com/kaliumosint/api/pkg/logger"
)

// SessionPattern is the accepted form of a browser session id.
var SessionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Handler upgrades browser sessions to WebSocket connections.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewHandler creates a new WebSocket handler. allowedOrigins of ["*"] or
// empty accepts every origin.
func NewHandler(hub *Hub, allowedOrigins []string, log *logger.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: log.With("component", "websocket"),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// ServeWS handles WebSocket upgrade requests.
// GET /api/v1/ws?session=xxx
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	session := r.URL.Query().Get("session")
	if !SessionPattern.MatchString(session) {
		apierror.BadRequest("session query parameter is required").WriteJSON(w)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "session", session, "error", err)
		return
	}

	client := NewClient(h.hub, conn, session, h.logger)
	if !h.hub.RegisterClient(client) {
		client.Close()
		return
	}

	h.logger.Info("websocket client connected",
		"client_id", client.ID,
		"session", session,
		"remote_addr", r.RemoteAddr,
	)

	go client.WritePump()
	go client.ReadPump()
}
