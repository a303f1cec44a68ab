package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/andreval74/xcafe/internal/domain"
	"github.com/andreval74/xcafe/internal/service"
)

var (
	ErrNotAdmin        = errors.New("credential does not hold an admin role")
	ErrHandshakeFailed = errors.New("handshake failed")
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
	sendBuffer       = 32
)

// Control message types sent by the hub
const (
	TypeReady = "ready"
	TypeError = "error"
)

// ClientMessage is the handshake a client sends after connecting
type ClientMessage struct {
	Token string `json:"token"`
}

// ServerMessage is a control message from the hub. Events are sent as
// service.Event values.
type ServerMessage struct {
	Type    string         `json:"type"`
	Address domain.Address `json:"address,omitempty"`
	Role    domain.Role    `json:"role,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// CredentialVerifier decodes handshake tokens
type CredentialVerifier interface {
	Verify(token string) (*domain.Credential, error)
}

// RevocationChecker reports whether a credential was revoked by logout
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type client struct {
	id      string
	conn    *websocket.Conn
	address domain.Address
	role    domain.Role
	send    chan []byte
}

// Hub pushes registry events to connected admin sessions. It implements
// service.EventPublisher.
type Hub struct {
	verifier CredentialVerifier
	revoked  RevocationChecker
	logger   *zap.Logger
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[string]*client // connection id -> client
	closed    bool
}

var _ service.EventPublisher = (*Hub)(nil)

// NewHub creates a hub. revoked may be nil; allowedOrigins empty accepts
// any origin.
func NewHub(verifier CredentialVerifier, revoked RevocationChecker, allowedOrigins []string, logger *zap.Logger) *Hub {
	h := &Hub{
		verifier: verifier,
		revoked:  revoked,
		logger:   logger.Named("events-hub"),
		clients:  make(map[string]*client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// HandleConnection upgrades the request and runs the handshake
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	c, err := h.handshake(r.Context(), conn)
	if err != nil {
		h.logger.Info("Events handshake rejected", zap.Error(err))
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = conn.WriteJSON(ServerMessage{Type: TypeError, Error: err.Error()})
		_ = conn.Close()
		return
	}

	if !h.register(c) {
		_ = conn.Close()
		return
	}
	h.logger.Info("Events client connected",
		zap.String("address", c.address.String()),
		zap.String("role", c.role.String()),
	)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) handshake(ctx context.Context, conn *websocket.Conn) (*client, error) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	var msg ClientMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return nil, ErrHandshakeFailed
	}
	cred, err := h.verifier.Verify(msg.Token)
	if err != nil {
		return nil, ErrHandshakeFailed
	}
	if h.revoked != nil {
		revoked, err := h.revoked.IsRevoked(ctx, cred.ID)
		if err != nil {
			h.logger.Error("Failed to check revocation", zap.String("jti", cred.ID), zap.Error(err))
			return nil, ErrHandshakeFailed
		}
		if revoked {
			return nil, ErrHandshakeFailed
		}
	}
	if !cred.Role.IsAdminRole() {
		return nil, ErrNotAdmin
	}

	c := &client{
		id:      uuid.NewString(),
		conn:    conn,
		address: cred.Subject,
		role:    cred.Role,
		send:    make(chan []byte, sendBuffer),
	}
	ready, err := json.Marshal(ServerMessage{Type: TypeReady, Address: c.address, Role: c.role})
	if err != nil {
		return nil, err
	}
	c.send <- ready
	return c, nil
}

func (h *Hub) register(c *client) bool {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

func (h *Hub) unregister(c *client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
}

// readPump discards client messages and keeps the read deadline alive
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
		h.logger.Info("Events client disconnected", zap.String("address", c.address.String()))
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish fans an event out to every connected client. A client whose
// buffer is full misses the event.
func (h *Hub) Publish(event service.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to encode event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("Dropping event for slow client",
				zap.String("type", string(event.Type)),
				zap.String("address", c.address.String()),
			)
		}
	}
}

// ClientCount returns the number of connected sessions
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new sessions
func (h *Hub) Close() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}
