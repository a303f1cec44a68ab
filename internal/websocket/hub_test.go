package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andreval74/xcafe/internal/domain"
	"github.com/andreval74/xcafe/internal/service"
)

const testSecret = "hub-test-secret-0123456789abcdef0123456"

var testAddress = domain.MustParseAddress("0x52908400098527886e0f7030069857d2e4169ee7")

func newTestHub(t *testing.T) (*Hub, *service.CredentialIssuer, string) {
	t.Helper()
	issuer := service.NewCredentialIssuer(testSecret, "xcafe")
	hub := NewHub(issuer, nil, nil, zap.NewNop())

	server := httptest.NewServer(http.HandlerFunc(hub.HandleConnection))
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, issuer, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readServerMessage(t *testing.T, ws *websocket.Conn) ServerMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg ServerMessage
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func connectAs(t *testing.T, issuer *service.CredentialIssuer, wsURL string, role domain.Role) *websocket.Conn {
	t.Helper()
	cred, err := issuer.Issue(testAddress, role)
	require.NoError(t, err)

	ws := dial(t, wsURL)
	require.NoError(t, ws.WriteJSON(ClientMessage{Token: cred.Token}))
	return ws
}

func TestHub_HandshakeAdmin(t *testing.T) {
	hub, issuer, wsURL := newTestHub(t)

	ws := connectAs(t, issuer, wsURL, domain.RoleModerator)
	msg := readServerMessage(t, ws)
	assert.Equal(t, TypeReady, msg.Type)
	assert.Equal(t, testAddress, msg.Address)
	assert.Equal(t, domain.RoleModerator, msg.Role)

	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHub_HandshakeRejected(t *testing.T) {
	hub, issuer, wsURL := newTestHub(t)

	t.Run("non-admin role", func(t *testing.T) {
		ws := connectAs(t, issuer, wsURL, domain.RoleNormal)
		msg := readServerMessage(t, ws)
		assert.Equal(t, TypeError, msg.Type)
		assert.Equal(t, ErrNotAdmin.Error(), msg.Error)
	})

	t.Run("invalid token", func(t *testing.T) {
		ws := dial(t, wsURL)
		require.NoError(t, ws.WriteJSON(ClientMessage{Token: "garbage"}))
		msg := readServerMessage(t, ws)
		assert.Equal(t, TypeError, msg.Type)
	})

	t.Run("malformed handshake", func(t *testing.T) {
		ws := dial(t, wsURL)
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
		msg := readServerMessage(t, ws)
		assert.Equal(t, TypeError, msg.Type)
	})

	assert.Equal(t, 0, hub.ClientCount())
}

type revokedSet map[string]bool

func (r revokedSet) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return r[jti], nil
}

func TestHub_HandshakeRevoked(t *testing.T) {
	issuer := service.NewCredentialIssuer(testSecret, "xcafe")
	revoked, err := issuer.Issue(testAddress, domain.RoleAdmin)
	require.NoError(t, err)
	live, err := issuer.Issue(testAddress, domain.RoleAdmin)
	require.NoError(t, err)

	hub := NewHub(issuer, revokedSet{revoked.ID: true}, nil, zap.NewNop())
	server := httptest.NewServer(http.HandlerFunc(hub.HandleConnection))
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ws := dial(t, wsURL)
	require.NoError(t, ws.WriteJSON(ClientMessage{Token: revoked.Token}))
	msg := readServerMessage(t, ws)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, ErrHandshakeFailed.Error(), msg.Error)

	ws = dial(t, wsURL)
	require.NoError(t, ws.WriteJSON(ClientMessage{Token: live.Token}))
	assert.Equal(t, TypeReady, readServerMessage(t, ws).Type)
}

func TestHub_Publish(t *testing.T) {
	hub, issuer, wsURL := newTestHub(t)

	first := connectAs(t, issuer, wsURL, domain.RoleSuperAdmin)
	second := connectAs(t, issuer, wsURL, domain.RoleAdmin)
	readServerMessage(t, first)
	readServerMessage(t, second)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.Publish(service.Event{
		Type:    service.EventAdminCreated,
		Actor:   testAddress,
		Subject: domain.MustParseAddress("0x0000000000000000000000000000000000000001"),
		Time:    time.Now(),
	})

	for _, ws := range []*websocket.Conn{first, second} {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)

		var event service.Event
		require.NoError(t, json.Unmarshal(data, &event))
		assert.Equal(t, service.EventAdminCreated, event.Type)
		assert.Equal(t, testAddress, event.Actor)
	}
}

func TestHub_Disconnect(t *testing.T) {
	hub, issuer, wsURL := newTestHub(t)

	ws := connectAs(t, issuer, wsURL, domain.RoleAdmin)
	readServerMessage(t, ws)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	// publishing with no clients is a no-op
	hub.Publish(service.Event{Type: service.EventSystemReset})
}

func TestHub_Close(t *testing.T) {
	hub, issuer, wsURL := newTestHub(t)

	ws := connectAs(t, issuer, wsURL, domain.RoleAdmin)
	readServerMessage(t, ws)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://admin.example"})

	req := httptest.NewRequest(http.MethodGet, "/ws/events", nil)
	assert.True(t, check(req), "requests without Origin are allowed")

	req.Header.Set("Origin", "https://admin.example")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker(nil)(req))
}
