package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andreval74/xcafe/internal/domain"
	"github.com/andreval74/xcafe/internal/service"
	"github.com/andreval74/xcafe/internal/websocket"
)

func TestEventsWebSocket(t *testing.T) {
	env := newTestEnv(t, newTestConfig())
	superToken := env.setupSuperAdmin(t, newWallet(t))

	server := httptest.NewServer(env.router)
	defer server.Close()

	ws, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/events", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, ws.WriteJSON(websocket.ClientMessage{Token: superToken}))
	var ready websocket.ServerMessage
	require.NoError(t, ws.ReadJSON(&ready))
	require.Equal(t, websocket.TypeReady, ready.Type)
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	created := newWallet(t)
	env.createAdmin(t, superToken, created, domain.RoleModerator)

	var event service.Event
	require.NoError(t, ws.ReadJSON(&event))
	assert.Equal(t, service.EventAdminCreated, event.Type)
	assert.Equal(t, created.address, event.Subject)
}

func TestEventsWebSocket_RevokedCredential(t *testing.T) {
	env := newTestEnv(t, newTestConfig())
	superToken := env.setupSuperAdmin(t, newWallet(t))

	w := env.do(t, http.MethodPost, "/api/auth/logout", superToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	server := httptest.NewServer(env.router)
	defer server.Close()

	ws, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/events", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, ws.WriteJSON(websocket.ClientMessage{Token: superToken}))
	var msg websocket.ServerMessage
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, websocket.TypeError, msg.Type)
	assert.Equal(t, websocket.ErrHandshakeFailed.Error(), msg.Error)
	assert.Zero(t, env.hub.ClientCount())
}

func TestEventsWebSocket_Unavailable(t *testing.T) {
	h := NewHandlers(nil, nil, nil, zap.NewNop())
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/ws/events", nil)
	h.EventsWebSocket(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
