package api

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andreval74/xcafe/internal/domain"
	"github.com/andreval74/xcafe/internal/service"
	"github.com/andreval74/xcafe/internal/storage/memory"
	"github.com/andreval74/xcafe/internal/websocket"
	"github.com/andreval74/xcafe/pkg/config"
)

const testSecret = "api-test-secret-0123456789abcdef01234567"

func init() {
	gin.SetMode(gin.TestMode)
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address domain.Address
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key: key, address: domain.MustParseAddress(crypto.PubkeyToAddress(key.PublicKey).Hex())}
}

func (w wallet) loginRequest(t *testing.T, at time.Time) domain.AuthenticateRequest {
	t.Helper()
	msg := "xcafe login " + at.Format(time.RFC3339Nano)
	sig, err := crypto.Sign(service.PersonalMessageHash(msg), w.key)
	require.NoError(t, err)
	sig[64] += 27
	return domain.AuthenticateRequest{
		Address:   w.address.String(),
		Message:   msg,
		Signature: "0x" + hex.EncodeToString(sig),
		Timestamp: at.UnixMilli(),
	}
}

type testEnv struct {
	store    *memory.Store
	services *service.Services
	hub      *websocket.Hub
	router   *gin.Engine
}

func newTestConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{Secret: testSecret, Issuer: "xcafe-test"},
	}
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	revocation, err := service.NewRevocationList(cfg.Revocation, logger)
	require.NoError(t, err)
	hub := websocket.NewHub(service.NewCredentialIssuer(cfg.JWT.Secret, cfg.JWT.Issuer), revocation, nil, logger)

	services, err := service.NewServices(store, cfg, hub, logger, service.WithRevocationList(revocation))
	require.NoError(t, err)
	services.Start()
	t.Cleanup(func() {
		hub.Close()
		services.Stop()
	})

	return &testEnv{
		store:    store,
		services: services,
		hub:      hub,
		router:   NewRouter(cfg, services, store, hub, logger),
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// login authenticates w and returns the response
func (e *testEnv) login(t *testing.T, w wallet) domain.AuthenticateResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/verify", "", w.loginRequest(t, time.Now()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[domain.AuthenticateResponse](t, rec)
}

// setupSuperAdmin bootstraps w and returns a SuperAdmin token
func (e *testEnv) setupSuperAdmin(t *testing.T, w wallet) string {
	t.Helper()
	candidate := e.login(t, w)
	require.Equal(t, domain.RoleFirstAdminCandidate, candidate.Role)

	rec := e.do(t, http.MethodPost, "/api/system/setup", candidate.Token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	res := e.login(t, w)
	require.Equal(t, domain.RoleSuperAdmin, res.Role)
	return res.Token
}

func (e *testEnv) createAdmin(t *testing.T, token string, w wallet, role domain.Role) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/admin/register", token, domain.CreateAdminRequest{
		Address: w.address.String(),
		Role:    role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}
