package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andreval74/xcafe/internal/domain"
	"github.com/andreval74/xcafe/internal/service"
	"github.com/andreval74/xcafe/internal/storage"
	"github.com/andreval74/xcafe/internal/websocket"
	"github.com/andreval74/xcafe/pkg/middleware"
)

// Handlers aggregates all HTTP handlers
type Handlers struct {
	services *service.Services
	store    storage.Store
	hub      *websocket.Hub
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance. hub may be nil, in which case
// the events endpoint answers 503.
func NewHandlers(services *service.Services, store storage.Store, hub *websocket.Hub, logger *zap.Logger) *Handlers {
	return &Handlers{
		services: services,
		store:    store,
		hub:      hub,
		logger:   logger.Named("handlers"),
	}
}

// Status handles the /status endpoint
func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status:       "ok",
		Service:      "xcafe",
		Version:      domain.SystemVersion,
		APIVersion:   CurrentAPIVersion,
		Capabilities: APICapabilities[CurrentAPIVersion],
	})
}

// Health reports liveness including storage reachability
// GET /api/health
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Storage ping failed", zap.Error(err))
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"service":   "xcafe",
		"version":   domain.SystemVersion,
		"timestamp": time.Now().UTC(),
	})
}

// SystemStatus reports whether the registry has been bootstrapped
// GET /api/system/status
func (h *Handlers) SystemStatus(c *gin.Context) {
	status, err := h.services.System.Status(c.Request.Context())
	if err != nil {
		h.writeError(c, "System status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Stats returns public registry counters
// GET /api/stats
func (h *Handlers) Stats(c *gin.Context) {
	stats, err := h.services.System.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, "System stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Authenticate verifies a signed login and issues a credential
// POST /api/auth/verify
func (h *Handlers) Authenticate(c *gin.Context) {
	var req domain.AuthenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "address, message, signature and timestamp are required"})
		return
	}

	res, err := h.services.Resolver.Authenticate(c.Request.Context(), req)
	if err != nil {
		// a malformed login address is indistinguishable from a bad signature
		if errors.Is(err, service.ErrInvalidAddress) {
			err = service.ErrInvalidSignature
		}
		h.writeError(c, "Authentication", err)
		return
	}

	c.JSON(http.StatusOK, domain.AuthenticateResponse{
		Address:     res.Address,
		Role:        res.Role,
		Token:       res.Credential.Token,
		ExpiresAt:   res.Credential.ExpiresAt,
		Permissions: res.Permissions,
	})
}

// Me returns the decoded credential of the caller
// GET /api/auth/me
func (h *Handlers) Me(c *gin.Context) {
	cred, _ := middleware.CredentialFrom(c)
	c.JSON(http.StatusOK, cred)
}

// Logout revokes the caller's credential
// POST /api/auth/logout
func (h *Handlers) Logout(c *gin.Context) {
	cred, _ := middleware.CredentialFrom(c)
	if err := h.services.Revocation.Revoke(c.Request.Context(), cred.ID, cred.ExpiresAt); err != nil {
		h.logger.Error("Failed to revoke credential", zap.String("jti", cred.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to logout"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// SetupRequest optionally names the address to promote; it must match the
// caller's credential.
type SetupRequest struct {
	Address string `json:"address"`
}

// SetupSystem promotes the first-admin candidate to SuperAdmin
// POST /api/system/setup
func (h *Handlers) SetupSystem(c *gin.Context) {
	cred, _ := middleware.CredentialFrom(c)

	var req SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Address != "" {
		addr, err := domain.ParseAddress(req.Address)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid address"})
			return
		}
		if !addr.Equal(cred.Subject) {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "address does not match credential"})
			return
		}
	}

	admin, err := h.services.Resolver.BootstrapFirstAdmin(c.Request.Context(), cred.Subject)
	if err != nil {
		h.writeError(c, "System setup", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":         "system initialized",
		"admin":           admin,
		"requires_reauth": true,
	})
}

// ResetSystem wipes the registry
// POST /api/system/reset
func (h *Handlers) ResetSystem(c *gin.Context) {
	counts, err := h.services.Resolver.ResetSystem(c.Request.Context(), c.GetString(middleware.ContextToken))
	if err != nil {
		h.writeError(c, "System reset", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "system reset",
		"removed": counts,
	})
}

// EventsWebSocket upgrades to the admin event stream. Authentication happens
// in the websocket handshake.
// GET /ws/events
func (h *Handlers) EventsWebSocket(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "event stream not available"})
		return
	}
	h.hub.HandleConnection(c.Writer, c.Request)
}
