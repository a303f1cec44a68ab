package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andreval74/xcafe/internal/domain"
	"github.com/andreval74/xcafe/pkg/middleware"
)

// AdminListResponse wraps the registry listing
type AdminListResponse struct {
	Admins []*domain.AdminRecord `json:"admins"`
	Total  int                   `json:"total"`
}

// SetActiveRequest toggles an admin
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// PermissionsRequest replaces an admin's permission set
type PermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// ChangeWalletRequest names the SuperAdmin's new wallet
type ChangeWalletRequest struct {
	NewAddress string `json:"new_address" binding:"required"`
}

// ListAdmins returns every registry entry
// GET /api/admin/list
func (h *Handlers) ListAdmins(c *gin.Context) {
	admins, err := h.services.Admin.List(c.Request.Context())
	if err != nil {
		h.writeError(c, "List admins", err)
		return
	}
	c.JSON(http.StatusOK, AdminListResponse{Admins: admins, Total: len(admins)})
}

// RegisterAdmin creates a new admin on behalf of the caller
// POST /api/admin/register
func (h *Handlers) RegisterAdmin(c *gin.Context) {
	var req domain.CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "address is required"})
		return
	}

	admin, err := h.services.Resolver.CreateAdmin(c.Request.Context(), c.GetString(middleware.ContextToken), req)
	if err != nil {
		h.writeError(c, "Create admin", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "admin created",
		"admin":   admin,
	})
}

func (h *Handlers) addressParam(c *gin.Context) (domain.Address, bool) {
	addr, err := domain.ParseAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid address"})
		return "", false
	}
	return addr, true
}

// SetAdminActive enables or disables an admin
// POST /api/admin/:address/active
func (h *Handlers) SetAdminActive(c *gin.Context) {
	addr, ok := h.addressParam(c)
	if !ok {
		return
	}
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "active is required"})
		return
	}

	cred, _ := middleware.CredentialFrom(c)
	admin, err := h.services.Admin.SetActive(c.Request.Context(), cred, addr, *req.Active)
	if err != nil {
		h.writeError(c, "Set admin active", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": admin})
}

// UpdateAdminPermissions replaces an admin's permissions
// PUT /api/admin/:address/permissions
func (h *Handlers) UpdateAdminPermissions(c *gin.Context) {
	addr, ok := h.addressParam(c)
	if !ok {
		return
	}
	var req PermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	cred, _ := middleware.CredentialFrom(c)
	admin, err := h.services.Admin.UpdatePermissions(c.Request.Context(), cred, addr, req.Permissions)
	if err != nil {
		h.writeError(c, "Update admin permissions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": admin})
}

// ChangeWallet moves the SuperAdmin to a new wallet and ends the current
// session
// POST /api/admin/change-wallet
func (h *Handlers) ChangeWallet(c *gin.Context) {
	var req ChangeWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "new_address is required"})
		return
	}

	cred, _ := middleware.CredentialFrom(c)
	admin, err := h.services.Admin.ChangeWallet(c.Request.Context(), cred, req.NewAddress)
	if err != nil {
		h.writeError(c, "Change wallet", err)
		return
	}

	if err := h.services.Revocation.Revoke(c.Request.Context(), cred.ID, cred.ExpiresAt); err != nil {
		h.logger.Warn("Failed to revoke credential after wallet change", zap.String("jti", cred.ID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "wallet changed, authenticate with the new wallet",
		"new_address":     admin.Address,
		"requires_reauth": true,
		"admin":           admin,
	})
}
