package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andreval74/xcafe/internal/domain"
)

// Context keys set by AuthMiddleware
const (
	ContextAddress    = "address"
	ContextRole       = "role"
	ContextCredential = "credential"
	ContextToken      = "token"
)

// CredentialVerifier decodes a bearer credential
type CredentialVerifier interface {
	Verify(token string) (*domain.Credential, error)
}

// RevocationChecker reports whether a credential ID was revoked by logout
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// AuthMiddleware validates the credential and sets address, role, credential
// and token in the request context. revoked may be nil.
func AuthMiddleware(verifier CredentialVerifier, revoked RevocationChecker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		tokenString, ok := BearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		cred, err := verifier.Verify(tokenString)
		if err != nil {
			logger.Debug("Credential rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		if revoked != nil {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), cred.ID)
			if err != nil {
				logger.Error("Failed to check revocation", zap.String("jti", cred.ID), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				return
			}
			if isRevoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token revoked"})
				return
			}
		}

		c.Set(ContextAddress, cred.Subject)
		c.Set(ContextRole, cred.Role)
		c.Set(ContextCredential, cred)
		c.Set(ContextToken, tokenString)

		c.Next()
	}
}

// RequireRoles rejects requests whose credential role is not in roles.
// Must run after AuthMiddleware.
func RequireRoles(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, ok := CredentialFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !slices.Contains(roles, cred.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient role"})
			return
		}
		c.Next()
	}
}

// CredentialFrom returns the credential stored by AuthMiddleware
func CredentialFrom(c *gin.Context) (*domain.Credential, bool) {
	v, ok := c.Get(ContextCredential)
	if !ok {
		return nil, false
	}
	cred, ok := v.(*domain.Credential)
	return cred, ok && cred != nil
}

// Logger returns a gin middleware for logging
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if addr, ok := c.Get(ContextAddress); ok {
			fields = append(fields, zap.Stringer("address", addr.(domain.Address)))
		}
		logger.Info("Request", fields...)
	}
}
