package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andreval74/xcafe/internal/service"
)

// msgInvalidAuthentication is the only message a failed login produces,
// whatever the cause.
const msgInvalidAuthentication = "invalid authentication"

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a service error to an HTTP status and client message
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidSignature),
		errors.Is(err, service.ErrExpiredChallenge):
		return http.StatusUnauthorized, msgInvalidAuthentication
	case errors.Is(err, service.ErrInvalidCredential):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrInsufficientRank):
		return http.StatusForbidden, "insufficient rank"
	case errors.Is(err, service.ErrAlreadyInitialized):
		return http.StatusConflict, "system already initialized"
	case errors.Is(err, service.ErrAlreadyAdmin):
		return http.StatusConflict, "address is already an admin"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrInvalidRole):
		return http.StatusBadRequest, "invalid role"
	case errors.Is(err, service.ErrInvalidAddress):
		return http.StatusBadRequest, "invalid address"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (h *Handlers) writeError(c *gin.Context, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", zap.Error(err))
	} else {
		h.logger.Debug(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, ErrorResponse{Error: msg})
}
