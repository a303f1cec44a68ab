package domain

import "time"

// CredentialValidity is the fixed lifetime of an issued credential
const CredentialValidity = 24 * time.Hour

// Credential is a time-limited proof of an authenticated address and role.
// It is immutable once issued; Token is its opaque serialized form.
type Credential struct {
	ID        string    `json:"id"`
	Subject   Address   `json:"address"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"-"`
}

// IsExpired checks if the credential has expired at the given instant
func (c *Credential) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// AuthenticateRequest is the signed login payload
type AuthenticateRequest struct {
	Address   string `json:"address" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	// Timestamp is the client's claimed signing time in Unix milliseconds
	Timestamp int64 `json:"timestamp" binding:"required"`
}

// AuthenticateResponse is returned on successful authentication
type AuthenticateResponse struct {
	Address     Address   `json:"address"`
	Role        Role      `json:"role"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Permissions []string  `json:"permissions"`
}
