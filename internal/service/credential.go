package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/andreval74/xcafe/internal/domain"
)

// CredentialIssuer signs and verifies HS256 credentials.
// The secret is fixed at construction and never changes afterwards.
type CredentialIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

type credentialClaims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// NewCredentialIssuer creates an issuer for the given signing secret
func NewCredentialIssuer(secret, issuer string) *CredentialIssuer {
	return &CredentialIssuer{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// Issue creates a credential for address with a fixed 24h lifetime
func (i *CredentialIssuer) Issue(address domain.Address, role domain.Role) (*domain.Credential, error) {
	now := i.now().Truncate(time.Second)
	cred := &domain.Credential{
		ID:        uuid.NewString(),
		Subject:   address,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: now.Add(domain.CredentialValidity),
	}

	claims := credentialClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        cred.ID,
			Subject:   address.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(cred.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(cred.ExpiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign credential: %w", err)
	}
	cred.Token = token
	return cred, nil
}

// Verify checks signature, issuer and expiry of a credential token.
// It is a pure function of the token and never consults storage.
func (i *CredentialIssuer) Verify(token string) (*domain.Credential, error) {
	if token == "" {
		return nil, ErrInvalidCredential
	}

	var claims credentialClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", ErrInvalidCredential)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	address, err := domain.ParseAddress(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject: %w", ErrInvalidCredential, err)
	}
	role, err := domain.ParseRole(string(claims.Role))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	if claims.ID == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalidCredential)
	}

	return &domain.Credential{
		ID:        claims.ID,
		Subject:   address,
		Role:      role,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		Token:     token,
	}, nil
}
