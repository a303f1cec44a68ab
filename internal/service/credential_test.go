package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreval74/xcafe/internal/domain"
)

var credAddr = domain.MustParseAddress("0xabcabcabcabcabcabcabcabcabcabcabcabc1230")

func TestCredentialIssuer_IssueVerify(t *testing.T) {
	issuer := NewCredentialIssuer(testSecret, "xcafe-test")

	cred, err := issuer.Issue(credAddr, domain.RoleAdmin)
	require.NoError(t, err)
	assert.NotEmpty(t, cred.ID)
	assert.NotEmpty(t, cred.Token)
	assert.Equal(t, domain.CredentialValidity, cred.ExpiresAt.Sub(cred.IssuedAt))

	got, err := issuer.Verify(cred.Token)
	require.NoError(t, err)
	assert.Equal(t, cred.ID, got.ID)
	assert.Equal(t, credAddr, got.Subject)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.True(t, got.ExpiresAt.Equal(cred.ExpiresAt))
	assert.True(t, got.IssuedAt.Equal(cred.IssuedAt))
}

func TestCredentialIssuer_UniqueIDs(t *testing.T) {
	issuer := NewCredentialIssuer(testSecret, "xcafe-test")
	a, err := issuer.Issue(credAddr, domain.RoleNormal)
	require.NoError(t, err)
	b, err := issuer.Issue(credAddr, domain.RoleNormal)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestCredentialIssuer_Expiry(t *testing.T) {
	issuer := NewCredentialIssuer(testSecret, "xcafe-test")
	start := time.Now()
	issuer.now = func() time.Time { return start }

	cred, err := issuer.Issue(credAddr, domain.RoleNormal)
	require.NoError(t, err)

	issuer.now = func() time.Time { return start.Add(23 * time.Hour) }
	_, err = issuer.Verify(cred.Token)
	assert.NoError(t, err)

	issuer.now = func() time.Time { return start.Add(25 * time.Hour) }
	_, err = issuer.Verify(cred.Token)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestCredentialIssuer_Rejects(t *testing.T) {
	issuer := NewCredentialIssuer(testSecret, "xcafe-test")
	cred, err := issuer.Issue(credAddr, domain.RoleSuperAdmin)
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := issuer.Verify("")
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewCredentialIssuer("another-secret-0123456789abcdef012345", "xcafe-test")
		_, err := other.Verify(cred.Token)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("other issuer", func(t *testing.T) {
		other := NewCredentialIssuer(testSecret, "someone-else")
		_, err := other.Verify(cred.Token)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("tampered payload", func(t *testing.T) {
		tampered := []byte(cred.Token)
		tampered[len(tampered)/2] ^= 0x01
		_, err := issuer.Verify(string(tampered))
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("none algorithm", func(t *testing.T) {
		claims := jwt.MapClaims{
			"sub":  credAddr.String(),
			"role": "super_admin",
			"iss":  "xcafe-test",
			"jti":  "x",
			"iat":  time.Now().Unix(),
			"exp":  time.Now().Add(time.Hour).Unix(),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = issuer.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("unknown role", func(t *testing.T) {
		claims := jwt.MapClaims{
			"sub":  credAddr.String(),
			"role": "root",
			"iss":  "xcafe-test",
			"jti":  "x",
			"iat":  time.Now().Unix(),
			"exp":  time.Now().Add(time.Hour).Unix(),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = issuer.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("missing expiry", func(t *testing.T) {
		claims := jwt.MapClaims{
			"sub":  credAddr.String(),
			"role": "admin",
			"iss":  "xcafe-test",
			"jti":  "x",
			"iat":  time.Now().Unix(),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = issuer.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})
}
