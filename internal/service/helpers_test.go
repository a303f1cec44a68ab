package service

import (
	"crypto/ecdsa"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andreval74/xcafe/internal/domain"
	"github.com/andreval74/xcafe/internal/storage/memory"
)

const testSecret = "test-secret-0123456789abcdef0123456789"

type wallet struct {
	key     *ecdsa.PrivateKey
	address domain.Address
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr, err := domain.ParseAddress(crypto.PubkeyToAddress(key.PublicKey).Hex())
	require.NoError(t, err)
	return wallet{key: key, address: addr}
}

// signRaw returns the 65-byte personal_sign signature with V in {27,28}
func (w wallet) signRaw(t *testing.T, message string) []byte {
	t.Helper()
	sig, err := crypto.Sign(PersonalMessageHash(message), w.key)
	require.NoError(t, err)
	sig[64] += 27
	return sig
}

func (w wallet) sign(t *testing.T, message string) string {
	return "0x" + hex.EncodeToString(w.signRaw(t, message))
}

// login builds a signed authentication request at instant at
func (w wallet) login(t *testing.T, at time.Time) domain.AuthenticateRequest {
	msg := "login:" + at.Format(time.RFC3339Nano)
	return domain.AuthenticateRequest{
		Address:   w.address.String(),
		Message:   msg,
		Signature: w.sign(t, msg),
		Timestamp: at.UnixMilli(),
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store    *memory.Store
	issuer   *CredentialIssuer
	resolver *WalletAuthResolver
	events   *recordingPublisher
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.NewStore(),
		issuer: NewCredentialIssuer(testSecret, "xcafe-test"),
		events: &recordingPublisher{},
		now:    time.Now().Truncate(time.Millisecond),
	}
	f.resolver = NewWalletAuthResolver(f.store, NewEthereumVerifier(), f.issuer, zap.NewNop(),
		WithClock(func() time.Time { return f.now }),
		WithEventPublisher(f.events),
	)
	return f
}

// authenticate signs a fresh login for w and returns the result
func (f *fixture) authenticate(t *testing.T, w wallet) *AuthResult {
	t.Helper()
	res, err := f.resolver.Authenticate(t.Context(), w.login(t, f.now))
	require.NoError(t, err)
	return res
}

// bootstrap makes w the SuperAdmin and returns a SuperAdmin credential
func (f *fixture) bootstrap(t *testing.T, w wallet) *AuthResult {
	t.Helper()
	_, err := f.resolver.BootstrapFirstAdmin(t.Context(), w.address)
	require.NoError(t, err)
	res := f.authenticate(t, w)
	require.Equal(t, domain.RoleSuperAdmin, res.Role)
	return res
}

func deactivate(a *domain.AdminRecord) error {
	a.Active = false
	return nil
}
