package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/andreval74/xcafe/internal/storage"
	"github.com/andreval74/xcafe/pkg/config"
)

// Services aggregates all application services
type Services struct {
	Resolver   *WalletAuthResolver
	Credential *CredentialIssuer
	Admin      *AdminService
	System     *SystemService
	Revocation RevocationList
}

// ServicesOption customizes NewServices
type ServicesOption func(*Services)

// WithRevocationList shares an existing revocation list instead of building
// one from the configuration
func WithRevocationList(rl RevocationList) ServicesOption {
	return func(s *Services) { s.Revocation = rl }
}

// NewServices creates a new Services instance. events may be nil.
func NewServices(store storage.Store, cfg *config.Config, events EventPublisher, logger *zap.Logger, opts ...ServicesOption) (*Services, error) {
	if events == nil {
		events = noopPublisher{}
	}

	var preset Services
	for _, opt := range opts {
		opt(&preset)
	}
	revocation := preset.Revocation
	if revocation == nil {
		var err error
		revocation, err = NewRevocationList(cfg.Revocation, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create revocation list: %w", err)
		}
	}

	issuer := NewCredentialIssuer(cfg.JWT.Secret, cfg.JWT.Issuer)

	return &Services{
		Resolver:   NewWalletAuthResolver(store, NewEthereumVerifier(), issuer, logger, WithEventPublisher(events)),
		Credential: issuer,
		Admin:      NewAdminService(store, events, logger),
		System:     NewSystemService(store, logger),
		Revocation: revocation,
	}, nil
}

// Start starts background workers
func (s *Services) Start() {
	if s.Revocation != nil {
		s.Revocation.Start()
	}
}

// Stop gracefully stops background workers
func (s *Services) Stop() {
	if s.Revocation != nil {
		s.Revocation.Stop()
	}
}
