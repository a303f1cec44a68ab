package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/andreval74/xcafe/internal/domain"
	"github.com/andreval74/xcafe/internal/storage"
)

// ChallengeWindow bounds how far a signed timestamp may be from the
// server clock, in either direction.
const ChallengeWindow = 5 * time.Minute

// AuthResult is the outcome of a successful authentication
type AuthResult struct {
	Address     domain.Address
	Role        domain.Role
	Credential  *domain.Credential
	Permissions []string
}

// WalletAuthResolver authenticates wallet signatures, classifies callers
// and gates the registry operations behind issued credentials.
type WalletAuthResolver struct {
	store    storage.Store
	verifier SignatureVerifier
	issuer   *CredentialIssuer
	events   EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// ResolverOption customizes a WalletAuthResolver
type ResolverOption func(*WalletAuthResolver)

// WithClock replaces the wall clock used for the challenge window and timestamps
func WithClock(now func() time.Time) ResolverOption {
	return func(r *WalletAuthResolver) { r.now = now }
}

// WithEventPublisher sets the sink for registry events
func WithEventPublisher(p EventPublisher) ResolverOption {
	return func(r *WalletAuthResolver) {
		if p != nil {
			r.events = p
		}
	}
}

// NewWalletAuthResolver creates a resolver over store
func NewWalletAuthResolver(store storage.Store, verifier SignatureVerifier, issuer *CredentialIssuer, logger *zap.Logger, opts ...ResolverOption) *WalletAuthResolver {
	r := &WalletAuthResolver{
		store:    store,
		verifier: verifier,
		issuer:   issuer,
		events:   noopPublisher{},
		logger:   logger.Named("auth-resolver"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Authenticate verifies a signed login and issues a credential for the
// resolved role. Failure paths leave the store untouched.
func (r *WalletAuthResolver) Authenticate(ctx context.Context, req domain.AuthenticateRequest) (*AuthResult, error) {
	address, err := domain.ParseAddress(req.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	sig, err := DecodeSignature(req.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	recovered, err := r.verifier.RecoverAddress(req.Message, sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if !recovered.Equal(address) {
		r.logger.Debug("Signature recovered a different address",
			zap.String("claimed", address.String()),
			zap.String("recovered", recovered.String()),
		)
		return nil, ErrInvalidSignature
	}

	now := r.now()
	skew := now.Sub(time.UnixMilli(req.Timestamp))
	if skew > ChallengeWindow || skew < -ChallengeWindow {
		return nil, ErrExpiredChallenge
	}

	role, permissions, err := r.resolveRole(ctx, address, now)
	if err != nil {
		return nil, err
	}

	cred, err := r.issuer.Issue(address, role)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Wallet authenticated",
		zap.String("address", address.String()),
		zap.String("role", role.String()),
	)

	return &AuthResult{
		Address:     address,
		Role:        role,
		Credential:  cred,
		Permissions: permissions,
	}, nil
}

// resolveRole applies the classification order: registry entry (active or
// not), then empty registry, then normal user.
func (r *WalletAuthResolver) resolveRole(ctx context.Context, address domain.Address, now time.Time) (domain.Role, []string, error) {
	admin, err := r.store.Admins().Get(ctx, address)
	switch {
	case err == nil:
		if !admin.Active {
			return domain.RoleInactive, []string{}, nil
		}
		return admin.Role, slices.Clone(admin.Permissions), nil
	case !errors.Is(err, storage.ErrNotFound):
		return "", nil, storageError("get admin", err)
	}

	count, err := r.store.Admins().Count(ctx)
	if err != nil {
		return "", nil, storageError("count admins", err)
	}
	if count == 0 {
		return domain.RoleFirstAdminCandidate, []string{}, nil
	}

	created, err := r.store.Users().Upsert(ctx, address, now)
	if err != nil {
		return "", nil, storageError("upsert user", err)
	}
	if created {
		r.events.Publish(Event{Type: EventUserRegistered, Subject: address, Time: now})
	}
	return domain.RoleNormal, []string{}, nil
}

// Verify decodes a credential token. It never consults the store.
func (r *WalletAuthResolver) Verify(token string) (*domain.Credential, error) {
	return r.issuer.Verify(token)
}

// BootstrapFirstAdmin promotes address to SuperAdmin if and only if the
// registry is empty at the moment of the write.
func (r *WalletAuthResolver) BootstrapFirstAdmin(ctx context.Context, address domain.Address) (*domain.AdminRecord, error) {
	address, err := domain.ParseAddress(address.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	now := r.now()
	admin := domain.NewSuperAdmin(address, now)
	if err := r.store.Admins().CreateFirst(ctx, admin); err != nil {
		if errors.Is(err, storage.ErrNotEmpty) {
			return nil, ErrAlreadyInitialized
		}
		return nil, storageError("create first admin", err)
	}

	if err := r.store.System().Put(ctx, domain.NewSystemConfig(address, now)); err != nil {
		// The registry is initialized regardless; the config is informational.
		r.logger.Error("Failed to write system config", zap.Error(err))
	}

	r.logger.Info("System initialized",
		zap.String("super_admin", address.String()),
	)
	r.events.Publish(Event{Type: EventSystemInitialized, Actor: address, Subject: address, Time: now})

	return admin, nil
}

// CreateAdmin adds an admin on behalf of the holder of creatorToken
func (r *WalletAuthResolver) CreateAdmin(ctx context.Context, creatorToken string, req domain.CreateAdminRequest) (*domain.AdminRecord, error) {
	creator, err := r.issuer.Verify(creatorToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrForbidden, err)
	}
	if creator.Role != domain.RoleSuperAdmin && creator.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	address, err := domain.ParseAddress(req.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	role := req.Role
	if role == "" {
		role = domain.RoleModerator
	}
	if !role.IsAdminRole() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if !creator.Role.CanCreate(role) {
		return nil, ErrInsufficientRank
	}

	name := req.Name
	if name == "" {
		name = "Admin " + address.Short()
	}
	permissions := req.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	now := r.now()
	admin := &domain.AdminRecord{
		Address:     address,
		Role:        role,
		Name:        name,
		Department:  req.Department,
		JobTitle:    domain.JobTitleFor(role, req.Department),
		Permissions: slices.Clone(permissions),
		Active:      true,
		CreatedAt:   now,
		CreatedBy:   creator.Subject.String(),
		UpdatedAt:   now,
	}

	if err := r.store.Admins().Create(ctx, admin); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrAlreadyAdmin
		}
		return nil, storageError("create admin", err)
	}

	r.logger.Info("Admin created",
		zap.String("address", address.String()),
		zap.String("role", role.String()),
		zap.String("created_by", creator.Subject.String()),
	)
	r.events.Publish(Event{Type: EventAdminCreated, Actor: creator.Subject, Subject: address, Data: admin, Time: now})

	return admin, nil
}

// ResetSystem clears the registry, the users and the system configuration.
// Only a SuperAdmin credential may do so.
func (r *WalletAuthResolver) ResetSystem(ctx context.Context, token string) (*domain.ResetCounts, error) {
	cred, err := r.issuer.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrForbidden, err)
	}
	if cred.Role != domain.RoleSuperAdmin {
		return nil, ErrForbidden
	}

	counts, err := r.store.Reset(ctx)
	if err != nil {
		return nil, storageError("reset", err)
	}

	r.logger.Warn("System reset",
		zap.String("actor", cred.Subject.String()),
		zap.Int64("admins_removed", counts.Admins),
		zap.Int64("users_removed", counts.Users),
		zap.Int64("config_removed", counts.Config),
	)
	r.events.Publish(Event{Type: EventSystemReset, Actor: cred.Subject, Data: counts, Time: r.now()})

	return &counts, nil
}
