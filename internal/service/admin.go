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

// AdminService manages existing registry entries
type AdminService struct {
	store  storage.Store
	events EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewAdminService creates a new admin service
func NewAdminService(store storage.Store, events EventPublisher, logger *zap.Logger) *AdminService {
	if events == nil {
		events = noopPublisher{}
	}
	return &AdminService{
		store:  store,
		events: events,
		logger: logger.Named("admin-service"),
		now:    time.Now,
	}
}

// List returns every admin, oldest first
func (s *AdminService) List(ctx context.Context) ([]*domain.AdminRecord, error) {
	admins, err := s.store.Admins().GetAll(ctx)
	if err != nil {
		return nil, storageError("list admins", err)
	}
	return admins, nil
}

// Get returns a single admin
func (s *AdminService) Get(ctx context.Context, address domain.Address) (*domain.AdminRecord, error) {
	admin, err := s.store.Admins().Get(ctx, address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageError("get admin", err)
	}
	return admin, nil
}

// authorizeChange applies the management hierarchy: a SuperAdmin may change
// any admin but itself, an Admin may change Moderators only.
func authorizeChange(actor *domain.Credential, target *domain.AdminRecord) error {
	switch actor.Role {
	case domain.RoleSuperAdmin:
		if target.Address.Equal(actor.Subject) {
			return fmt.Errorf("%w: cannot change own record", ErrForbidden)
		}
		return nil
	case domain.RoleAdmin:
		if target.Role != domain.RoleModerator {
			return ErrInsufficientRank
		}
		return nil
	default:
		return ErrForbidden
	}
}

// mutate authorizes and applies change to the stored record in one atomic
// store operation
func (s *AdminService) mutate(ctx context.Context, actor *domain.Credential, address domain.Address, change func(*domain.AdminRecord)) (*domain.AdminRecord, error) {
	if actor == nil {
		return nil, ErrForbidden
	}

	target, err := s.store.Admins().Modify(ctx, address, func(a *domain.AdminRecord) error {
		if err := authorizeChange(actor, a); err != nil {
			return err
		}
		change(a)
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, ErrForbidden), errors.Is(err, ErrInsufficientRank):
			return nil, err
		}
		return nil, storageError("update admin", err)
	}

	s.events.Publish(Event{Type: EventAdminUpdated, Actor: actor.Subject, Subject: address, Data: target, Time: s.now()})
	return target, nil
}

// SetActive enables or disables an admin. A disabled admin resolves to the
// inactive role on its next authentication.
func (s *AdminService) SetActive(ctx context.Context, actor *domain.Credential, address domain.Address, active bool) (*domain.AdminRecord, error) {
	admin, err := s.mutate(ctx, actor, address, func(a *domain.AdminRecord) {
		a.Active = active
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Admin status changed",
		zap.String("address", address.String()),
		zap.Bool("active", active),
		zap.String("actor", actor.Subject.String()),
	)
	return admin, nil
}

// UpdatePermissions replaces an admin's permission set
func (s *AdminService) UpdatePermissions(ctx context.Context, actor *domain.Credential, address domain.Address, permissions []string) (*domain.AdminRecord, error) {
	if permissions == nil {
		permissions = []string{}
	}
	perms := slices.Compact(slices.Sorted(slices.Values(permissions)))

	admin, err := s.mutate(ctx, actor, address, func(a *domain.AdminRecord) {
		a.Permissions = perms
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Admin permissions updated",
		zap.String("address", address.String()),
		zap.Strings("permissions", perms),
		zap.String("actor", actor.Subject.String()),
	)
	return admin, nil
}

// ChangeWallet moves the calling SuperAdmin's record to newAddress. The
// caller's existing credential names the old address and should be
// discarded.
func (s *AdminService) ChangeWallet(ctx context.Context, actor *domain.Credential, newAddress string) (*domain.AdminRecord, error) {
	if actor == nil || actor.Role != domain.RoleSuperAdmin {
		return nil, ErrForbidden
	}
	to, err := domain.ParseAddress(newAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if to.Equal(actor.Subject) {
		return nil, fmt.Errorf("%w: new address equals current address", ErrInvalidAddress)
	}

	current, err := s.Get(ctx, actor.Subject)
	if err != nil {
		return nil, err
	}

	now := s.now()
	moved := current.Clone()
	moved.Address = to
	moved.PreviousAddress = current.Address
	moved.WalletChangedAt = &now

	if err := s.store.Admins().Rekey(ctx, current.Address, moved); err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			return nil, ErrAlreadyAdmin
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, storageError("change wallet", err)
	}

	s.logger.Warn("SuperAdmin wallet changed",
		zap.String("from", current.Address.String()),
		zap.String("to", to.String()),
	)
	s.events.Publish(Event{Type: EventAdminUpdated, Actor: current.Address, Subject: to, Data: moved, Time: now})

	return moved, nil
}
