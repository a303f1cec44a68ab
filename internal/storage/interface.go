package storage

import (
	"context"
	"errors"
	"time"

	"github.com/andreval74/xcafe/internal/domain"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotEmpty      = errors.New("registry not empty")
	ErrConflict      = errors.New("concurrent modification")
	ErrInvalidInput  = errors.New("invalid input")
)

// AdminStore defines the interface for the admin registry.
//
// CreateFirst, Create, Modify and Rekey are atomic with respect to every
// other mutation of the registry: implementations must not expose a window
// in which two concurrent callers both observe the precondition as satisfied
// or in which one write silently discards another.
type AdminStore interface {
	// Get retrieves an admin by address
	Get(ctx context.Context, address domain.Address) (*domain.AdminRecord, error)

	// GetAll retrieves all admins
	GetAll(ctx context.Context) ([]*domain.AdminRecord, error)

	// Count returns the number of registry entries
	Count(ctx context.Context) (int64, error)

	// CreateFirst inserts the admin only if the registry is empty.
	// Returns ErrNotEmpty otherwise.
	CreateFirst(ctx context.Context, admin *domain.AdminRecord) error

	// Create inserts the admin only if its address is not registered.
	// Returns ErrAlreadyExists otherwise.
	Create(ctx context.Context, admin *domain.AdminRecord) error

	// Modify applies fn to the current record for address and stores the
	// result in one atomic step. An error from fn aborts the write and is
	// returned as is. Returns ErrNotFound if address is absent.
	Modify(ctx context.Context, address domain.Address, fn func(*domain.AdminRecord) error) (*domain.AdminRecord, error)

	// Rekey moves the record stored under oldAddress to admin.Address.
	// Returns ErrNotFound if oldAddress is absent and ErrAlreadyExists if
	// the new address is taken.
	Rekey(ctx context.Context, oldAddress domain.Address, admin *domain.AdminRecord) error
}

// UserStore defines the interface for non-admin user records
type UserStore interface {
	// Get retrieves a user by address
	Get(ctx context.Context, address domain.Address) (*domain.UserRecord, error)

	// GetAll retrieves all users
	GetAll(ctx context.Context) ([]*domain.UserRecord, error)

	// Count returns the number of users
	Count(ctx context.Context) (int64, error)

	// Upsert atomically creates the user at now or refreshes its last-seen
	// time. created reports whether a new record was written.
	Upsert(ctx context.Context, address domain.Address, now time.Time) (created bool, err error)
}

// SystemStore holds the singleton system configuration
type SystemStore interface {
	// Get returns ErrNotFound before bootstrap
	Get(ctx context.Context) (*domain.SystemConfig, error)
	Put(ctx context.Context, cfg *domain.SystemConfig) error
}

// Store aggregates all storage interfaces
type Store interface {
	Admins() AdminStore
	Users() UserStore
	System() SystemStore

	// Reset removes every admin, user and the system configuration in a
	// single critical section, returning how many records were removed.
	Reset(ctx context.Context) (domain.ResetCounts, error)

	// Close closes the storage connection
	Close() error

	// Ping checks if the storage is alive
	Ping(ctx context.Context) error
}
