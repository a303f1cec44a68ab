package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/andreval74/xcafe/internal/domain"
	"github.com/andreval74/xcafe/internal/storage"
)

// Store implements an in-memory storage.
//
// All sub-stores share one lock so that Reset and the conditional admin
// inserts observe a consistent view of every collection.
type Store struct {
	mu     sync.RWMutex
	admins *AdminStore
	users  *UserStore
	system *SystemStore
}

// NewStore creates a new in-memory store
func NewStore() *Store {
	s := &Store{}
	s.admins = &AdminStore{s: s, data: make(map[domain.Address]*domain.AdminRecord)}
	s.users = &UserStore{s: s, data: make(map[domain.Address]*domain.UserRecord)}
	s.system = &SystemStore{s: s}
	return s
}

func (s *Store) Admins() storage.AdminStore     { return s.admins }
func (s *Store) Users() storage.UserStore       { return s.users }
func (s *Store) System() storage.SystemStore    { return s.system }
func (s *Store) Close() error                   { return nil }
func (s *Store) Ping(ctx context.Context) error { return nil }

// Reset clears every collection
func (s *Store) Reset(ctx context.Context) (domain.ResetCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := domain.ResetCounts{
		Admins: int64(len(s.admins.data)),
		Users:  int64(len(s.users.data)),
	}
	if s.system.cfg != nil {
		counts.Config = 1
	}

	clear(s.admins.data)
	clear(s.users.data)
	s.system.cfg = nil
	return counts, nil
}

// AdminStore implements in-memory admin registry storage
type AdminStore struct {
	s    *Store
	data map[domain.Address]*domain.AdminRecord
}

func (a *AdminStore) Get(ctx context.Context, address domain.Address) (*domain.AdminRecord, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	admin, exists := a.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return admin.Clone(), nil
}

func (a *AdminStore) GetAll(ctx context.Context) ([]*domain.AdminRecord, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	admins := make([]*domain.AdminRecord, 0, len(a.data))
	for _, admin := range a.data {
		admins = append(admins, admin.Clone())
	}
	slices.SortFunc(admins, func(x, y *domain.AdminRecord) int {
		return x.CreatedAt.Compare(y.CreatedAt)
	})
	return admins, nil
}

func (a *AdminStore) Count(ctx context.Context) (int64, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	return int64(len(a.data)), nil
}

func (a *AdminStore) CreateFirst(ctx context.Context, admin *domain.AdminRecord) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	if len(a.data) > 0 {
		return storage.ErrNotEmpty
	}
	a.data[admin.Address] = admin.Clone()
	return nil
}

func (a *AdminStore) Create(ctx context.Context, admin *domain.AdminRecord) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	if _, exists := a.data[admin.Address]; exists {
		return storage.ErrAlreadyExists
	}
	a.data[admin.Address] = admin.Clone()
	return nil
}

func (a *AdminStore) Modify(ctx context.Context, address domain.Address, fn func(*domain.AdminRecord) error) (*domain.AdminRecord, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	current, exists := a.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}
	admin := current.Clone()
	if err := fn(admin); err != nil {
		return nil, err
	}
	admin.Address = address
	admin.UpdatedAt = time.Now()
	a.data[address] = admin.Clone()
	return admin, nil
}

func (a *AdminStore) Rekey(ctx context.Context, oldAddress domain.Address, admin *domain.AdminRecord) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	if _, exists := a.data[oldAddress]; !exists {
		return storage.ErrNotFound
	}
	if _, exists := a.data[admin.Address]; exists {
		return storage.ErrAlreadyExists
	}
	delete(a.data, oldAddress)
	admin.UpdatedAt = time.Now()
	a.data[admin.Address] = admin.Clone()
	return nil
}

// UserStore implements in-memory user storage
type UserStore struct {
	s    *Store
	data map[domain.Address]*domain.UserRecord
}

func (u *UserStore) Get(ctx context.Context, address domain.Address) (*domain.UserRecord, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	user, exists := u.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return user.Clone(), nil
}

func (u *UserStore) GetAll(ctx context.Context) ([]*domain.UserRecord, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	users := make([]*domain.UserRecord, 0, len(u.data))
	for _, user := range u.data {
		users = append(users, user.Clone())
	}
	slices.SortFunc(users, func(x, y *domain.UserRecord) int {
		return x.FirstSeen.Compare(y.FirstSeen)
	})
	return users, nil
}

func (u *UserStore) Count(ctx context.Context) (int64, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	return int64(len(u.data)), nil
}

func (u *UserStore) Upsert(ctx context.Context, address domain.Address, now time.Time) (bool, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if user, exists := u.data[address]; exists {
		user.LastSeen = now
		return false, nil
	}
	u.data[address] = domain.NewUserRecord(address, now)
	return true, nil
}

// SystemStore implements in-memory system configuration storage
type SystemStore struct {
	s   *Store
	cfg *domain.SystemConfig
}

func (c *SystemStore) Get(ctx context.Context) (*domain.SystemConfig, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	if c.cfg == nil {
		return nil, storage.ErrNotFound
	}
	cfg := *c.cfg
	return &cfg, nil
}

func (c *SystemStore) Put(ctx context.Context, cfg *domain.SystemConfig) error {
	if cfg == nil {
		return storage.ErrInvalidInput
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	stored := *cfg
	c.cfg = &stored
	return nil
}
