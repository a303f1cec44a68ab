// Package storagetest provides a behavioural test suite that every
// storage.Store implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreval74/xcafe/internal/domain"
	"github.com/andreval74/xcafe/internal/storage"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) storage.Store

var (
	addrA = domain.MustParseAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	addrB = domain.MustParseAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	addrC = domain.MustParseAddress("0xcccccccccccccccccccccccccccccccccccccccc")
)

// Run executes the suite against stores produced by newStore
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateFirstOnEmpty", func(t *testing.T) { testCreateFirst(t, newStore(t)) })
	t.Run("CreateFirstConcurrent", func(t *testing.T) { testCreateFirstConcurrent(t, newStore(t)) })
	t.Run("CreateDuplicate", func(t *testing.T) { testCreateDuplicate(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("ModifyAdmin", func(t *testing.T) { testModify(t, newStore(t)) })
	t.Run("ModifyConcurrent", func(t *testing.T) { testModifyConcurrent(t, newStore(t)) })
	t.Run("RekeyAdmin", func(t *testing.T) { testRekey(t, newStore(t)) })
	t.Run("UserUpsert", func(t *testing.T) { testUserUpsert(t, newStore(t)) })
	t.Run("SystemConfig", func(t *testing.T) { testSystemConfig(t, newStore(t)) })
	t.Run("Reset", func(t *testing.T) { testReset(t, newStore(t)) })
}

func newAdmin(address domain.Address, role domain.Role, createdAt time.Time) *domain.AdminRecord {
	return &domain.AdminRecord{
		Address:     address,
		Role:        role,
		Name:        "Admin " + address.Short(),
		Permissions: []string{"user_management"},
		Active:      true,
		CreatedAt:   createdAt,
		CreatedBy:   addrA.String(),
		UpdatedAt:   createdAt,
	}
}

func testCreateFirst(t *testing.T, s storage.Store) {
	ctx := t.Context()
	now := time.Now().UTC().Truncate(time.Millisecond)

	count, err := s.Admins().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, s.Admins().CreateFirst(ctx, domain.NewSuperAdmin(addrA, now)))

	err = s.Admins().CreateFirst(ctx, domain.NewSuperAdmin(addrB, now))
	assert.ErrorIs(t, err, storage.ErrNotEmpty)

	got, err := s.Admins().Get(ctx, addrA)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSuperAdmin, got.Role)
	assert.Equal(t, domain.SystemActor, got.CreatedBy)
	assert.ElementsMatch(t, domain.SuperAdminPermissions, got.Permissions)
	assert.True(t, got.Active)

	_, err = s.Admins().Get(ctx, addrB)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testCreateFirstConcurrent(t *testing.T, s storage.Store) {
	ctx := t.Context()
	now := time.Now().UTC()
	candidates := []domain.Address{addrA, addrB, addrC}

	var wg sync.WaitGroup
	var wins atomic.Int32
	for _, addr := range candidates {
		wg.Add(1)
		go func(addr domain.Address) {
			defer wg.Done()
			if err := s.Admins().CreateFirst(ctx, domain.NewSuperAdmin(addr, now)); err == nil {
				wins.Add(1)
			}
		}(addr)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one bootstrap must succeed")
	count, err := s.Admins().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func testCreateDuplicate(t *testing.T, s storage.Store) {
	ctx := t.Context()
	now := time.Now().UTC()

	require.NoError(t, s.Admins().Create(ctx, newAdmin(addrB, domain.RoleAdmin, now)))
	err := s.Admins().Create(ctx, newAdmin(addrB, domain.RoleModerator, now))
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	got, err := s.Admins().Get(ctx, addrB)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role, "failed create must not overwrite")

	// a non-empty registry refuses bootstrap
	err = s.Admins().CreateFirst(ctx, domain.NewSuperAdmin(addrA, now))
	assert.ErrorIs(t, err, storage.ErrNotEmpty)
}

func testGetMissing(t *testing.T, s storage.Store) {
	ctx := t.Context()

	_, err := s.Admins().Get(ctx, addrC)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.Users().Get(ctx, addrC)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.System().Get(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.Admins().Modify(ctx, addrC, func(*domain.AdminRecord) error { return nil })
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testModify(t *testing.T, s storage.Store) {
	ctx := t.Context()
	t0 := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)

	require.NoError(t, s.Admins().Create(ctx, newAdmin(addrB, domain.RoleModerator, t0)))
	require.NoError(t, s.Admins().Create(ctx, newAdmin(addrC, domain.RoleAdmin, t0.Add(time.Minute))))

	modified, err := s.Admins().Modify(ctx, addrB, func(a *domain.AdminRecord) error {
		a.Active = false
		a.Permissions = []string{"a", "b"}
		return nil
	})
	require.NoError(t, err)
	assert.False(t, modified.Active)
	assert.True(t, modified.UpdatedAt.After(t0))

	// an error from fn leaves the record untouched
	errVeto := errors.New("veto")
	_, err = s.Admins().Modify(ctx, addrB, func(a *domain.AdminRecord) error {
		a.Active = true
		return errVeto
	})
	assert.ErrorIs(t, err, errVeto)

	got, err := s.Admins().Get(ctx, addrB)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, []string{"a", "b"}, got.Permissions)
	assert.Equal(t, domain.RoleInactive, got.EffectiveRole())

	all, err := s.Admins().GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, addrB, all[0].Address)
	assert.Equal(t, addrC, all[1].Address)
}

// Edits of different fields racing on one record must all survive
func testModifyConcurrent(t *testing.T, s storage.Store) {
	ctx := t.Context()
	require.NoError(t, s.Admins().Create(ctx, newAdmin(addrB, domain.RoleModerator, time.Now().UTC())))

	const writers = 4
	var wg sync.WaitGroup
	errs := make([]error, writers+1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[writers] = s.Admins().Modify(ctx, addrB, func(a *domain.AdminRecord) error {
			a.Active = false
			return nil
		})
	}()
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Admins().Modify(ctx, addrB, func(a *domain.AdminRecord) error {
				a.Permissions = append(a.Permissions, fmt.Sprintf("perm_%d", i))
				return nil
			})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	got, err := s.Admins().Get(ctx, addrB)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.ElementsMatch(t, []string{"user_management", "perm_0", "perm_1", "perm_2", "perm_3"}, got.Permissions)
}

func testRekey(t *testing.T, s storage.Store) {
	ctx := t.Context()
	now := time.Now().UTC()

	require.NoError(t, s.Admins().CreateFirst(ctx, domain.NewSuperAdmin(addrA, now)))
	require.NoError(t, s.Admins().Create(ctx, newAdmin(addrC, domain.RoleAdmin, now)))

	admin, err := s.Admins().Get(ctx, addrA)
	require.NoError(t, err)

	taken := admin.Clone()
	taken.Address = addrC
	assert.ErrorIs(t, s.Admins().Rekey(ctx, addrA, taken), storage.ErrAlreadyExists)

	moved := admin.Clone()
	moved.Address = addrB
	moved.PreviousAddress = addrA
	moved.WalletChangedAt = &now
	require.NoError(t, s.Admins().Rekey(ctx, addrA, moved))

	_, err = s.Admins().Get(ctx, addrA)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := s.Admins().Get(ctx, addrB)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSuperAdmin, got.Role)
	assert.Equal(t, addrA, got.PreviousAddress)
	require.NotNil(t, got.WalletChangedAt)

	assert.ErrorIs(t, s.Admins().Rekey(ctx, addrA, moved), storage.ErrNotFound)
}

func testUserUpsert(t *testing.T, s storage.Store) {
	ctx := t.Context()
	t0 := time.Now().UTC().Truncate(time.Millisecond)
	t1 := t0.Add(time.Minute)

	created, err := s.Users().Upsert(ctx, addrB, t0)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Users().Upsert(ctx, addrB, t1)
	require.NoError(t, err)
	assert.False(t, created)

	count, err := s.Users().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	user, err := s.Users().Get(ctx, addrB)
	require.NoError(t, err)
	assert.True(t, user.FirstSeen.Equal(t0), "first seen preserved")
	assert.True(t, user.LastSeen.Equal(t1), "last seen refreshed")
	assert.Equal(t, "User"+addrB.Short(), user.Profile.Nickname)

	all, err := s.Users().GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testSystemConfig(t *testing.T, s storage.Store) {
	ctx := t.Context()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, s.System().Put(ctx, domain.NewSystemConfig(addrA, now)))
	cfg, err := s.System().Get(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Initialized)
	assert.Equal(t, domain.SystemVersion, cfg.Version)
	assert.Equal(t, addrA, cfg.SetupBy)
	assert.True(t, cfg.SetupDate.Equal(now))

	// Put overwrites the singleton
	require.NoError(t, s.System().Put(ctx, domain.NewSystemConfig(addrB, now)))
	cfg, err = s.System().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, addrB, cfg.SetupBy)
}

func testReset(t *testing.T, s storage.Store) {
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Admins().CreateFirst(ctx, domain.NewSuperAdmin(addrA, now)))
	require.NoError(t, s.Admins().Create(ctx, newAdmin(addrB, domain.RoleAdmin, now)))
	_, err := s.Users().Upsert(ctx, addrC, now)
	require.NoError(t, err)
	require.NoError(t, s.System().Put(ctx, domain.NewSystemConfig(addrA, now)))

	counts, err := s.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ResetCounts{Admins: 2, Users: 1, Config: 1}, counts)

	admins, err := s.Admins().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, admins)
	users, err := s.Users().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, users)
	_, err = s.System().Get(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// the registry can be bootstrapped again after a reset
	require.NoError(t, s.Admins().CreateFirst(ctx, domain.NewSuperAdmin(addrB, now)))

	counts, err = s.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Admins)
}
