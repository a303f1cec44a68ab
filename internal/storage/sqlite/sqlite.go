// Package sqlite implements storage.Store on an embedded SQLite database
// through GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/andreval74/xcafe/internal/domain"
	"github.com/andreval74/xcafe/internal/storage"
	"github.com/andreval74/xcafe/pkg/config"
)

// Store implements SQLite storage.
//
// The pool is limited to a single connection: SQLite serializes writers
// anyway, and a single connection turns every transaction below into a
// critical section across the whole registry.
type Store struct {
	db *gorm.DB

	admins *AdminStore
	users  *UserStore
	system *SystemStore
}

// NewStore opens (creating if needed) the database at cfg.Path and migrates it
func NewStore(ctx context.Context, cfg *config.SQLiteConfig) (*Store, error) {
	db, err := gorm.Open(gormsqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).AutoMigrate(
		&domain.AdminRecord{},
		&domain.UserRecord{},
		&domain.SystemConfig{},
	); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}

	return &Store{
		db:     db,
		admins: &AdminStore{db: db},
		users:  &UserStore{db: db},
		system: &SystemStore{db: db},
	}, nil
}

func (s *Store) Admins() storage.AdminStore  { return s.admins }
func (s *Store) Users() storage.UserStore    { return s.users }
func (s *Store) System() storage.SystemStore { return s.system }

// Reset clears all tables in one transaction
func (s *Store) Reset(ctx context.Context) (domain.ResetCounts, error) {
	var counts domain.ResetCounts
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("1 = 1").Delete(&domain.AdminRecord{})
		if res.Error != nil {
			return fmt.Errorf("failed to clear admins: %w", res.Error)
		}
		counts.Admins = res.RowsAffected

		res = tx.Where("1 = 1").Delete(&domain.UserRecord{})
		if res.Error != nil {
			return fmt.Errorf("failed to clear users: %w", res.Error)
		}
		counts.Users = res.RowsAffected

		res = tx.Where("1 = 1").Delete(&domain.SystemConfig{})
		if res.Error != nil {
			return fmt.Errorf("failed to clear system config: %w", res.Error)
		}
		counts.Config = res.RowsAffected
		return nil
	})
	if err != nil {
		return domain.ResetCounts{}, err
	}
	return counts, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AdminStore implements SQLite admin registry storage
type AdminStore struct {
	db *gorm.DB
}

func (s *AdminStore) Get(ctx context.Context, address domain.Address) (*domain.AdminRecord, error) {
	return getAdmin(s.db.WithContext(ctx), address)
}

func getAdmin(tx *gorm.DB, address domain.Address) (*domain.AdminRecord, error) {
	var admin domain.AdminRecord
	if err := tx.Where("address = ?", address.String()).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return &admin, nil
}

func (s *AdminStore) GetAll(ctx context.Context) ([]*domain.AdminRecord, error) {
	admins := make([]*domain.AdminRecord, 0)
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&admins).Error; err != nil {
		return nil, fmt.Errorf("failed to get admins: %w", err)
	}
	return admins, nil
}

func (s *AdminStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&domain.AdminRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return n, nil
}

func (s *AdminStore) CreateFirst(ctx context.Context, admin *domain.AdminRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.AdminRecord{}).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}
		if n > 0 {
			return storage.ErrNotEmpty
		}
		if err := tx.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}
		return nil
	})
}

func (s *AdminStore) Create(ctx context.Context, admin *domain.AdminRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createAdmin(tx, admin)
	})
}

func createAdmin(tx *gorm.DB, admin *domain.AdminRecord) error {
	var n int64
	if err := tx.Model(&domain.AdminRecord{}).Where("address = ?", admin.Address.String()).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check admin: %w", err)
	}
	if n > 0 {
		return storage.ErrAlreadyExists
	}
	if err := tx.Create(admin).Error; err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

func (s *AdminStore) Modify(ctx context.Context, address domain.Address, fn func(*domain.AdminRecord) error) (*domain.AdminRecord, error) {
	var admin *domain.AdminRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := getAdmin(tx, address)
		if err != nil {
			return err
		}
		if err := fn(current); err != nil {
			return err
		}
		current.Address = address
		current.UpdatedAt = time.Now()

		res := tx.Model(&domain.AdminRecord{}).
			Where("address = ?", address.String()).
			Select("*").
			Updates(current)
		if res.Error != nil {
			return fmt.Errorf("failed to update admin: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return storage.ErrNotFound
		}
		admin = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return admin, nil
}

func (s *AdminStore) Rekey(ctx context.Context, oldAddress domain.Address, admin *domain.AdminRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getAdmin(tx, oldAddress); err != nil {
			return err
		}
		admin.UpdatedAt = time.Now()
		if err := createAdmin(tx, admin); err != nil {
			return err
		}
		if err := tx.Where("address = ?", oldAddress.String()).Delete(&domain.AdminRecord{}).Error; err != nil {
			return fmt.Errorf("failed to remove old admin: %w", err)
		}
		return nil
	})
}

// UserStore implements SQLite user storage
type UserStore struct {
	db *gorm.DB
}

func (s *UserStore) Get(ctx context.Context, address domain.Address) (*domain.UserRecord, error) {
	var user domain.UserRecord
	if err := s.db.WithContext(ctx).Where("address = ?", address.String()).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *UserStore) GetAll(ctx context.Context) ([]*domain.UserRecord, error) {
	users := make([]*domain.UserRecord, 0)
	if err := s.db.WithContext(ctx).Order("first_seen asc").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

func (s *UserStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&domain.UserRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func (s *UserStore) Upsert(ctx context.Context, address domain.Address, now time.Time) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.UserRecord{}).
			Where("address = ?", address.String()).
			Update("last_seen", now)
		if res.Error != nil {
			return fmt.Errorf("failed to touch user: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}
		if err := tx.Create(domain.NewUserRecord(address, now)).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		created = true
		return nil
	})
	return created, err
}

// SystemStore implements SQLite system configuration storage
type SystemStore struct {
	db *gorm.DB
}

func (s *SystemStore) Get(ctx context.Context) (*domain.SystemConfig, error) {
	var cfg domain.SystemConfig
	if err := s.db.WithContext(ctx).Where("id = ?", domain.SystemConfigID).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get system config: %w", err)
	}
	return &cfg, nil
}

func (s *SystemStore) Put(ctx context.Context, cfg *domain.SystemConfig) error {
	if cfg == nil {
		return storage.ErrInvalidInput
	}
	cfg.ID = domain.SystemConfigID
	if err := s.db.WithContext(ctx).Save(cfg).Error; err != nil {
		return fmt.Errorf("failed to store system config: %w", err)
	}
	return nil
}
