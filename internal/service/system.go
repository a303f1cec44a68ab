package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/andreval74/xcafe/internal/domain"
	"github.com/andreval74/xcafe/internal/storage"
)

// SignatureScheme is reported by the status endpoint
const SignatureScheme = "eip191-personal-sign"

// SystemStatus reports whether the registry has been bootstrapped
type SystemStatus struct {
	Initialized     bool           `json:"initialized"`
	SignatureScheme string         `json:"signature_scheme"`
	Version         string         `json:"version,omitempty"`
	SetupDate       *time.Time     `json:"setup_date,omitempty"`
	SetupBy         domain.Address `json:"setup_by,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
}

// SystemStats summarizes registry size
type SystemStats struct {
	TotalUsers  int64 `json:"total_users"`
	TotalAdmins int64 `json:"total_admins"`
	Initialized bool  `json:"initialized"`
}

// SystemService answers read-only questions about the registry
type SystemService struct {
	store  storage.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewSystemService creates a new system service
func NewSystemService(store storage.Store, logger *zap.Logger) *SystemService {
	return &SystemService{
		store:  store,
		logger: logger.Named("system-service"),
		now:    time.Now,
	}
}

// Status reports initialization state and the persisted system configuration
func (s *SystemService) Status(ctx context.Context) (*SystemStatus, error) {
	count, err := s.store.Admins().Count(ctx)
	if err != nil {
		return nil, storageError("count admins", err)
	}

	status := &SystemStatus{
		Initialized:     count > 0,
		SignatureScheme: SignatureScheme,
		Timestamp:       s.now().UTC(),
	}

	cfg, err := s.store.System().Get(ctx)
	switch {
	case err == nil:
		status.Version = cfg.Version
		setup := cfg.SetupDate
		status.SetupDate = &setup
		status.SetupBy = cfg.SetupBy
	case !errors.Is(err, storage.ErrNotFound):
		return nil, storageError("get system config", err)
	}

	return status, nil
}

// Stats counts users and admins
func (s *SystemService) Stats(ctx context.Context) (*SystemStats, error) {
	admins, err := s.store.Admins().Count(ctx)
	if err != nil {
		return nil, storageError("count admins", err)
	}
	users, err := s.store.Users().Count(ctx)
	if err != nil {
		return nil, storageError("count users", err)
	}
	return &SystemStats{
		TotalUsers:  users,
		TotalAdmins: admins,
		Initialized: admins > 0,
	}, nil
}
