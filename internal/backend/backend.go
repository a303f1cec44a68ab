// Package backend selects the storage implementation named by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/andreval74/xcafe/internal/storage"
	"github.com/andreval74/xcafe/internal/storage/memory"
	"github.com/andreval74/xcafe/internal/storage/mongodb"
	"github.com/andreval74/xcafe/internal/storage/sqlite"
	"github.com/andreval74/xcafe/pkg/config"
)

// Type defines the type of storage backend
type Type string

const (
	// TypeMemory uses in-memory storage (for testing/development)
	TypeMemory Type = "memory"
	// TypeSQLite uses an embedded SQLite database file
	TypeSQLite Type = "sqlite"
	// TypeMongoDB uses MongoDB storage (for production)
	TypeMongoDB Type = "mongodb"
)

// Backend is the storage handle shared by all services
type Backend = storage.Store

// New creates a storage backend based on the configuration
func New(ctx context.Context, cfg *config.Config) (Backend, error) {
	storageType := Type(cfg.Storage.Type)

	switch storageType {
	case TypeMemory, "":
		// Default to memory if not specified
		return memory.NewStore(), nil

	case TypeSQLite:
		store, err := sqlite.NewStore(ctx, &cfg.Storage.SQLite)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		return store, nil

	case TypeMongoDB:
		store, err := mongodb.NewStore(ctx, &cfg.Storage.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to create MongoDB backend: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
