package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/andreval74/xcafe/internal/domain"
	"github.com/andreval74/xcafe/internal/storage"
	"github.com/andreval74/xcafe/pkg/config"
)

// Store implements MongoDB storage
type Store struct {
	client   *mongo.Client
	database *mongo.Database
	cfg      *config.MongoDBConfig

	admins *AdminStore
	users  *UserStore
	system *SystemStore
}

// NewStore creates a new MongoDB store
func NewStore(ctx context.Context, cfg *config.MongoDBConfig) (*Store, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(time.Duration(cfg.Timeout) * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(cfg.Database)

	s := &Store{
		client:   client,
		database: database,
		cfg:      cfg,
	}
	s.admins = &AdminStore{
		collection: database.Collection("admins"),
		bootstrap:  database.Collection("bootstrap"),
	}
	s.users = &UserStore{collection: database.Collection("users")}
	s.system = &SystemStore{collection: database.Collection("system_config")}

	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	// Addresses are the _id of both collections, so uniqueness is implicit.
	_, err := s.admins.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "active", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create admin indexes: %w", err)
	}

	_, err = s.users.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "first_seen", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	return nil
}

func (s *Store) Admins() storage.AdminStore  { return s.admins }
func (s *Store) Users() storage.UserStore    { return s.users }
func (s *Store) System() storage.SystemStore { return s.system }

// Reset deletes every document of the registry collections. The bootstrap
// marker is removed last so a concurrent CreateFirst is refused until the
// registry is fully empty. Once the admins are gone the marker is removed
// even if clearing the other collections fails.
func (s *Store) Reset(ctx context.Context) (counts domain.ResetCounts, err error) {
	res, err := s.admins.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return counts, fmt.Errorf("failed to clear admins: %w", err)
	}
	counts.Admins = res.DeletedCount

	defer func() {
		if _, markerErr := s.admins.bootstrap.DeleteMany(ctx, bson.M{}); markerErr != nil && err == nil {
			err = fmt.Errorf("failed to clear bootstrap marker: %w", markerErr)
		}
	}()

	res, err = s.users.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return counts, fmt.Errorf("failed to clear users: %w", err)
	}
	counts.Users = res.DeletedCount

	res, err = s.system.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return counts, fmt.Errorf("failed to clear system config: %w", err)
	}
	counts.Config = res.DeletedCount

	return counts, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}
