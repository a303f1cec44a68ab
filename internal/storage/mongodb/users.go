package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/andreval74/xcafe/internal/domain"
	"github.com/andreval74/xcafe/internal/storage"
)

// UserStore implements MongoDB user storage
type UserStore struct {
	collection *mongo.Collection
}

func (s *UserStore) Get(ctx context.Context, address domain.Address) (*domain.UserRecord, error) {
	var user domain.UserRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": address.String()}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *UserStore) GetAll(ctx context.Context) ([]*domain.UserRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "first_seen", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	users := make([]*domain.UserRecord, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func (s *UserStore) Count(ctx context.Context) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// Upsert relies on the server-side upsert being atomic per document
func (s *UserStore) Upsert(ctx context.Context, address domain.Address, now time.Time) (bool, error) {
	fresh := domain.NewUserRecord(address, now)
	update := bson.M{
		"$set": bson.M{"last_seen": now},
		"$setOnInsert": bson.M{
			"first_seen": fresh.FirstSeen,
			"profile":    fresh.Profile,
		},
	}

	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": address.String()}, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("failed to upsert user: %w", err)
	}
	return result.UpsertedCount == 1, nil
}

// SystemStore implements MongoDB system configuration storage
type SystemStore struct {
	collection *mongo.Collection
}

func (s *SystemStore) Get(ctx context.Context) (*domain.SystemConfig, error) {
	var cfg domain.SystemConfig
	err := s.collection.FindOne(ctx, bson.M{"_id": domain.SystemConfigID}).Decode(&cfg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
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
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": domain.SystemConfigID}, cfg, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to store system config: %w", err)
	}
	return nil
}
