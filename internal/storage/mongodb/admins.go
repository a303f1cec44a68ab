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

// bootstrapMarkerID is the _id of the single document that records the
// first admin insertion. Its unique key makes CreateFirst race-free
// without multi-document transactions.
const bootstrapMarkerID = "first_admin"

// staleMarkerAge is how long a marker may exist without its admin before
// CreateFirst reclaims it. A bootstrap interrupted between its two inserts
// leaves such a marker behind.
const staleMarkerAge = time.Minute

// modifyAttempts bounds the optimistic retries of Modify
const modifyAttempts = 5

// AdminStore implements MongoDB admin registry storage
type AdminStore struct {
	collection *mongo.Collection
	bootstrap  *mongo.Collection
}

type bootstrapMarker struct {
	ID        string    `bson:"_id"`
	Address   string    `bson:"address"`
	CreatedAt time.Time `bson:"created_at"`
}

func (s *AdminStore) Get(ctx context.Context, address domain.Address) (*domain.AdminRecord, error) {
	var admin domain.AdminRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": address.String()}).Decode(&admin)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return &admin, nil
}

func (s *AdminStore) GetAll(ctx context.Context) ([]*domain.AdminRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get admins: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	admins := make([]*domain.AdminRecord, 0)
	if err := cursor.All(ctx, &admins); err != nil {
		return nil, fmt.Errorf("failed to decode admins: %w", err)
	}
	return admins, nil
}

func (s *AdminStore) Count(ctx context.Context) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return n, nil
}

func (s *AdminStore) CreateFirst(ctx context.Context, admin *domain.AdminRecord) error {
	n, err := s.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return storage.ErrNotEmpty
	}

	if err := s.claimBootstrap(ctx, admin.Address); err != nil {
		return err
	}

	if _, err := s.collection.InsertOne(ctx, admin); err != nil {
		// release the marker so bootstrap can be retried
		_, _ = s.bootstrap.DeleteOne(ctx, bson.M{"_id": bootstrapMarkerID})
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrNotEmpty
		}
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

// claimBootstrap inserts the marker. The registry was empty when the caller
// counted it, so a marker older than staleMarkerAge belongs to a bootstrap
// that never completed and is replaced.
func (s *AdminStore) claimBootstrap(ctx context.Context, address domain.Address) error {
	marker := bootstrapMarker{ID: bootstrapMarkerID, Address: address.String(), CreatedAt: time.Now()}
	_, err := s.bootstrap.InsertOne(ctx, marker)
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to write bootstrap marker: %w", err)
	}

	res, err := s.bootstrap.DeleteOne(ctx, bson.M{
		"_id":        bootstrapMarkerID,
		"created_at": bson.M{"$lt": marker.CreatedAt.Add(-staleMarkerAge)},
	})
	if err != nil {
		return fmt.Errorf("failed to reclaim bootstrap marker: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotEmpty
	}

	if _, err := s.bootstrap.InsertOne(ctx, marker); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrNotEmpty
		}
		return fmt.Errorf("failed to write bootstrap marker: %w", err)
	}
	return nil
}

func (s *AdminStore) Create(ctx context.Context, admin *domain.AdminRecord) error {
	_, err := s.collection.InsertOne(ctx, admin)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

// Modify uses updated_at as a version: the replacement only matches the
// document it was computed from, and a lost race is retried on a fresh read.
func (s *AdminStore) Modify(ctx context.Context, address domain.Address, fn func(*domain.AdminRecord) error) (*domain.AdminRecord, error) {
	for range modifyAttempts {
		admin, err := s.Get(ctx, address)
		if err != nil {
			return nil, err
		}
		version := admin.UpdatedAt
		if err := fn(admin); err != nil {
			return nil, err
		}
		admin.Address = address
		admin.UpdatedAt = nextVersion(version)

		result, err := s.collection.ReplaceOne(ctx, bson.M{"_id": address.String(), "updated_at": version}, admin)
		if err != nil {
			return nil, fmt.Errorf("failed to update admin: %w", err)
		}
		if result.MatchedCount == 1 {
			return admin, nil
		}
	}
	return nil, storage.ErrConflict
}

// nextVersion returns a millisecond timestamp strictly after previous
func nextVersion(previous time.Time) time.Time {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if !now.After(previous) {
		now = previous.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return now
}

// Rekey inserts the record under its new address first, so the unique _id
// rejects a taken address before the old record is touched.
func (s *AdminStore) Rekey(ctx context.Context, oldAddress domain.Address, admin *domain.AdminRecord) error {
	if _, err := s.Get(ctx, oldAddress); err != nil {
		return err
	}

	admin.UpdatedAt = time.Now()
	if _, err := s.collection.InsertOne(ctx, admin); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert rekeyed admin: %w", err)
	}

	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": oldAddress.String()})
	if err != nil || result.DeletedCount == 0 {
		_, _ = s.collection.DeleteOne(ctx, bson.M{"_id": admin.Address.String()})
		if err != nil {
			return fmt.Errorf("failed to remove old admin: %w", err)
		}
		return storage.ErrNotFound
	}
	return nil
}
