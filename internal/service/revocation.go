package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/andreval74/xcafe/pkg/config"
)

// RevocationList records credentials ended early by logout. Entries only
// need to live until the credential would have expired on its own.
type RevocationList interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Start()
	Stop()
}

// NewRevocationList creates the revocation list selected by cfg.Type
func NewRevocationList(cfg config.RevocationConfig, logger *zap.Logger) (RevocationList, error) {
	cfg.SetDefaults()
	switch cfg.Type {
	case "memory":
		return NewMemoryRevocationList(cfg, logger), nil
	case "redis":
		return NewRedisRevocationList(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported revocation type: %s", cfg.Type)
	}
}

// MemoryRevocationList keeps revoked IDs in process memory.
// Expired entries are dropped by a periodic cleanup worker.
type MemoryRevocationList struct {
	config config.RevocationConfig
	logger *zap.Logger

	mu       sync.RWMutex
	tokens   map[string]time.Time // jti -> expiry time
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMemoryRevocationList creates an in-memory revocation list
func NewMemoryRevocationList(cfg config.RevocationConfig, logger *zap.Logger) *MemoryRevocationList {
	cfg.SetDefaults()
	return &MemoryRevocationList{
		config:   cfg,
		logger:   logger.Named("revocation"),
		tokens:   make(map[string]time.Time),
		stopChan: make(chan struct{}),
	}
}

// Start begins the cleanup worker for expired entries
func (b *MemoryRevocationList) Start() {
	b.wg.Add(1)
	go b.cleanupLoop()

	b.logger.Info("Revocation list started",
		zap.Int("cleanup_interval_seconds", b.config.CleanupIntervalSeconds),
	)
}

// Stop gracefully stops the cleanup worker
func (b *MemoryRevocationList) Stop() {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()
	b.logger.Info("Revocation list stopped")
}

func (b *MemoryRevocationList) cleanupLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(time.Duration(b.config.CleanupIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.cleanup(time.Now())
		}
	}
}

func (b *MemoryRevocationList) cleanup(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for jti, expiry := range b.tokens {
		if now.After(expiry) {
			delete(b.tokens, jti)
			removed++
		}
	}

	if removed > 0 {
		b.logger.Debug("Cleaned up expired revocation entries",
			zap.Int("removed", removed),
			zap.Int("remaining", len(b.tokens)),
		)
	}
}

// Revoke adds a credential ID until expiresAt
func (b *MemoryRevocationList) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return fmt.Errorf("credential has no id")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[jti] = expiresAt

	b.logger.Debug("Credential revoked", zap.String("jti", jti), zap.Time("expiry", expiresAt))
	return nil
}

// IsRevoked checks if a credential ID is revoked
func (b *MemoryRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	expiry, exists := b.tokens[jti]
	if !exists {
		return false, nil
	}
	return !time.Now().After(expiry), nil
}

// Count returns the number of entries currently held
func (b *MemoryRevocationList) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tokens)
}

// RedisRevocationList stores revoked IDs as expiring Redis keys so that
// several server instances share logout state.
type RedisRevocationList struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisRevocationList connects to Redis and verifies the connection
func NewRedisRevocationList(cfg config.RevocationConfig, logger *zap.Logger) (*RedisRevocationList, error) {
	cfg.SetDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisRevocationList{
		client:    client,
		keyPrefix: cfg.Redis.KeyPrefix,
		logger:    logger.Named("revocation"),
	}, nil
}

func (r *RedisRevocationList) key(jti string) string {
	return r.keyPrefix + jti
}

// Revoke stores the ID with a TTL matching the credential's remaining life
func (r *RedisRevocationList) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return fmt.Errorf("credential has no id")
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.key(jti), expiresAt.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke credential: %w", err)
	}
	return nil
}

// IsRevoked checks whether the ID key exists
func (r *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}

// Start is a no-op: Redis expires keys itself
func (r *RedisRevocationList) Start() {}

// Stop closes the Redis client
func (r *RedisRevocationList) Stop() {
	if err := r.client.Close(); err != nil {
		r.logger.Warn("Failed to close redis client", zap.Error(err))
	}
}
