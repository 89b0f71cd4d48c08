package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/aryan0dhankhar/bloodbank/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/bloodbank/pkg/cache"
)

// Revoker remembers logged-out token ids until the token would have expired anyway.
type Revoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryRevoker keeps revoked ids in a TTL cache.
type MemoryRevoker struct {
	revoked *cache.Cache[string, struct{}]
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: cache.New[string, struct{}]()}
}

func (m *MemoryRevoker) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	m.revoked.Set(jti, struct{}{}, time.Until(expiresAt))
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := m.revoked.Get(jti)
	return ok, nil
}

// RunJanitor drops expired ids every interval until ctx is done.
func (m *MemoryRevoker) RunJanitor(ctx context.Context, interval time.Duration) {
	m.revoked.RunJanitor(ctx, interval)
}

// RedisRevoker stores revoked ids as expiring keys so every replica sees them.
type RedisRevoker struct {
	client *redis.Client
}

func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client}
}

func revokedKey(jti string) string { return "revoked:" + jti }

func (r *RedisRevoker) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := r.client.Set(ctx, revokedKey(jti), "1", ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ok, err := r.client.Exists(ctx, revokedKey(jti))
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return ok, nil
}
