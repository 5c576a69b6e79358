package token

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist tracks revoked token ids until their natural expiry.
type Blacklist interface {
	// Revoke marks the token id revoked for the given TTL.
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	// IsRevoked reports whether the token id has been revoked. Lookup
	// failures are treated as not-revoked so that a blacklist outage
	// does not log everyone out.
	IsRevoked(ctx context.Context, jti string) bool
}

const blacklistPrefix = "token:revoked:"

// RedisBlacklist stores revoked token ids in Redis with per-key TTLs,
// so entries expire exactly when the token would have.
type RedisBlacklist struct {
	client *redis.Client
}

// NewRedisBlacklist creates a Redis-backed blacklist.
func NewRedisBlacklist(client *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{client: client}
}

func (b *RedisBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return b.client.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, jti string) bool {
	n, err := b.client.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// MemoryBlacklist is an in-process blacklist for tests and single-node
// dev setups.
type MemoryBlacklist struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

// NewMemoryBlacklist creates an empty in-memory blacklist.
func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{revoked: make(map[string]time.Time)}
}

func (b *MemoryBlacklist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[jti] = time.Now().Add(ttl)
	return nil
}

func (b *MemoryBlacklist) IsRevoked(_ context.Context, jti string) bool {
	b.mu.RLock()
	deadline, ok := b.revoked[jti]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(deadline) {
		b.mu.Lock()
		delete(b.revoked, jti)
		b.mu.Unlock()
		return false
	}
	return true
}
