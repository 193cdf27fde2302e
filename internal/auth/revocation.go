package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "session:revoked:"

// RevocationStore records signed-out sessions until they would have expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// RedisRevocations keeps revoked session ids as expiring Redis keys.
type RedisRevocations struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisRevocations returns a store backed by client. A nil client yields a
// store that never reports a session as revoked.
func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client, now: time.Now}
}

// Revoke marks sessionID revoked until the given instant.
func (r *RedisRevocations) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	if r == nil || r.client == nil || sessionID == "" {
		return nil
	}
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedKeyPrefix+sessionID, "1", ttl).Err()
}

// IsRevoked reports whether sessionID was signed out.
func (r *RedisRevocations) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	if r == nil || r.client == nil || sessionID == "" {
		return false, nil
	}
	n, err := r.client.Exists(ctx, revokedKeyPrefix+sessionID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
