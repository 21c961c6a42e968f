// internal/pkg/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "session:revoked:"

// Manager records revoked token ids. Tokens are issued elsewhere; this service only
// needs to refuse the ones a user has logged out.
type Manager struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewManager(client redis.UniversalClient) *Manager {
	return &Manager{
		client: client,
		now:    time.Now,
	}
}

// Revoke stores the token id until the token would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, rev *Revocation) error {
	if rev.JTI == "" {
		return fmt.Errorf("token has no id")
	}

	ttl := rev.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}

	if rev.RevokedAt.IsZero() {
		rev.RevokedAt = m.now().UTC()
	}

	data, err := json.Marshal(rev)
	if err != nil {
		return fmt.Errorf("failed to marshal revocation: %w", err)
	}

	if err := m.client.Set(ctx, m.revokedKey(rev.JTI), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revocation in redis: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id has been revoked.
func (m *Manager) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}

	err := m.client.Get(ctx, m.revokedKey(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return true, nil
}

func (m *Manager) revokedKey(jti string) string {
	return revokedKeyPrefix + jti
}
