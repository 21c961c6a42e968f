// internal/pkg/session/types.go
package session

import "time"

// Revocation is stored for a token that was logged out before it expired.
type Revocation struct {
	JTI        string    `json:"jti"`
	IdentityID string    `json:"identity_id"`
	Reason     string    `json:"reason"`
	RevokedAt  time.Time `json:"revoked_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
