// internal/pkg/jwt/claims.go
package jwt

import (
	"fmt"

	"impriartex-service/internal/domain/identity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are issued by the external identity provider. The subject is the profile id.
type Claims struct {
	Role     string `json:"role"`
	FullName string `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts the claims into the principal the services work with.
func (c *Claims) Identity() (identity.Identity, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}

	role, err := identity.ParseRole(c.Role)
	if err != nil {
		return identity.Identity{}, err
	}

	return identity.Identity{ID: id, Role: role, FullName: c.FullName}, nil
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		// If audience is required but missing
		return !required
	}

	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}

	return false
}
