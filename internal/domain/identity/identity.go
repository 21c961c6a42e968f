// Package identity describes the authenticated principal the core works on behalf of.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSupervisor Role = "supervisor"
	RoleTechnician Role = "technician"
	RoleClient     Role = "client"
)

// ParseRole accepts the role tag carried by identity tokens.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSupervisor, RoleTechnician, RoleClient:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Identity is the current user as seen by the core.
type Identity struct {
	ID       uuid.UUID `json:"id"`
	Role     Role      `json:"role"`
	FullName string    `json:"full_name"`
}

func (i Identity) IsSupervisor() bool { return i.Role == RoleSupervisor }
func (i Identity) IsTechnician() bool { return i.Role == RoleTechnician }
func (i Identity) IsClient() bool     { return i.Role == RoleClient }

// HasRole reports whether the identity carries any of the given roles.
func (i Identity) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}
