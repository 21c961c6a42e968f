// internal/domain/technician/entity.go
package technician

import "github.com/google/uuid"

// RoleTag is the profile role value that marks a technician.
const RoleTag = "technician"

// Profile is provisioned by the identity provider; the core only reads it.
type Profile struct {
	ID       uuid.UUID `json:"id" db:"id"`
	FullName string    `json:"full_name" db:"full_name"`
	Role     string    `json:"role" db:"role"`
}
