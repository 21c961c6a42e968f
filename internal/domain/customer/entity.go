// internal/domain/customer/entity.go
package customer

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a client institution. It owns the routing relationship to its technician.
type Customer struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	Name           string     `json:"name" db:"name"`
	AssignedTechID *uuid.UUID `json:"assigned_tech_id,omitempty" db:"assigned_tech_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// HasTechnician reports whether tickets for this customer can be routed.
func (c *Customer) HasTechnician() bool {
	return c.AssignedTechID != nil && *c.AssignedTechID != uuid.Nil
}
