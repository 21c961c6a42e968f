// internal/domain/equipment/entity.go
package equipment

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBrand is used when an equipment record carries no brand.
	DefaultBrand  = "RICOH"
	DefaultStatus = "Operativo"
)

type Equipment struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	PhysicalLocation string     `json:"physical_location" db:"physical_location"`
	LocationDetails  string     `json:"location_details" db:"location_details"`
	Model            string     `json:"model" db:"model"`
	Brand            string     `json:"brand" db:"brand"`
	Serial           string     `json:"serial" db:"serial"`
	IPAddress        string     `json:"ip_address" db:"ip_address"`
	CustomerID       *uuid.UUID `json:"customer_id,omitempty" db:"customer_id"`
	Status           string     `json:"status" db:"status"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// View is an equipment row joined with its owner's display name.
type View struct {
	Equipment
	CustomerName *string `json:"customer_name,omitempty"`
}
