// internal/domain/equipment/dto.go
package equipment

import "github.com/google/uuid"

type CreateEquipmentRequest struct {
	PhysicalLocation string     `json:"physical_location" binding:"max=255"`
	LocationDetails  string     `json:"location_details"`
	Model            string     `json:"model" binding:"required,max=120"`
	Brand            string     `json:"brand" binding:"max=120"`
	Serial           string     `json:"serial" binding:"required,max=120"`
	IPAddress        string     `json:"ip_address" binding:"omitempty,ip"`
	CustomerID       *uuid.UUID `json:"customer_id"`
}

// LinkCustomerRequest links equipment to a customer; a null customer unlinks it.
type LinkCustomerRequest struct {
	CustomerID *uuid.UUID `json:"customer_id"`
}

type ImportResult struct {
	Imported int `json:"imported"`
	// Unlinked counts imported rows whose institution matched no customer.
	Unlinked int `json:"unlinked"`
}
