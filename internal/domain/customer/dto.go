// internal/domain/customer/dto.go
package customer

import "github.com/google/uuid"

// AssignTechnicianRequest sets or clears a customer's routing technician.
type AssignTechnicianRequest struct {
	TechnicianID *uuid.UUID `json:"technician_id"`
}
