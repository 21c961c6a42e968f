// internal/domain/ticket/dto.go
package ticket

import "github.com/google/uuid"

type CreateTicketRequest struct {
	EquipmentID uuid.UUID `json:"equipment_id" binding:"required"`
	Description string    `json:"description" binding:"required,max=2000"`
}

type ResolveTicketRequest struct {
	ResolutionNotes string `json:"resolution_notes" binding:"required,max=4000"`
}
