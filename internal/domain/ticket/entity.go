// internal/domain/ticket/entity.go
package ticket

import (
	"time"

	"impriartex-service/internal/domain/customer"
	"impriartex-service/internal/domain/equipment"
	"impriartex-service/internal/domain/identity"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOpen      Status = "Open"
	StatusAssigned  Status = "Assigned"
	StatusCompleted Status = "Completed"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool { return s == StatusCompleted }

// Resolvable reports whether a ticket in this state may be completed.
func (s Status) Resolvable() bool { return s == StatusOpen || s == StatusAssigned }

// Ticket is a service request against one piece of equipment.
// EquipmentID, CustomerID, TechnicianID and CreatedAt never change after creation.
type Ticket struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	EquipmentID     uuid.UUID  `json:"equipment_id" db:"equipment_id"`
	CustomerID      uuid.UUID  `json:"customer_id" db:"customer_id"`
	TechnicianID    *uuid.UUID `json:"technician_id,omitempty" db:"technician_id"`
	Description     string     `json:"description" db:"description"`
	Status          Status     `json:"status" db:"status"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	ResolutionNotes *string    `json:"resolution_notes,omitempty" db:"resolution_notes"`
}

// AssignedTo reports whether id is the ticket's technician.
func (t *Ticket) AssignedTo(id uuid.UUID) bool {
	return t.TechnicianID != nil && *t.TechnicianID == id
}

// View is a ticket with the equipment and customer it refers to.
type View struct {
	Ticket
	Equipment      equipment.Equipment `json:"equipment"`
	Customer       customer.Customer   `json:"customer"`
	TechnicianName *string             `json:"technician_name,omitempty"`
}

// Filter shapes ticket queries. A nil TechnicianID means no restriction.
type Filter struct {
	TechnicianID *uuid.UUID
}

// VisibleTo returns the filter for the tickets actor may see. Technicians only see
// tickets assigned to them; supervisors and clients see all tickets.
func VisibleTo(actor identity.Identity) Filter {
	if actor.IsTechnician() {
		id := actor.ID
		return Filter{TechnicianID: &id}
	}
	return Filter{}
}
