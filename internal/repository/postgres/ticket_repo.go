// internal/repository/postgres/ticket_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"impriartex-service/internal/domain/ticket"
	xerrors "impriartex-service/internal/pkg/errors"

	"github.com/google/uuid"
)

const ticketViewSelect = `
		SELECT t.id, t.equipment_id, t.customer_id, t.technician_id, t.description,
		       t.status, t.created_at, t.completed_at, t.resolution_notes,
		       e.id, e.physical_location, e.location_details, e.model, e.brand,
		       e.serial, e.ip_address, e.customer_id, e.status, e.created_at,
		       c.id, c.name, c.assigned_tech_id, c.created_at,
		       p.full_name
		FROM tickets t
		JOIN equipment e ON e.id = t.equipment_id
		JOIN customers c ON c.id = t.customer_id
		LEFT JOIN profiles p ON p.id = t.technician_id
`

type TicketRepository struct {
	db DBTX
}

func NewTicketRepository(db DBTX) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create inserts a new ticket
func (r *TicketRepository) Create(ctx context.Context, t *ticket.Ticket) error {
	query := `
		INSERT INTO tickets (
			id, equipment_id, customer_id, technician_id, description, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(
		ctx, query,
		t.ID, t.EquipmentID, t.CustomerID, t.TechnicianID, t.Description, string(t.Status), t.CreatedAt,
	)
	if err != nil {
		return mapWriteError(err, "create ticket")
	}
	return nil
}

// FindByID retrieves a bare ticket by ID
func (r *TicketRepository) FindByID(ctx context.Context, id uuid.UUID) (*ticket.Ticket, error) {
	query := `
		SELECT id, equipment_id, customer_id, technician_id, description,
		       status, created_at, completed_at, resolution_notes
		FROM tickets
		WHERE id = $1
	`

	var (
		t      ticket.Ticket
		status string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.EquipmentID, &t.CustomerID, &t.TechnicianID, &t.Description,
		&status, &t.CreatedAt, &t.CompletedAt, &t.ResolutionNotes,
	)
	if err != nil {
		return nil, mapReadError(err, "find ticket")
	}
	t.Status = ticket.Status(status)
	return &t, nil
}

// FindViewByID retrieves a ticket joined with its equipment, customer and technician
func (r *TicketRepository) FindViewByID(ctx context.Context, id uuid.UUID) (*ticket.View, error) {
	query := ticketViewSelect + `		WHERE t.id = $1`

	v, err := scanTicketView(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapReadError(err, "find ticket")
	}
	return v, nil
}

// ListTickets returns ticket views newest first. A technician filter is applied in SQL.
func (r *TicketRepository) ListTickets(ctx context.Context, filter ticket.Filter) ([]ticket.View, error) {
	query := ticketViewSelect
	args := []any{}
	if filter.TechnicianID != nil {
		query += `		WHERE t.technician_id = $1
`
		args = append(args, *filter.TechnicianID)
	}
	query += `		ORDER BY t.created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapReadError(err, "list tickets")
	}
	defer rows.Close()

	tickets := []ticket.View{}
	for rows.Next() {
		v, err := scanTicketView(rows)
		if err != nil {
			return nil, mapReadError(err, "scan ticket")
		}
		tickets = append(tickets, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapReadError(err, "list tickets")
	}

	return tickets, nil
}

// Acknowledge moves an open ticket to Assigned for its technician
func (r *TicketRepository) Acknowledge(ctx context.Context, id, technicianID uuid.UUID) error {
	query := `
		UPDATE tickets
		SET status = $1
		WHERE id = $2 AND technician_id = $3 AND status = $4
	`

	tag, err := r.db.Exec(ctx, query, string(ticket.StatusAssigned), id, technicianID, string(ticket.StatusOpen))
	if err != nil {
		return mapWriteError(err, "acknowledge ticket")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: ticket %s is not open for this technician", xerrors.ErrInvalidTransition, id)
	}
	return nil
}

// Complete marks a ticket Completed. The update only matches while the ticket is still
// resolvable and owned by technicianID, so a concurrent resolve cannot complete it twice.
func (r *TicketRepository) Complete(ctx context.Context, id, technicianID uuid.UUID, notes string, at time.Time) error {
	query := `
		UPDATE tickets
		SET status = $1, completed_at = $2, resolution_notes = $3
		WHERE id = $4 AND technician_id = $5 AND status IN ($6, $7)
	`

	tag, err := r.db.Exec(
		ctx, query,
		string(ticket.StatusCompleted), at, notes, id, technicianID,
		string(ticket.StatusOpen), string(ticket.StatusAssigned),
	)
	if err != nil {
		return mapWriteError(err, "complete ticket")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: ticket %s is no longer resolvable", xerrors.ErrInvalidTransition, id)
	}
	return nil
}

func scanTicketView(row rowScanner) (*ticket.View, error) {
	var (
		v      ticket.View
		status string
	)
	err := row.Scan(
		&v.ID, &v.EquipmentID, &v.CustomerID, &v.TechnicianID, &v.Description,
		&status, &v.CreatedAt, &v.CompletedAt, &v.ResolutionNotes,
		&v.Equipment.ID, &v.Equipment.PhysicalLocation, &v.Equipment.LocationDetails, &v.Equipment.Model, &v.Equipment.Brand,
		&v.Equipment.Serial, &v.Equipment.IPAddress, &v.Equipment.CustomerID, &v.Equipment.Status, &v.Equipment.CreatedAt,
		&v.Customer.ID, &v.Customer.Name, &v.Customer.AssignedTechID, &v.Customer.CreatedAt,
		&v.TechnicianName,
	)
	if err != nil {
		return nil, err
	}
	v.Status = ticket.Status(status)
	return &v, nil
}
