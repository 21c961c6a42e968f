// internal/repository/postgres/repositories.go
package postgres

import (
	"context"

	"impriartex-service/internal/domain/customer"
	"impriartex-service/internal/domain/equipment"
	"impriartex-service/internal/domain/technician"
	"impriartex-service/internal/domain/ticket"
)

// Repositories groups the stores backed by one connection pool.
type Repositories struct {
	Customers   *CustomerRepository
	Technicians *TechnicianRepository
	Equipment   *EquipmentRepository
	Tickets     *TicketRepository
}

func NewRepositories(db DBTX) *Repositories {
	return &Repositories{
		Customers:   NewCustomerRepository(db),
		Technicians: NewTechnicianRepository(db),
		Equipment:   NewEquipmentRepository(db),
		Tickets:     NewTicketRepository(db),
	}
}

// The methods below let Repositories feed a session projection.

func (r *Repositories) ListCustomers(ctx context.Context) ([]customer.Customer, error) {
	return r.Customers.ListCustomers(ctx)
}

func (r *Repositories) ListEquipment(ctx context.Context) ([]equipment.View, error) {
	return r.Equipment.ListEquipment(ctx)
}

func (r *Repositories) ListTechnicians(ctx context.Context) ([]technician.Profile, error) {
	return r.Technicians.ListTechnicians(ctx)
}

func (r *Repositories) ListTickets(ctx context.Context, filter ticket.Filter) ([]ticket.View, error) {
	return r.Tickets.ListTickets(ctx, filter)
}
