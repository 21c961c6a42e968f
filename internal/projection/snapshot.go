// Package projection keeps a role-filtered, read-only copy of the entity store for one
// session and refreshes it whenever the change feed fires.
package projection

import (
	"context"
	"fmt"
	"time"

	"impriartex-service/internal/domain/customer"
	"impriartex-service/internal/domain/equipment"
	"impriartex-service/internal/domain/identity"
	"impriartex-service/internal/domain/technician"
	"impriartex-service/internal/domain/ticket"
)

// Loader reads the four collections a projection is built from.
type Loader interface {
	ListCustomers(ctx context.Context) ([]customer.Customer, error)
	ListEquipment(ctx context.Context) ([]equipment.View, error)
	ListTechnicians(ctx context.Context) ([]technician.Profile, error)
	ListTickets(ctx context.Context, filter ticket.Filter) ([]ticket.View, error)
}

type Snapshot struct {
	Customers   []customer.Customer  `json:"customers"`
	Equipment   []equipment.View     `json:"equipment"`
	Technicians []technician.Profile `json:"technicians"`
	Tickets     []ticket.View        `json:"tickets"`
	LoadedAt    time.Time            `json:"loaded_at"`
}

// Summary holds the dashboard counters.
type Summary struct {
	Open        int `json:"open"`
	InAttention int `json:"in_attention"`
	Completed   int `json:"completed"`
	Tickets     int `json:"tickets"`
	Fleet       int `json:"fleet"`
}

// Load reads a complete snapshot as seen by actor.
func Load(ctx context.Context, loader Loader, actor identity.Identity) (*Snapshot, error) {
	customers, err := loader.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}

	items, err := loader.ListEquipment(ctx)
	if err != nil {
		return nil, fmt.Errorf("load equipment: %w", err)
	}

	technicians, err := loader.ListTechnicians(ctx)
	if err != nil {
		return nil, fmt.Errorf("load technicians: %w", err)
	}

	tickets, err := loader.ListTickets(ctx, ticket.VisibleTo(actor))
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}

	return &Snapshot{
		Customers:   customers,
		Equipment:   items,
		Technicians: technicians,
		Tickets:     tickets,
		LoadedAt:    time.Now().UTC(),
	}, nil
}

// Clone deep-copies the snapshot, pointer fields included, so callers cannot mutate
// cached state.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{
		Customers:   cloneEach(s.Customers, cloneCustomer),
		Equipment:   cloneEach(s.Equipment, cloneEquipment),
		Technicians: append([]technician.Profile(nil), s.Technicians...),
		Tickets:     cloneEach(s.Tickets, cloneTicket),
		LoadedAt:    s.LoadedAt,
	}
}

func cloneEach[T any](in []T, clone func(T) T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = clone(v)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneCustomer(c customer.Customer) customer.Customer {
	c.AssignedTechID = clonePtr(c.AssignedTechID)
	return c
}

func cloneEquipment(v equipment.View) equipment.View {
	v.CustomerID = clonePtr(v.CustomerID)
	v.CustomerName = clonePtr(v.CustomerName)
	return v
}

func cloneTicket(v ticket.View) ticket.View {
	v.TechnicianID = clonePtr(v.TechnicianID)
	v.CompletedAt = clonePtr(v.CompletedAt)
	v.ResolutionNotes = clonePtr(v.ResolutionNotes)
	v.TechnicianName = clonePtr(v.TechnicianName)
	v.Equipment.CustomerID = clonePtr(v.Equipment.CustomerID)
	v.Customer = cloneCustomer(v.Customer)
	return v
}

func (s *Snapshot) Summary() Summary {
	sum := Summary{
		Tickets: len(s.Tickets),
		Fleet:   len(s.Equipment),
	}
	for _, t := range s.Tickets {
		switch t.Status {
		case ticket.StatusOpen:
			sum.Open++
		case ticket.StatusAssigned:
			sum.InAttention++
		case ticket.StatusCompleted:
			sum.Completed++
		}
	}
	return sum
}
