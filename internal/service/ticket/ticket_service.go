// internal/service/ticket/ticket_service.go
package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"impriartex-service/internal/changefeed"
	"impriartex-service/internal/domain/customer"
	"impriartex-service/internal/domain/equipment"
	"impriartex-service/internal/domain/identity"
	"impriartex-service/internal/domain/ticket"
	"impriartex-service/internal/metrics"
	xerrors "impriartex-service/internal/pkg/errors"
	"impriartex-service/internal/service/routing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TicketStore interface {
	Create(ctx context.Context, t *ticket.Ticket) error
	FindByID(ctx context.Context, id uuid.UUID) (*ticket.Ticket, error)
	FindViewByID(ctx context.Context, id uuid.UUID) (*ticket.View, error)
	ListTickets(ctx context.Context, filter ticket.Filter) ([]ticket.View, error)
	Acknowledge(ctx context.Context, id, technicianID uuid.UUID) error
	Complete(ctx context.Context, id, technicianID uuid.UUID, notes string, at time.Time) error
}

type EquipmentFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*equipment.Equipment, error)
}

type CustomerFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error)
}

// TicketService owns the ticket state machine: Open -> Assigned -> Completed.
type TicketService struct {
	tickets   TicketStore
	equipment EquipmentFinder
	customers CustomerFinder
	notifier  changefeed.Notifier
	logger    *zap.Logger
	now       func() time.Time
}

func NewTicketService(
	tickets TicketStore,
	equipment EquipmentFinder,
	customers CustomerFinder,
	notifier changefeed.Notifier,
	logger *zap.Logger,
) *TicketService {
	if notifier == nil {
		notifier = changefeed.NopNotifier{}
	}
	return &TicketService{
		tickets:   tickets,
		equipment: equipment,
		customers: customers,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateTicket routes a new request to the technician of the equipment's customer.
// Nothing is written when routing fails.
func (s *TicketService) CreateTicket(ctx context.Context, actor identity.Identity, req *ticket.CreateTicketRequest) (*ticket.Ticket, error) {
	if !actor.HasRole(identity.RoleClient, identity.RoleSupervisor) {
		return nil, fmt.Errorf("%w: role %s cannot open tickets", xerrors.ErrPermissionDenied, actor.Role)
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", xerrors.ErrInvalidInput)
	}

	eq, err := s.equipment.FindByID(ctx, req.EquipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load equipment: %w", err)
	}

	technicianID, err := s.route(ctx, eq)
	if err != nil {
		if errors.Is(err, xerrors.ErrRoutingUnresolved) {
			metrics.RoutingFailures.Inc()
			s.logger.Info("ticket routing unresolved",
				zap.String("equipment_id", eq.ID.String()),
				zap.String("actor_id", actor.ID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	t := &ticket.Ticket{
		ID:           uuid.New(),
		EquipmentID:  eq.ID,
		CustomerID:   *eq.CustomerID,
		TechnicianID: &technicianID,
		Description:  description,
		Status:       ticket.StatusOpen,
		CreatedAt:    s.now(),
	}

	if err := s.tickets.Create(ctx, t); err != nil {
		s.logger.Error("failed to create ticket", zap.Error(err))
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	metrics.TicketsCreated.Inc()
	s.notify(ctx, changefeed.TableTickets, changefeed.OpInsert, t.ID)

	s.logger.Info("ticket created",
		zap.String("ticket_id", t.ID.String()),
		zap.String("equipment_id", t.EquipmentID.String()),
		zap.String("technician_id", technicianID.String()),
	)

	return t, nil
}

// AcknowledgeTicket lets the assigned technician take an open ticket.
func (s *TicketService) AcknowledgeTicket(ctx context.Context, actor identity.Identity, id uuid.UUID) (*ticket.Ticket, error) {
	t, err := s.assignedTicket(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if t.Status != ticket.StatusOpen {
		return nil, fmt.Errorf("%w: ticket is %s", xerrors.ErrInvalidTransition, t.Status)
	}

	if err := s.tickets.Acknowledge(ctx, id, actor.ID); err != nil {
		return nil, fmt.Errorf("failed to acknowledge ticket: %w", err)
	}

	t.Status = ticket.StatusAssigned
	s.notify(ctx, changefeed.TableTickets, changefeed.OpUpdate, t.ID)

	s.logger.Info("ticket acknowledged",
		zap.String("ticket_id", id.String()),
		zap.String("technician_id", actor.ID.String()),
	)

	return t, nil
}

// ResolveTicket completes a ticket. Only the assigned technician may do so, with a
// non-empty note, while the ticket is Open or Assigned.
func (s *TicketService) ResolveTicket(ctx context.Context, actor identity.Identity, id uuid.UUID, notes string) (*ticket.Ticket, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, fmt.Errorf("%w: resolution notes are required", xerrors.ErrInvalidInput)
	}

	t, err := s.assignedTicket(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !t.Status.Resolvable() {
		return nil, fmt.Errorf("%w: ticket is %s", xerrors.ErrInvalidTransition, t.Status)
	}

	completedAt := s.now()
	if err := s.tickets.Complete(ctx, id, actor.ID, notes, completedAt); err != nil {
		return nil, fmt.Errorf("failed to resolve ticket: %w", err)
	}

	t.Status = ticket.StatusCompleted
	t.CompletedAt = &completedAt
	t.ResolutionNotes = &notes

	metrics.TicketsResolved.Inc()
	s.notify(ctx, changefeed.TableTickets, changefeed.OpUpdate, t.ID)

	s.logger.Info("ticket resolved",
		zap.String("ticket_id", id.String()),
		zap.String("technician_id", actor.ID.String()),
	)

	return t, nil
}

// ListTickets returns the tickets visible to actor, newest first.
func (s *TicketService) ListTickets(ctx context.Context, actor identity.Identity) ([]ticket.View, error) {
	tickets, err := s.tickets.ListTickets(ctx, ticket.VisibleTo(actor))
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

// GetTicket returns one ticket; tickets outside a technician's view are reported as missing.
func (s *TicketService) GetTicket(ctx context.Context, actor identity.Identity, id uuid.UUID) (*ticket.View, error) {
	v, err := s.tickets.FindViewByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsTechnician() && !v.AssignedTo(actor.ID) {
		return nil, xerrors.ErrNotFound
	}
	return v, nil
}

// ========== Helper Methods ==========

func (s *TicketService) route(ctx context.Context, eq *equipment.Equipment) (uuid.UUID, error) {
	var known []customer.Customer
	if eq.CustomerID != nil {
		c, err := s.customers.FindByID(ctx, *eq.CustomerID)
		switch {
		case err == nil:
			known = append(known, *c)
		case errors.Is(err, xerrors.ErrNotFound):
		default:
			return uuid.Nil, fmt.Errorf("failed to load customer: %w", err)
		}
	}
	return routing.Resolve(eq, routing.FromSlice(known))
}

func (s *TicketService) assignedTicket(ctx context.Context, actor identity.Identity, id uuid.UUID) (*ticket.Ticket, error) {
	if !actor.IsTechnician() {
		return nil, fmt.Errorf("%w: only the assigned technician can change a ticket", xerrors.ErrPermissionDenied)
	}

	t, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.AssignedTo(actor.ID) {
		return nil, fmt.Errorf("%w: ticket is assigned to another technician", xerrors.ErrPermissionDenied)
	}
	return t, nil
}

func (s *TicketService) notify(ctx context.Context, table changefeed.Table, op changefeed.Op, id uuid.UUID) {
	if err := s.notifier.Notify(ctx, changefeed.NewEvent(table, op, id.String())); err != nil {
		s.logger.Warn("failed to announce change", zap.String("table", string(table)), zap.Error(err))
	}
}
