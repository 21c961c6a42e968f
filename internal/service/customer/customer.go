// internal/service/customer/customer.go
package customer

import (
	"context"
	"errors"
	"fmt"

	"impriartex-service/internal/changefeed"
	"impriartex-service/internal/domain/customer"
	"impriartex-service/internal/domain/identity"
	"impriartex-service/internal/domain/technician"
	xerrors "impriartex-service/internal/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CustomerStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error)
	AssignTechnician(ctx context.Context, id uuid.UUID, technicianID *uuid.UUID) error
	ListCustomers(ctx context.Context) ([]customer.Customer, error)
}

type TechnicianStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*technician.Profile, error)
	ListTechnicians(ctx context.Context) ([]technician.Profile, error)
}

type CustomerService struct {
	customers   CustomerStore
	technicians TechnicianStore
	notifier    changefeed.Notifier
	logger      *zap.Logger
}

func NewCustomerService(customers CustomerStore, technicians TechnicianStore, notifier changefeed.Notifier, logger *zap.Logger) *CustomerService {
	if notifier == nil {
		notifier = changefeed.NopNotifier{}
	}
	return &CustomerService{
		customers:   customers,
		technicians: technicians,
		notifier:    notifier,
		logger:      logger,
	}
}

// AssignTechnician sets the technician that future tickets of the customer route to.
// Existing tickets keep their technician. A nil technician clears the assignment.
func (s *CustomerService) AssignTechnician(ctx context.Context, actor identity.Identity, customerID uuid.UUID, technicianID *uuid.UUID) (*customer.Customer, error) {
	if !actor.IsSupervisor() {
		return nil, fmt.Errorf("%w: only supervisors can assign technicians", xerrors.ErrPermissionDenied)
	}
	if technicianID != nil && *technicianID == uuid.Nil {
		technicianID = nil
	}

	if technicianID != nil {
		profile, err := s.technicians.FindByID(ctx, *technicianID)
		if err != nil {
			if errors.Is(err, xerrors.ErrNotFound) {
				return nil, fmt.Errorf("%w: technician %s does not exist", xerrors.ErrInvalidInput, technicianID)
			}
			return nil, fmt.Errorf("failed to load technician: %w", err)
		}
		if profile.Role != technician.RoleTag {
			return nil, fmt.Errorf("%w: profile %s is not a technician", xerrors.ErrInvalidInput, profile.FullName)
		}
	}

	if err := s.customers.AssignTechnician(ctx, customerID, technicianID); err != nil {
		return nil, err
	}

	c, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if err := s.notifier.Notify(ctx, changefeed.NewEvent(changefeed.TableCustomers, changefeed.OpUpdate, customerID.String())); err != nil {
		s.logger.Warn("failed to announce change", zap.Error(err))
	}

	s.logger.Info("customer routing updated",
		zap.String("customer_id", customerID.String()),
		zap.Bool("has_technician", c.HasTechnician()),
	)
	return c, nil
}

func (s *CustomerService) ListCustomers(ctx context.Context) ([]customer.Customer, error) {
	customers, err := s.customers.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, nil
}

func (s *CustomerService) ListTechnicians(ctx context.Context) ([]technician.Profile, error) {
	profiles, err := s.technicians.ListTechnicians(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list technicians: %w", err)
	}
	return profiles, nil
}
