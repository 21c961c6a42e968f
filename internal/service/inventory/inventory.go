// internal/service/inventory/inventory.go
package inventory

import (
	"context"
	"fmt"
	"strings"

	"impriartex-service/internal/changefeed"
	"impriartex-service/internal/domain/customer"
	"impriartex-service/internal/domain/equipment"
	"impriartex-service/internal/domain/identity"
	"impriartex-service/internal/metrics"
	xerrors "impriartex-service/internal/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EquipmentStore interface {
	Create(ctx context.Context, eq *equipment.Equipment) error
	InsertBatch(ctx context.Context, rows []equipment.Equipment) (int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*equipment.Equipment, error)
	UpdateCustomer(ctx context.Context, id uuid.UUID, customerID *uuid.UUID) error
	ListEquipment(ctx context.Context) ([]equipment.View, error)
}

// CustomerLister resolves import institution references given by name.
type CustomerLister interface {
	ListCustomers(ctx context.Context) ([]customer.Customer, error)
}

type InventoryService struct {
	store        EquipmentStore
	customers    CustomerLister
	notifier     changefeed.Notifier
	defaultBrand string
	logger       *zap.Logger
}

// NewInventoryService builds the service. customers may be nil, in which case institution
// names in an import are not resolved and those rows are imported unlinked.
func NewInventoryService(store EquipmentStore, customers CustomerLister, notifier changefeed.Notifier, defaultBrand string, logger *zap.Logger) *InventoryService {
	if notifier == nil {
		notifier = changefeed.NopNotifier{}
	}
	if defaultBrand == "" {
		defaultBrand = equipment.DefaultBrand
	}
	return &InventoryService{
		store:        store,
		customers:    customers,
		notifier:     notifier,
		defaultBrand: defaultBrand,
		logger:       logger,
	}
}

// Import parses text and submits every accepted row as one all-or-nothing batch.
// An empty or header-only payload returns 0 without touching the store. Institution
// references that are not ids are matched against customer names; rows whose
// reference matches no customer are imported without an owner.
func (s *InventoryService) Import(ctx context.Context, actor identity.Identity, text string) (*equipment.ImportResult, error) {
	if !actor.IsSupervisor() {
		return nil, fmt.Errorf("%w: only supervisors can import inventory", xerrors.ErrPermissionDenied)
	}

	rows := ParseImport(text, s.defaultBrand)
	if len(rows) == 0 {
		return &equipment.ImportResult{Imported: 0}, nil
	}

	batch, unlinked, err := s.linkInstitutions(ctx, rows)
	if err != nil {
		return nil, err
	}

	n, err := s.store.InsertBatch(ctx, batch)
	if err != nil {
		metrics.ImportsRejected.Inc()
		s.logger.Warn("inventory import rejected",
			zap.Int("rows", len(rows)),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.EquipmentImported.Add(float64(n))
	s.notify(ctx, changefeed.NewEvent(changefeed.TableEquipment, changefeed.OpInsert, ""))

	s.logger.Info("inventory imported", zap.Int64("rows", n), zap.Int("unlinked", unlinked))
	return &equipment.ImportResult{Imported: int(n), Unlinked: unlinked}, nil
}

// linkInstitutions turns parsed rows into the insert batch. Customers are only loaded
// when some row names its institution instead of giving an id.
func (s *InventoryService) linkInstitutions(ctx context.Context, rows []ImportRow) ([]equipment.Equipment, int, error) {
	var byName map[string]uuid.UUID
	for _, r := range rows {
		if r.CustomerID == nil && r.Institution != "" && s.customers != nil {
			customers, err := s.customers.ListCustomers(ctx)
			if err != nil {
				return nil, 0, fmt.Errorf("failed to load customers for import: %w", err)
			}
			byName = make(map[string]uuid.UUID, len(customers))
			for _, c := range customers {
				byName[strings.ToLower(strings.TrimSpace(c.Name))] = c.ID
			}
			break
		}
	}

	batch := make([]equipment.Equipment, len(rows))
	unlinked := 0
	for i, r := range rows {
		eq := r.Equipment
		if eq.CustomerID == nil && r.Institution != "" {
			if id, ok := byName[strings.ToLower(r.Institution)]; ok {
				eq.CustomerID = &id
			} else {
				unlinked++
				s.logger.Debug("import institution not found",
					zap.String("serial", eq.Serial),
					zap.String("institution", r.Institution),
				)
			}
		}
		batch[i] = eq
	}
	return batch, unlinked, nil
}

// CreateEquipment inserts a single piece of equipment with the import defaults applied.
func (s *InventoryService) CreateEquipment(ctx context.Context, actor identity.Identity, req *equipment.CreateEquipmentRequest) (*equipment.Equipment, error) {
	if !actor.IsSupervisor() {
		return nil, fmt.Errorf("%w: only supervisors can register equipment", xerrors.ErrPermissionDenied)
	}

	eq := &equipment.Equipment{
		ID:               uuid.New(),
		PhysicalLocation: strings.TrimSpace(req.PhysicalLocation),
		LocationDetails:  strings.TrimSpace(req.LocationDetails),
		Model:            strings.TrimSpace(req.Model),
		Brand:            strings.TrimSpace(req.Brand),
		Serial:           strings.TrimSpace(req.Serial),
		IPAddress:        strings.TrimSpace(req.IPAddress),
		CustomerID:       req.CustomerID,
		Status:           equipment.DefaultStatus,
	}
	if eq.Serial == "" || eq.Model == "" {
		return nil, fmt.Errorf("%w: model and serial are required", xerrors.ErrInvalidInput)
	}
	if eq.Brand == "" {
		eq.Brand = s.defaultBrand
	}

	if err := s.store.Create(ctx, eq); err != nil {
		return nil, err
	}

	s.notify(ctx, changefeed.NewEvent(changefeed.TableEquipment, changefeed.OpInsert, eq.ID.String()))
	s.logger.Info("equipment registered",
		zap.String("equipment_id", eq.ID.String()),
		zap.String("serial", eq.Serial),
	)
	return eq, nil
}

// LinkEquipment sets the owning customer of a piece of equipment. A nil customer unlinks it.
func (s *InventoryService) LinkEquipment(ctx context.Context, actor identity.Identity, id uuid.UUID, customerID *uuid.UUID) (*equipment.Equipment, error) {
	if !actor.IsSupervisor() {
		return nil, fmt.Errorf("%w: only supervisors can link equipment", xerrors.ErrPermissionDenied)
	}
	if customerID != nil && *customerID == uuid.Nil {
		customerID = nil
	}

	if err := s.store.UpdateCustomer(ctx, id, customerID); err != nil {
		return nil, err
	}

	eq, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, changefeed.NewEvent(changefeed.TableEquipment, changefeed.OpUpdate, id.String()))
	return eq, nil
}

func (s *InventoryService) ListEquipment(ctx context.Context) ([]equipment.View, error) {
	items, err := s.store.ListEquipment(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list equipment: %w", err)
	}
	return items, nil
}

func (s *InventoryService) notify(ctx context.Context, ev changefeed.Event) {
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Warn("failed to announce change", zap.String("table", string(ev.Table)), zap.Error(err))
	}
}
