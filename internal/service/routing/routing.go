// Package routing decides which technician handles a ticket for a piece of equipment.
package routing

import (
	"fmt"

	"impriartex-service/internal/domain/customer"
	"impriartex-service/internal/domain/equipment"
	xerrors "impriartex-service/internal/pkg/errors"

	"github.com/google/uuid"
)

// CustomerLookup returns the customer with the given id, if known.
type CustomerLookup func(id uuid.UUID) (*customer.Customer, bool)

// Resolve returns the technician assigned to the equipment's customer. The result is
// deterministic: a failure is always ErrRoutingUnresolved naming the missing link.
func Resolve(eq *equipment.Equipment, lookup CustomerLookup) (uuid.UUID, error) {
	if eq.CustomerID == nil || *eq.CustomerID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: equipment %s is not linked to a customer", xerrors.ErrRoutingUnresolved, eq.Serial)
	}

	c, ok := lookup(*eq.CustomerID)
	if !ok || c == nil {
		return uuid.Nil, fmt.Errorf("%w: customer %s of equipment %s does not exist", xerrors.ErrRoutingUnresolved, eq.CustomerID, eq.Serial)
	}

	if !c.HasTechnician() {
		return uuid.Nil, fmt.Errorf("%w: customer %s has no assigned technician", xerrors.ErrRoutingUnresolved, c.Name)
	}

	return *c.AssignedTechID, nil
}

// FromSlice builds a lookup over already-loaded customers.
func FromSlice(customers []customer.Customer) CustomerLookup {
	index := make(map[uuid.UUID]*customer.Customer, len(customers))
	for i := range customers {
		index[customers[i].ID] = &customers[i]
	}
	return func(id uuid.UUID) (*customer.Customer, bool) {
		c, ok := index[id]
		return c, ok
	}
}
