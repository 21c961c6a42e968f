// internal/repository/postgres/customer_repo.go
package postgres

import (
	"context"

	"impriartex-service/internal/domain/customer"
	xerrors "impriartex-service/internal/pkg/errors"

	"github.com/google/uuid"
)

type CustomerRepository struct {
	db DBTX
}

func NewCustomerRepository(db DBTX) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// FindByID retrieves a customer by ID
func (r *CustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	query := `
		SELECT id, name, assigned_tech_id, created_at
		FROM customers
		WHERE id = $1
	`

	var c customer.Customer
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.AssignedTechID, &c.CreatedAt)
	if err != nil {
		return nil, mapReadError(err, "find customer")
	}
	return &c, nil
}

// ListCustomers returns every customer ordered by name
func (r *CustomerRepository) ListCustomers(ctx context.Context) ([]customer.Customer, error) {
	query := `
		SELECT id, name, assigned_tech_id, created_at
		FROM customers
		ORDER BY name ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, mapReadError(err, "list customers")
	}
	defer rows.Close()

	customers := []customer.Customer{}
	for rows.Next() {
		var c customer.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.AssignedTechID, &c.CreatedAt); err != nil {
			return nil, mapReadError(err, "scan customer")
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapReadError(err, "list customers")
	}

	return customers, nil
}

// AssignTechnician sets or clears the routing technician of a customer
func (r *CustomerRepository) AssignTechnician(ctx context.Context, id uuid.UUID, technicianID *uuid.UUID) error {
	query := `UPDATE customers SET assigned_tech_id = $1 WHERE id = $2`

	tag, err := r.db.Exec(ctx, query, technicianID, id)
	if err != nil {
		return mapWriteError(err, "assign technician")
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
