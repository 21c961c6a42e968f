// internal/repository/postgres/equipment_repo.go
package postgres

import (
	"context"
	"fmt"

	"impriartex-service/internal/domain/equipment"
	xerrors "impriartex-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var equipmentCopyColumns = []string{
	"id", "physical_location", "location_details", "model", "brand",
	"serial", "ip_address", "customer_id", "status",
}

type EquipmentRepository struct {
	db DBTX
}

func NewEquipmentRepository(db DBTX) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

// Create inserts a single equipment row
func (r *EquipmentRepository) Create(ctx context.Context, eq *equipment.Equipment) error {
	query := `
		INSERT INTO equipment (
			id, physical_location, location_details, model, brand,
			serial, ip_address, customer_id, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	if eq.ID == uuid.Nil {
		eq.ID = uuid.New()
	}

	err := r.db.QueryRow(
		ctx, query,
		eq.ID, eq.PhysicalLocation, eq.LocationDetails, eq.Model, eq.Brand,
		eq.Serial, eq.IPAddress, eq.CustomerID, eq.Status,
	).Scan(&eq.CreatedAt)
	if err != nil {
		return mapWriteError(err, "create equipment")
	}

	return nil
}

// InsertBatch copies all rows inside one transaction. Any constraint failure rolls the
// whole batch back.
func (r *EquipmentRepository) InsertBatch(ctx context.Context, rows []equipment.Equipment) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import: %w", err)
	}

	source := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		eq := &rows[i]
		if eq.ID == uuid.Nil {
			eq.ID = uuid.New()
		}
		return []any{
			eq.ID, eq.PhysicalLocation, eq.LocationDetails, eq.Model, eq.Brand,
			eq.Serial, eq.IPAddress, eq.CustomerID, eq.Status,
		}, nil
	})

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"equipment"}, equipmentCopyColumns, source)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, mapWriteError(err, "import equipment")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, mapWriteError(err, "commit import")
	}

	return n, nil
}

// FindByID retrieves equipment by ID
func (r *EquipmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*equipment.Equipment, error) {
	query := `
		SELECT id, physical_location, location_details, model, brand,
		       serial, ip_address, customer_id, status, created_at
		FROM equipment
		WHERE id = $1
	`

	var eq equipment.Equipment
	err := r.db.QueryRow(ctx, query, id).Scan(
		&eq.ID, &eq.PhysicalLocation, &eq.LocationDetails, &eq.Model, &eq.Brand,
		&eq.Serial, &eq.IPAddress, &eq.CustomerID, &eq.Status, &eq.CreatedAt,
	)
	if err != nil {
		return nil, mapReadError(err, "find equipment")
	}
	return &eq, nil
}

// UpdateCustomer links equipment to a customer, or unlinks it when customerID is nil
func (r *EquipmentRepository) UpdateCustomer(ctx context.Context, id uuid.UUID, customerID *uuid.UUID) error {
	query := `UPDATE equipment SET customer_id = $1 WHERE id = $2`

	tag, err := r.db.Exec(ctx, query, customerID, id)
	if err != nil {
		return mapWriteError(err, "link equipment")
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// ListEquipment returns every equipment row with its owner's name
func (r *EquipmentRepository) ListEquipment(ctx context.Context) ([]equipment.View, error) {
	query := `
		SELECT e.id, e.physical_location, e.location_details, e.model, e.brand,
		       e.serial, e.ip_address, e.customer_id, e.status, e.created_at,
		       c.name
		FROM equipment e
		LEFT JOIN customers c ON c.id = e.customer_id
		ORDER BY e.created_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, mapReadError(err, "list equipment")
	}
	defer rows.Close()

	items := []equipment.View{}
	for rows.Next() {
		var v equipment.View
		err := rows.Scan(
			&v.ID, &v.PhysicalLocation, &v.LocationDetails, &v.Model, &v.Brand,
			&v.Serial, &v.IPAddress, &v.CustomerID, &v.Status, &v.CreatedAt,
			&v.CustomerName,
		)
		if err != nil {
			return nil, mapReadError(err, "scan equipment")
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapReadError(err, "list equipment")
	}

	return items, nil
}
