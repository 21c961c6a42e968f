// internal/repository/postgres/technician_repo.go
package postgres

import (
	"context"

	"impriartex-service/internal/domain/technician"

	"github.com/google/uuid"
)

// TechnicianRepository reads the externally provisioned profiles table.
type TechnicianRepository struct {
	db DBTX
}

func NewTechnicianRepository(db DBTX) *TechnicianRepository {
	return &TechnicianRepository{db: db}
}

func (r *TechnicianRepository) FindByID(ctx context.Context, id uuid.UUID) (*technician.Profile, error) {
	query := `SELECT id, full_name, role FROM profiles WHERE id = $1`

	var p technician.Profile
	if err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.FullName, &p.Role); err != nil {
		return nil, mapReadError(err, "find profile")
	}
	return &p, nil
}

// ListTechnicians returns profiles whose role is technician
func (r *TechnicianRepository) ListTechnicians(ctx context.Context) ([]technician.Profile, error) {
	query := `
		SELECT id, full_name, role
		FROM profiles
		WHERE role = $1
		ORDER BY full_name ASC
	`

	rows, err := r.db.Query(ctx, query, technician.RoleTag)
	if err != nil {
		return nil, mapReadError(err, "list technicians")
	}
	defer rows.Close()

	profiles := []technician.Profile{}
	for rows.Next() {
		var p technician.Profile
		if err := rows.Scan(&p.ID, &p.FullName, &p.Role); err != nil {
			return nil, mapReadError(err, "scan profile")
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapReadError(err, "list technicians")
	}

	return profiles, nil
}
