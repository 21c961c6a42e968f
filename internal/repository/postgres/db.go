// internal/repository/postgres/db.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	xerrors "impriartex-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the subset of *pgxpool.Pool the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ DBTX = (*pgxpool.Pool)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
)

// mapWriteError translates constraint failures into domain sentinels.
func mapWriteError(err error, action string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if pgErr.ConstraintName == "" || pgErr.ConstraintName == "equipment_serial_key" {
				return fmt.Errorf("%w: %s", xerrors.ErrDuplicateSerial, pgErr.Detail)
			}
			return fmt.Errorf("%w: %s", xerrors.ErrConstraintViolation, pgErr.Message)
		case pgForeignKeyViolation, pgCheckViolation, pgNotNullViolation:
			return fmt.Errorf("%w: %s", xerrors.ErrConstraintViolation, pgErr.Message)
		}
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// mapReadError marks failed reads as transient and missing rows as not found.
func mapReadError(err error, action string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrNotFound
	}
	return fmt.Errorf("%w: %s: %w", xerrors.ErrTransientFetch, action, err)
}
