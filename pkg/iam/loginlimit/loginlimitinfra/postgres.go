// Package loginlimitinfra implements the login attempt store on PostgreSQL.
package loginlimitinfra

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/klubhub/klubhub/pkg/errx"
	"github.com/klubhub/klubhub/pkg/iam/loginlimit"
)

// PostgresAttemptRepository implements loginlimit.Repository on PostgreSQL.
type PostgresAttemptRepository struct {
	db *sqlx.DB
}

// NewPostgresAttemptRepository creates the repository.
func NewPostgresAttemptRepository(db *sqlx.DB) loginlimit.Repository {
	return &PostgresAttemptRepository{db: db}
}

func (r *PostgresAttemptRepository) Record(ctx context.Context, attempt *loginlimit.Attempt) error {
	query := `
		INSERT INTO login_attempts (id, principal_id, identifier, ip, success, occurred_at)
		VALUES (:id, :principal_id, :identifier, :ip, :success, :occurred_at)`
	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		return errx.Wrap(err, "failed to record login attempt", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresAttemptRepository) FailuresSince(ctx context.Context, identifier, ip string, since time.Time) ([]loginlimit.Attempt, error) {
	var attempts []loginlimit.Attempt
	query := `
		SELECT * FROM login_attempts
		WHERE identifier = $1 AND ip = $2 AND success = false AND occurred_at >= $3
		ORDER BY occurred_at DESC`
	err := r.db.SelectContext(ctx, &attempts, query, identifier, ip, since)
	if err != nil {
		return nil, errx.Wrap(err, "failed to load login attempts", errx.TypeInternal)
	}
	return attempts, nil
}

func (r *PostgresAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, errx.Wrap(err, "failed to prune login attempts", errx.TypeInternal)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	return deleted, nil
}
