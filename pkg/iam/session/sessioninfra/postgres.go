// Package sessioninfra implements the session repository on PostgreSQL.
package sessioninfra

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/klubhub/klubhub/pkg/errx"
	"github.com/klubhub/klubhub/pkg/iam/session"
	"github.com/klubhub/klubhub/pkg/kernel"
)

// PostgresSessionRepository implements session.Repository on PostgreSQL.
type PostgresSessionRepository struct {
	db *sqlx.DB
}

// NewPostgresSessionRepository creates the repository.
func NewPostgresSessionRepository(db *sqlx.DB) session.Repository {
	return &PostgresSessionRepository{db: db}
}

func (r *PostgresSessionRepository) Create(ctx context.Context, s *session.Session) error {
	query := `
		INSERT INTO sessions (id, principal_id, token_hash, expires_at, created_at)
		VALUES (:id, :principal_id, :token_hash, :expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return errx.Wrap(err, "failed to create session", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresSessionRepository) FindLiveByTokenHash(ctx context.Context, tokenHash string) (*session.Session, error) {
	var s session.Session
	query := `SELECT * FROM sessions WHERE token_hash = $1 AND expires_at > NOW()`
	err := r.db.GetContext(ctx, &s, query, tokenHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, session.ErrInvalidRefreshToken()
		}
		return nil, errx.Wrap(err, "failed to find session", errx.TypeInternal)
	}
	return &s, nil
}

// Rotate deletes the old session and inserts the new one in a single
// transaction. The delete counts only live rows; zero rows means the caller
// presented an unknown, expired or already-rotated token.
func (r *PostgresSessionRepository) Rotate(ctx context.Context, oldHash string, next *session.Session) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin rotation", errx.TypeInternal)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE token_hash = $1 AND expires_at > NOW()`, oldHash)
	if err != nil {
		return errx.Wrap(err, "failed to revoke old session", errx.TypeInternal)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if affected == 0 {
		return session.ErrInvalidRefreshToken()
	}

	_, err = tx.NamedExecContext(ctx,
		`INSERT INTO sessions (id, principal_id, token_hash, expires_at, created_at)
		 VALUES (:id, :principal_id, :token_hash, :expires_at, :created_at)`, next)
	if err != nil {
		return errx.Wrap(err, "failed to insert rotated session", errx.TypeInternal)
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit rotation", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	// Logout is idempotent; deleting a missing session is not an error.
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return errx.Wrap(err, "failed to delete session", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresSessionRepository) DeleteAllForPrincipal(ctx context.Context, principalID kernel.PrincipalID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE principal_id = $1`, principalID.String()); err != nil {
		return errx.Wrap(err, "failed to delete sessions for principal", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, errx.Wrap(err, "failed to delete expired sessions", errx.TypeInternal)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	return deleted, nil
}
