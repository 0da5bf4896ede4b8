// Package principalinfra implements the principal repository on PostgreSQL.
package principalinfra

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/klubhub/klubhub/pkg/errx"
	"github.com/klubhub/klubhub/pkg/iam/principal"
	"github.com/klubhub/klubhub/pkg/kernel"
)

// PostgresPrincipalRepository implements principal.Repository on PostgreSQL.
type PostgresPrincipalRepository struct {
	db *sqlx.DB
}

// NewPostgresPrincipalRepository creates the repository.
func NewPostgresPrincipalRepository(db *sqlx.DB) principal.Repository {
	return &PostgresPrincipalRepository{db: db}
}

type principalPersistence struct {
	ID                       string         `db:"id"`
	TenantID                 string         `db:"tenant_id"`
	Role                     string         `db:"role"`
	Email                    string         `db:"email"`
	Username                 sql.NullString `db:"username"`
	PasswordHash             sql.NullString `db:"password_hash"`
	PINHash                  sql.NullString `db:"pin_hash"`
	EmailVerified            bool           `db:"email_verified"`
	EmailVerificationToken   sql.NullString `db:"email_verification_token"`
	EmailVerificationExpires sql.NullTime   `db:"email_verification_expires"`
	PasswordResetToken       sql.NullString `db:"password_reset_token"`
	PasswordResetExpires     sql.NullTime   `db:"password_reset_expires"`
	PINResetToken            sql.NullString `db:"pin_reset_token"`
	PINResetExpires          sql.NullTime   `db:"pin_reset_expires"`
	TwoFactorEnabled         bool           `db:"two_factor_enabled"`
	TwoFactorSecret          sql.NullString `db:"two_factor_secret"`
	TwoFactorBackupCodes     pq.StringArray `db:"two_factor_backup_codes"`
	CreatedAt                time.Time      `db:"created_at"`
	UpdatedAt                time.Time      `db:"updated_at"`
	LastLogin                sql.NullTime   `db:"last_login"`
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func toPersistence(p *principal.Principal) principalPersistence {
	return principalPersistence{
		ID:                       p.ID.String(),
		TenantID:                 p.TenantID.String(),
		Role:                     string(p.Role),
		Email:                    p.Email,
		Username:                 nullString(p.Username),
		PasswordHash:             nullString(p.PasswordHash),
		PINHash:                  nullString(p.PINHash),
		EmailVerified:            p.EmailVerified,
		EmailVerificationToken:   nullString(p.EmailVerificationToken),
		EmailVerificationExpires: nullTime(p.EmailVerificationExpires),
		PasswordResetToken:       nullString(p.PasswordResetToken),
		PasswordResetExpires:     nullTime(p.PasswordResetExpires),
		PINResetToken:            nullString(p.PINResetToken),
		PINResetExpires:          nullTime(p.PINResetExpires),
		TwoFactorEnabled:         p.TwoFactorEnabled,
		TwoFactorSecret:          nullString(p.TwoFactorSecret),
		TwoFactorBackupCodes:     pq.StringArray(p.TwoFactorBackupCodes),
		CreatedAt:                p.CreatedAt,
		UpdatedAt:                p.UpdatedAt,
		LastLogin:                nullTime(p.LastLogin),
	}
}

func toDomain(row principalPersistence) *principal.Principal {
	return &principal.Principal{
		ID:                       kernel.PrincipalID(row.ID),
		TenantID:                 kernel.TenantID(row.TenantID),
		Role:                     kernel.NormalizeRole(row.Role),
		Email:                    row.Email,
		Username:                 strPtr(row.Username),
		PasswordHash:             strPtr(row.PasswordHash),
		PINHash:                  strPtr(row.PINHash),
		EmailVerified:            row.EmailVerified,
		EmailVerificationToken:   strPtr(row.EmailVerificationToken),
		EmailVerificationExpires: timePtr(row.EmailVerificationExpires),
		PasswordResetToken:       strPtr(row.PasswordResetToken),
		PasswordResetExpires:     timePtr(row.PasswordResetExpires),
		PINResetToken:            strPtr(row.PINResetToken),
		PINResetExpires:          timePtr(row.PINResetExpires),
		TwoFactorEnabled:         row.TwoFactorEnabled,
		TwoFactorSecret:          strPtr(row.TwoFactorSecret),
		TwoFactorBackupCodes:     []string(row.TwoFactorBackupCodes),
		CreatedAt:                row.CreatedAt,
		UpdatedAt:                row.UpdatedAt,
		LastLogin:                timePtr(row.LastLogin),
	}
}

func (r *PostgresPrincipalRepository) Create(ctx context.Context, p *principal.Principal) error {
	query := `
		INSERT INTO principals (
			id, tenant_id, role, email, username, password_hash, pin_hash,
			email_verified, email_verification_token, email_verification_expires,
			password_reset_token, password_reset_expires,
			pin_reset_token, pin_reset_expires,
			two_factor_enabled, two_factor_secret, two_factor_backup_codes,
			created_at, updated_at, last_login
		) VALUES (
			:id, :tenant_id, :role, :email, :username, :password_hash, :pin_hash,
			:email_verified, :email_verification_token, :email_verification_expires,
			:password_reset_token, :password_reset_expires,
			:pin_reset_token, :pin_reset_expires,
			:two_factor_enabled, :two_factor_secret, :two_factor_backup_codes,
			:created_at, :updated_at, :last_login
		)`

	_, err := r.db.NamedExecContext(ctx, query, toPersistence(p))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			if strings.Contains(pqErr.Constraint, "username") {
				return principal.ErrUsernameTaken()
			}
			return principal.ErrEmailTaken()
		}
		return errx.Wrap(err, "failed to create principal", errx.TypeInternal).
			WithDetail("principal_id", p.ID.String())
	}
	return nil
}

func (r *PostgresPrincipalRepository) FindByID(ctx context.Context, id kernel.PrincipalID, tenantID kernel.TenantID) (*principal.Principal, error) {
	var row principalPersistence
	query := `SELECT * FROM principals WHERE id = $1 AND tenant_id = $2`
	err := r.db.GetContext(ctx, &row, query, id.String(), tenantID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, principal.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find principal by ID", errx.TypeInternal)
	}
	return toDomain(row), nil
}

func (r *PostgresPrincipalRepository) FindByIDAnyTenant(ctx context.Context, id kernel.PrincipalID) (*principal.Principal, error) {
	var row principalPersistence
	query := `SELECT * FROM principals WHERE id = $1`
	err := r.db.GetContext(ctx, &row, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, principal.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find principal by ID", errx.TypeInternal)
	}
	return toDomain(row), nil
}

func (r *PostgresPrincipalRepository) FindByEmail(ctx context.Context, tenantID kernel.TenantID, email string, roles ...kernel.Role) (*principal.Principal, error) {
	args := []any{tenantID.String(), strings.ToLower(email)}
	query := `SELECT * FROM principals WHERE tenant_id = $1 AND email = $2`
	if len(roles) > 0 {
		roleStrs := make([]string, len(roles))
		for i, role := range roles {
			roleStrs[i] = string(role)
		}
		// Stored legacy rows may still carry the old super-admin spelling.
		for _, role := range roles {
			if role.IsSuperAdmin() {
				roleStrs = append(roleStrs, "sysadmin")
			}
		}
		query += ` AND role = ANY($3)`
		args = append(args, pq.StringArray(roleStrs))
	}

	var row principalPersistence
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, principal.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find principal by email", errx.TypeInternal)
	}
	return toDomain(row), nil
}

func (r *PostgresPrincipalRepository) FindByUsername(ctx context.Context, tenantID kernel.TenantID, username string) (*principal.Principal, error) {
	var row principalPersistence
	query := `SELECT * FROM principals WHERE tenant_id = $1 AND LOWER(username) = $2 AND role = 'coach'`
	err := r.db.GetContext(ctx, &row, query, tenantID.String(), principal.CanonicalUsername(username))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, principal.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find principal by username", errx.TypeInternal)
	}
	return toDomain(row), nil
}

func (r *PostgresPrincipalRepository) findByToken(ctx context.Context, column, token string) (*principal.Principal, error) {
	var row principalPersistence
	query := fmt.Sprintf(`SELECT * FROM principals WHERE %s = $1`, column)
	err := r.db.GetContext(ctx, &row, query, token)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, principal.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find principal by token", errx.TypeInternal)
	}
	return toDomain(row), nil
}

func (r *PostgresPrincipalRepository) FindByVerificationToken(ctx context.Context, token string) (*principal.Principal, error) {
	return r.findByToken(ctx, "email_verification_token", token)
}

func (r *PostgresPrincipalRepository) FindByPasswordResetToken(ctx context.Context, token string) (*principal.Principal, error) {
	return r.findByToken(ctx, "password_reset_token", token)
}

func (r *PostgresPrincipalRepository) FindByPINResetToken(ctx context.Context, token string) (*principal.Principal, error) {
	return r.findByToken(ctx, "pin_reset_token", token)
}

func (r *PostgresPrincipalRepository) EmailExists(ctx context.Context, tenantID kernel.TenantID, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM principals WHERE tenant_id = $1 AND email = $2)`
	err := r.db.GetContext(ctx, &exists, query, tenantID.String(), strings.ToLower(email))
	if err != nil {
		return false, errx.Wrap(err, "failed to check email existence", errx.TypeInternal)
	}
	return exists, nil
}

func (r *PostgresPrincipalRepository) EmailExistsAnywhere(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM principals WHERE email = $1)`
	err := r.db.GetContext(ctx, &exists, query, strings.ToLower(email))
	if err != nil {
		return false, errx.Wrap(err, "failed to check email existence", errx.TypeInternal)
	}
	return exists, nil
}

func (r *PostgresPrincipalRepository) UsernameExists(ctx context.Context, tenantID kernel.TenantID, username string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM principals WHERE tenant_id = $1 AND LOWER(username) = $2)`
	err := r.db.GetContext(ctx, &exists, query, tenantID.String(), principal.CanonicalUsername(username))
	if err != nil {
		return false, errx.Wrap(err, "failed to check username existence", errx.TypeInternal)
	}
	return exists, nil
}

func (r *PostgresPrincipalRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errx.Wrap(err, "failed to update principal", errx.TypeInternal)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if affected == 0 {
		return principal.ErrNotFound()
	}
	return nil
}

func (r *PostgresPrincipalRepository) SetEmailVerified(ctx context.Context, id kernel.PrincipalID) error {
	query := `
		UPDATE principals SET
			email_verified = true,
			email_verification_token = NULL,
			email_verification_expires = NULL,
			updated_at = NOW()
		WHERE id = $1`
	return r.exec(ctx, query, id.String())
}

func (r *PostgresPrincipalRepository) SetVerificationToken(ctx context.Context, id kernel.PrincipalID, token string, expires time.Time) error {
	query := `
		UPDATE principals SET
			email_verification_token = $2,
			email_verification_expires = $3,
			updated_at = NOW()
		WHERE id = $1`
	return r.exec(ctx, query, id.String(), token, expires)
}

func (r *PostgresPrincipalRepository) SetPasswordResetToken(ctx context.Context, id kernel.PrincipalID, token string, expires time.Time) error {
	query := `
		UPDATE principals SET
			password_reset_token = $2,
			password_reset_expires = $3,
			updated_at = NOW()
		WHERE id = $1`
	return r.exec(ctx, query, id.String(), token, expires)
}

func (r *PostgresPrincipalRepository) SetPINResetToken(ctx context.Context, id kernel.PrincipalID, token string, expires time.Time) error {
	query := `
		UPDATE principals SET
			pin_reset_token = $2,
			pin_reset_expires = $3,
			updated_at = NOW()
		WHERE id = $1`
	return r.exec(ctx, query, id.String(), token, expires)
}

func (r *PostgresPrincipalRepository) UpdatePasswordHash(ctx context.Context, id kernel.PrincipalID, hash string) error {
	query := `
		UPDATE principals SET
			password_hash = $2,
			password_reset_token = NULL,
			password_reset_expires = NULL,
			updated_at = NOW()
		WHERE id = $1`
	return r.exec(ctx, query, id.String(), hash)
}

func (r *PostgresPrincipalRepository) UpdatePINHash(ctx context.Context, id kernel.PrincipalID, hash string) error {
	query := `
		UPDATE principals SET
			pin_hash = $2,
			pin_reset_token = NULL,
			pin_reset_expires = NULL,
			updated_at = NOW()
		WHERE id = $1`
	return r.exec(ctx, query, id.String(), hash)
}

func (r *PostgresPrincipalRepository) SetTwoFactorSecret(ctx context.Context, id kernel.PrincipalID, secret string) error {
	query := `
		UPDATE principals SET
			two_factor_secret = $2,
			updated_at = NOW()
		WHERE id = $1`
	return r.exec(ctx, query, id.String(), secret)
}

func (r *PostgresPrincipalRepository) EnableTwoFactor(ctx context.Context, id kernel.PrincipalID, backupCodeHashes []string) error {
	query := `
		UPDATE principals SET
			two_factor_enabled = true,
			two_factor_backup_codes = $2,
			updated_at = NOW()
		WHERE id = $1`
	return r.exec(ctx, query, id.String(), pq.StringArray(backupCodeHashes))
}

func (r *PostgresPrincipalRepository) DisableTwoFactor(ctx context.Context, id kernel.PrincipalID) error {
	query := `
		UPDATE principals SET
			two_factor_enabled = false,
			two_factor_secret = NULL,
			two_factor_backup_codes = NULL,
			updated_at = NOW()
		WHERE id = $1`
	return r.exec(ctx, query, id.String())
}

func (r *PostgresPrincipalRepository) UpdateBackupCodes(ctx context.Context, id kernel.PrincipalID, backupCodeHashes []string) error {
	query := `
		UPDATE principals SET
			two_factor_backup_codes = $2,
			updated_at = NOW()
		WHERE id = $1`
	return r.exec(ctx, query, id.String(), pq.StringArray(backupCodeHashes))
}

func (r *PostgresPrincipalRepository) UpdateEmail(ctx context.Context, id kernel.PrincipalID, email, verifyToken string, expires time.Time) error {
	query := `
		UPDATE principals SET
			email = $2,
			email_verified = false,
			email_verification_token = $3,
			email_verification_expires = $4,
			updated_at = NOW()
		WHERE id = $1`
	err := r.exec(ctx, query, id.String(), strings.ToLower(email), verifyToken, expires)
	if err != nil {
		var e *errx.Error
		if errx.As(err, &e) && e.Err != nil {
			if pqErr, ok := e.Err.(*pq.Error); ok && pqErr.Code == "23505" {
				return principal.ErrEmailTaken()
			}
		}
		return err
	}
	return nil
}

func (r *PostgresPrincipalRepository) TouchLastLogin(ctx context.Context, id kernel.PrincipalID) error {
	query := `UPDATE principals SET last_login = NOW(), updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id.String())
}

func (r *PostgresPrincipalRepository) CountCoaches(ctx context.Context, tenantID kernel.TenantID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM principals WHERE tenant_id = $1 AND role = 'coach'`
	err := r.db.GetContext(ctx, &count, query, tenantID.String())
	if err != nil {
		return 0, errx.Wrap(err, "failed to count coaches", errx.TypeInternal)
	}
	return count, nil
}

func (r *PostgresPrincipalRepository) ListCoaches(ctx context.Context, tenantID kernel.TenantID) ([]*principal.Principal, error) {
	var rows []principalPersistence
	query := `SELECT * FROM principals WHERE tenant_id = $1 AND role = 'coach' ORDER BY created_at`
	err := r.db.SelectContext(ctx, &rows, query, tenantID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to list coaches", errx.TypeInternal)
	}
	coaches := make([]*principal.Principal, len(rows))
	for i, row := range rows {
		coaches[i] = toDomain(row)
	}
	return coaches, nil
}

// patchColumns is the allow-list of columns ApplyPatch may touch. Anything
// else is a programming error, not user input.
var patchColumns = map[string]bool{
	"email":    true,
	"username": true,
	"pin_hash": true,
}

func (r *PostgresPrincipalRepository) ApplyPatch(ctx context.Context, id kernel.PrincipalID, tenantID kernel.TenantID, patch principal.Patch) error {
	assignments := make([]string, 0, 3)
	args := []any{id.String(), tenantID.String()}

	add := func(column string, value any) {
		if !patchColumns[column] {
			panic(fmt.Sprintf("principalinfra: column %q not in patch allow-list", column))
		}
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Email != nil {
		add("email", strings.ToLower(*patch.Email))
	}
	if patch.Username != nil {
		add("username", principal.CanonicalUsername(*patch.Username))
	}
	if patch.PINHash != nil {
		add("pin_hash", *patch.PINHash)
	}
	if len(assignments) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`UPDATE principals SET %s, updated_at = NOW() WHERE id = $1 AND tenant_id = $2`,
		strings.Join(assignments, ", "),
	)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if strings.Contains(pqErr.Constraint, "username") {
				return principal.ErrUsernameTaken()
			}
			return principal.ErrEmailTaken()
		}
		return errx.Wrap(err, "failed to patch principal", errx.TypeInternal)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if affected == 0 {
		return principal.ErrNotFound()
	}
	return nil
}

func (r *PostgresPrincipalRepository) Delete(ctx context.Context, id kernel.PrincipalID, tenantID kernel.TenantID) error {
	query := `DELETE FROM principals WHERE id = $1 AND tenant_id = $2 AND role = 'coach'`
	return r.exec(ctx, query, id.String(), tenantID.String())
}
