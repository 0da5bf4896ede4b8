package principal

import (
	"context"
	"time"

	"github.com/klubhub/klubhub/pkg/kernel"
)

// Repository is the persistence contract for principals. Every lookup except
// the token finders and FindByID is tenant-scoped; token finders search
// globally because reset links carry no tenant context.
type Repository interface {
	Create(ctx context.Context, p *Principal) error
	FindByID(ctx context.Context, id kernel.PrincipalID, tenantID kernel.TenantID) (*Principal, error)

	// FindByIDAnyTenant serves flows that hold only a principal ID, such as
	// refresh-token rotation where the session row carries no tenant.
	FindByIDAnyTenant(ctx context.Context, id kernel.PrincipalID) (*Principal, error)

	// FindByEmail restricts by role so the password flow never resolves a
	// coach row and vice versa.
	FindByEmail(ctx context.Context, tenantID kernel.TenantID, email string, roles ...kernel.Role) (*Principal, error)
	FindByUsername(ctx context.Context, tenantID kernel.TenantID, username string) (*Principal, error)

	FindByVerificationToken(ctx context.Context, token string) (*Principal, error)
	FindByPasswordResetToken(ctx context.Context, token string) (*Principal, error)
	FindByPINResetToken(ctx context.Context, token string) (*Principal, error)

	EmailExists(ctx context.Context, tenantID kernel.TenantID, email string) (bool, error)
	EmailExistsAnywhere(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, tenantID kernel.TenantID, username string) (bool, error)

	SetEmailVerified(ctx context.Context, id kernel.PrincipalID) error
	SetVerificationToken(ctx context.Context, id kernel.PrincipalID, token string, expires time.Time) error
	SetPasswordResetToken(ctx context.Context, id kernel.PrincipalID, token string, expires time.Time) error
	SetPINResetToken(ctx context.Context, id kernel.PrincipalID, token string, expires time.Time) error

	// UpdatePasswordHash and UpdatePINHash also clear the matching reset
	// token in the same statement.
	UpdatePasswordHash(ctx context.Context, id kernel.PrincipalID, hash string) error
	UpdatePINHash(ctx context.Context, id kernel.PrincipalID, hash string) error

	SetTwoFactorSecret(ctx context.Context, id kernel.PrincipalID, secret string) error
	EnableTwoFactor(ctx context.Context, id kernel.PrincipalID, backupCodeHashes []string) error
	DisableTwoFactor(ctx context.Context, id kernel.PrincipalID) error
	UpdateBackupCodes(ctx context.Context, id kernel.PrincipalID, backupCodeHashes []string) error

	// UpdateEmail resets verification state and stores a fresh verify token.
	UpdateEmail(ctx context.Context, id kernel.PrincipalID, email, verifyToken string, expires time.Time) error
	TouchLastLogin(ctx context.Context, id kernel.PrincipalID) error

	CountCoaches(ctx context.Context, tenantID kernel.TenantID) (int, error)
	ListCoaches(ctx context.Context, tenantID kernel.TenantID) ([]*Principal, error)
	ApplyPatch(ctx context.Context, id kernel.PrincipalID, tenantID kernel.TenantID, patch Patch) error
	Delete(ctx context.Context, id kernel.PrincipalID, tenantID kernel.TenantID) error
}
