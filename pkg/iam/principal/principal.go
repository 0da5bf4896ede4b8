// Package principal defines the account entity shared by admins and coaches.
package principal

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/klubhub/klubhub/pkg/errx"
	"github.com/klubhub/klubhub/pkg/kernel"
)

var principalErrors = errx.NewRegistry("PRINCIPAL")

var (
	CodeNotFound      = principalErrors.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Account not found")
	CodeEmailTaken    = principalErrors.Register("EMAIL_TAKEN", errx.TypeConflict, http.StatusConflict, "Email is already in use")
	CodeUsernameTaken = principalErrors.Register("USERNAME_TAKEN", errx.TypeConflict, http.StatusConflict, "Username is already in use")
)

func ErrNotFound() *errx.Error      { return principalErrors.New(CodeNotFound) }
func ErrEmailTaken() *errx.Error    { return principalErrors.New(CodeEmailTaken) }
func ErrUsernameTaken() *errx.Error { return principalErrors.New(CodeUsernameTaken) }

// Principal is one human account. Admins carry a password hash, coaches a PIN
// hash; the other hash stays nil.
type Principal struct {
	ID       kernel.PrincipalID
	TenantID kernel.TenantID
	Role     kernel.Role
	Email    string
	Username *string

	PasswordHash *string
	PINHash      *string

	EmailVerified             bool
	EmailVerificationToken    *string
	EmailVerificationExpires  *time.Time
	PasswordResetToken        *string
	PasswordResetExpires      *time.Time
	PINResetToken             *string
	PINResetExpires           *time.Time

	TwoFactorEnabled     bool
	TwoFactorSecret      *string
	TwoFactorBackupCodes []string

	CreatedAt time.Time
	UpdatedAt time.Time
	LastLogin *time.Time
}

// CanonicalUsername lowercases a username for storage and lookups. Coach
// usernames are case-insensitive identifiers, so one canonical form on write
// keeps the uniqueness constraint honest.
func CanonicalUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// NewAdmin creates an unverified admin principal.
func NewAdmin(tenantID kernel.TenantID, email, passwordHash string) *Principal {
	now := time.Now()
	return &Principal{
		ID:           kernel.PrincipalID(uuid.NewString()),
		TenantID:     tenantID,
		Role:         kernel.RoleAdmin,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: &passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewCoach creates a coach principal. Coaches never verify their email; the
// admin who created them vouches for it.
func NewCoach(tenantID kernel.TenantID, email, username, pinHash string) *Principal {
	now := time.Now()
	canonical := CanonicalUsername(username)
	return &Principal{
		ID:            kernel.PrincipalID(uuid.NewString()),
		TenantID:      tenantID,
		Role:          kernel.RoleCoach,
		Email:         strings.ToLower(strings.TrimSpace(email)),
		Username:      &canonical,
		PINHash:       &pinHash,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsAdmin reports whether the principal authenticates with a password.
func (p *Principal) IsAdmin() bool { return p.Role.IsAdmin() }

// Snapshot is the non-secret view of a principal returned by the API.
type Snapshot struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenantId"`
	Role             string     `json:"role"`
	Email            string     `json:"email"`
	Username         *string    `json:"username,omitempty"`
	EmailVerified    bool       `json:"emailVerified"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	CreatedAt        time.Time  `json:"createdAt"`
	LastLogin        *time.Time `json:"lastLogin,omitempty"`
}

// Snapshot strips every credential and token field.
func (p *Principal) Snapshot() Snapshot {
	return Snapshot{
		ID:               p.ID.String(),
		TenantID:         p.TenantID.String(),
		Role:             string(kernel.NormalizeRole(string(p.Role))),
		Email:            p.Email,
		Username:         p.Username,
		EmailVerified:    p.EmailVerified,
		TwoFactorEnabled: p.TwoFactorEnabled,
		CreatedAt:        p.CreatedAt,
		LastLogin:        p.LastLogin,
	}
}

// Patch is the allow-list of coach fields an admin may update. Hashing
// happens before the patch reaches the repository.
type Patch struct {
	Email    *string
	Username *string
	PINHash  *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Email == nil && p.Username == nil && p.PINHash == nil
}
