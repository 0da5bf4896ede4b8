package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/klubhub/klubhub/pkg/iam/loginlimit"
	"github.com/klubhub/klubhub/pkg/iam/principal"
	"github.com/klubhub/klubhub/pkg/iam/session"
	"github.com/klubhub/klubhub/pkg/kernel"
)

// fakePrincipals is an in-memory principal.Repository mirroring the Postgres
// implementation's semantics closely enough for service tests.
type fakePrincipals struct {
	mu   sync.Mutex
	rows map[kernel.PrincipalID]*principal.Principal
}

func newFakePrincipals() *fakePrincipals {
	return &fakePrincipals{rows: make(map[kernel.PrincipalID]*principal.Principal)}
}

func (f *fakePrincipals) Create(_ context.Context, p *principal.Principal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.TenantID == p.TenantID && row.Email == p.Email {
			return principal.ErrEmailTaken()
		}
		if row.TenantID == p.TenantID && row.Username != nil && p.Username != nil && *row.Username == *p.Username {
			return principal.ErrUsernameTaken()
		}
	}
	f.rows[p.ID] = p
	return nil
}

func (f *fakePrincipals) FindByID(_ context.Context, id kernel.PrincipalID, tenantID kernel.TenantID) (*principal.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok || p.TenantID != tenantID {
		return nil, principal.ErrNotFound()
	}
	return p, nil
}

func (f *fakePrincipals) FindByIDAnyTenant(_ context.Context, id kernel.PrincipalID) (*principal.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, principal.ErrNotFound()
	}
	return p, nil
}

func (f *fakePrincipals) FindByEmail(_ context.Context, tenantID kernel.TenantID, email string, roles ...kernel.Role) (*principal.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if p.TenantID != tenantID || p.Email != strings.ToLower(email) {
			continue
		}
		for _, role := range roles {
			if p.Role == role {
				return p, nil
			}
		}
	}
	return nil, principal.ErrNotFound()
}

func (f *fakePrincipals) FindByUsername(_ context.Context, tenantID kernel.TenantID, username string) (*principal.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	canonical := principal.CanonicalUsername(username)
	for _, p := range f.rows {
		if p.TenantID == tenantID && p.Role == kernel.RoleCoach && p.Username != nil && *p.Username == canonical {
			return p, nil
		}
	}
	return nil, principal.ErrNotFound()
}

func (f *fakePrincipals) findByToken(pick func(*principal.Principal) *string, token string) (*principal.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if t := pick(p); t != nil && *t == token {
			return p, nil
		}
	}
	return nil, principal.ErrNotFound()
}

func (f *fakePrincipals) FindByVerificationToken(_ context.Context, token string) (*principal.Principal, error) {
	return f.findByToken(func(p *principal.Principal) *string { return p.EmailVerificationToken }, token)
}

func (f *fakePrincipals) FindByPasswordResetToken(_ context.Context, token string) (*principal.Principal, error) {
	return f.findByToken(func(p *principal.Principal) *string { return p.PasswordResetToken }, token)
}

func (f *fakePrincipals) FindByPINResetToken(_ context.Context, token string) (*principal.Principal, error) {
	return f.findByToken(func(p *principal.Principal) *string { return p.PINResetToken }, token)
}

func (f *fakePrincipals) EmailExists(_ context.Context, tenantID kernel.TenantID, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if p.TenantID == tenantID && p.Email == strings.ToLower(email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePrincipals) EmailExistsAnywhere(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if p.Email == strings.ToLower(email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePrincipals) UsernameExists(_ context.Context, tenantID kernel.TenantID, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	canonical := principal.CanonicalUsername(username)
	for _, p := range f.rows {
		if p.TenantID == tenantID && p.Username != nil && *p.Username == canonical {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePrincipals) get(id kernel.PrincipalID) (*principal.Principal, error) {
	p, ok := f.rows[id]
	if !ok {
		return nil, principal.ErrNotFound()
	}
	return p, nil
}

func (f *fakePrincipals) SetEmailVerified(_ context.Context, id kernel.PrincipalID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(id)
	if err != nil {
		return err
	}
	p.EmailVerified = true
	p.EmailVerificationToken = nil
	p.EmailVerificationExpires = nil
	return nil
}

func (f *fakePrincipals) SetVerificationToken(_ context.Context, id kernel.PrincipalID, token string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(id)
	if err != nil {
		return err
	}
	p.EmailVerificationToken = &token
	p.EmailVerificationExpires = &expires
	return nil
}

func (f *fakePrincipals) SetPasswordResetToken(_ context.Context, id kernel.PrincipalID, token string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(id)
	if err != nil {
		return err
	}
	p.PasswordResetToken = &token
	p.PasswordResetExpires = &expires
	return nil
}

func (f *fakePrincipals) SetPINResetToken(_ context.Context, id kernel.PrincipalID, token string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(id)
	if err != nil {
		return err
	}
	p.PINResetToken = &token
	p.PINResetExpires = &expires
	return nil
}

func (f *fakePrincipals) UpdatePasswordHash(_ context.Context, id kernel.PrincipalID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(id)
	if err != nil {
		return err
	}
	p.PasswordHash = &hash
	p.PasswordResetToken = nil
	p.PasswordResetExpires = nil
	return nil
}

func (f *fakePrincipals) UpdatePINHash(_ context.Context, id kernel.PrincipalID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(id)
	if err != nil {
		return err
	}
	p.PINHash = &hash
	p.PINResetToken = nil
	p.PINResetExpires = nil
	return nil
}

func (f *fakePrincipals) SetTwoFactorSecret(_ context.Context, id kernel.PrincipalID, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(id)
	if err != nil {
		return err
	}
	p.TwoFactorSecret = &secret
	return nil
}

func (f *fakePrincipals) EnableTwoFactor(_ context.Context, id kernel.PrincipalID, backupCodeHashes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(id)
	if err != nil {
		return err
	}
	p.TwoFactorEnabled = true
	p.TwoFactorBackupCodes = backupCodeHashes
	return nil
}

func (f *fakePrincipals) DisableTwoFactor(_ context.Context, id kernel.PrincipalID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(id)
	if err != nil {
		return err
	}
	p.TwoFactorEnabled = false
	p.TwoFactorSecret = nil
	p.TwoFactorBackupCodes = nil
	return nil
}

func (f *fakePrincipals) UpdateBackupCodes(_ context.Context, id kernel.PrincipalID, backupCodeHashes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(id)
	if err != nil {
		return err
	}
	p.TwoFactorBackupCodes = backupCodeHashes
	return nil
}

func (f *fakePrincipals) UpdateEmail(_ context.Context, id kernel.PrincipalID, email, verifyToken string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(id)
	if err != nil {
		return err
	}
	p.Email = strings.ToLower(email)
	p.EmailVerified = false
	p.EmailVerificationToken = &verifyToken
	p.EmailVerificationExpires = &expires
	return nil
}

func (f *fakePrincipals) TouchLastLogin(_ context.Context, id kernel.PrincipalID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(id)
	if err != nil {
		return err
	}
	now := time.Now()
	p.LastLogin = &now
	return nil
}

func (f *fakePrincipals) CountCoaches(_ context.Context, tenantID kernel.TenantID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, p := range f.rows {
		if p.TenantID == tenantID && p.Role == kernel.RoleCoach {
			count++
		}
	}
	return count, nil
}

func (f *fakePrincipals) ListCoaches(_ context.Context, tenantID kernel.TenantID) ([]*principal.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*principal.Principal
	for _, p := range f.rows {
		if p.TenantID == tenantID && p.Role == kernel.RoleCoach {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePrincipals) ApplyPatch(_ context.Context, id kernel.PrincipalID, tenantID kernel.TenantID, patch principal.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok || p.TenantID != tenantID {
		return principal.ErrNotFound()
	}
	if patch.Email != nil {
		p.Email = strings.ToLower(*patch.Email)
	}
	if patch.Username != nil {
		canonical := principal.CanonicalUsername(*patch.Username)
		p.Username = &canonical
	}
	if patch.PINHash != nil {
		p.PINHash = patch.PINHash
	}
	return nil
}

func (f *fakePrincipals) Delete(_ context.Context, id kernel.PrincipalID, tenantID kernel.TenantID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok || p.TenantID != tenantID || p.Role != kernel.RoleCoach {
		return principal.ErrNotFound()
	}
	delete(f.rows, id)
	return nil
}

// fakeSessions is an in-memory session.Repository.
type fakeSessions struct {
	mu   sync.Mutex
	rows map[string]*session.Session // keyed by token hash
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{rows: make(map[string]*session.Session)}
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeSessions) Create(_ context.Context, s *session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[s.TokenHash] = s
	return nil
}

func (f *fakeSessions) FindLiveByTokenHash(_ context.Context, tokenHash string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[tokenHash]
	if !ok || !s.ExpiresAt.After(time.Now()) {
		return nil, session.ErrInvalidRefreshToken()
	}
	return s, nil
}

func (f *fakeSessions) Rotate(_ context.Context, oldHash string, next *session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[oldHash]
	if !ok || !s.ExpiresAt.After(time.Now()) {
		return session.ErrInvalidRefreshToken()
	}
	delete(f.rows, oldHash)
	f.rows[next.TokenHash] = next
	return nil
}

func (f *fakeSessions) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, tokenHash)
	return nil
}

func (f *fakeSessions) DeleteAllForPrincipal(_ context.Context, principalID kernel.PrincipalID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for hash, s := range f.rows {
		if s.PrincipalID == principalID {
			delete(f.rows, hash)
		}
	}
	return nil
}

func (f *fakeSessions) DeleteExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for hash, s := range f.rows {
		if !s.ExpiresAt.After(time.Now()) {
			delete(f.rows, hash)
			deleted++
		}
	}
	return deleted, nil
}

// fakeAttempts is an in-memory loginlimit.Repository.
type fakeAttempts struct {
	mu   sync.Mutex
	rows []loginlimit.Attempt
}

func (f *fakeAttempts) Record(_ context.Context, attempt *loginlimit.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *attempt)
	return nil
}

func (f *fakeAttempts) FailuresSince(_ context.Context, identifier, ip string, since time.Time) ([]loginlimit.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []loginlimit.Attempt
	for _, a := range f.rows {
		if a.Identifier == identifier && a.IP == ip && !a.Success && !a.OccurredAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAttempts) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	var deleted int64
	for _, a := range f.rows {
		if a.OccurredAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	f.rows = kept
	return deleted, nil
}

func (f *fakeAttempts) last() *loginlimit.Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.rows) == 0 {
		return nil
	}
	a := f.rows[len(f.rows)-1]
	return &a
}
