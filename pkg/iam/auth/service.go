package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/klubhub/klubhub/pkg/cryptox"
	"github.com/klubhub/klubhub/pkg/errx"
	"github.com/klubhub/klubhub/pkg/iam"
	"github.com/klubhub/klubhub/pkg/iam/loginlimit"
	"github.com/klubhub/klubhub/pkg/iam/principal"
	"github.com/klubhub/klubhub/pkg/iam/session"
	"github.com/klubhub/klubhub/pkg/kernel"
	"github.com/klubhub/klubhub/pkg/logx"
	"github.com/klubhub/klubhub/pkg/tenantx"
)

const (
	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = time.Hour

	// defaultMaxCourts seeds new tenant configs; clubs adjust it later.
	defaultMaxCourts = 2
)

// Deps collects the service's collaborators.
type Deps struct {
	Principals principal.Repository
	Sessions   session.Repository
	Limiter    *loginlimit.Limiter
	Tokens     *JWTService
	TOTP       *TOTPManager
	Mailer     *Mailer
	Tenants    *tenantx.Store
	Breach     *cryptox.BreachChecker

	PasswordHasher *cryptox.Hasher
	PINHasher      *cryptox.Hasher

	RefreshTokenTTL time.Duration
}

// Service implements the authentication and account flows.
type Service struct {
	deps Deps
}

// NewService creates the auth service.
func NewService(deps Deps) *Service {
	if deps.RefreshTokenTTL == 0 {
		deps.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	return &Service{deps: deps}
}

func validationError(details []errx.FieldDetail) *errx.Error {
	return errx.Validation("Validation error").WithFields(details...)
}

// checkPasswordStrength applies the composition rules plus the breach check.
// Breach lookups fail open; only a confirmed hit rejects the password.
func (s *Service) checkPasswordStrength(ctx context.Context, password string) error {
	if details := cryptox.ValidatePassword(password); len(details) > 0 {
		return validationError(details)
	}
	if s.deps.Breach != nil {
		if count := s.deps.Breach.Count(ctx, password); count > 0 {
			return ErrRegistry.New(CodeBreachedPassword).WithDetail("occurrences", count)
		}
	}
	return nil
}

// TokenPair is an access/refresh pair fresh off the mint.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// issueTokens mints both tokens and persists the refresh session.
func (s *Service) issueTokens(ctx context.Context, p *principal.Principal) (*TokenPair, error) {
	accessToken, err := s.deps.Tokens.GenerateAccessToken(p.ID, p.TenantID, p.Role, p.Email)
	if err != nil {
		return nil, err
	}
	refreshToken, err := cryptox.GenerateToken()
	if err != nil {
		return nil, ErrTokenGenerationFailed().WithDetail("error", err.Error())
	}
	sess := session.New(p.ID, cryptox.HashToken(refreshToken), s.deps.RefreshTokenTTL)
	if err := s.deps.Sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Signup provisions a tenant and its first admin.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*principal.Snapshot, error) {
	if details := req.Validate(); len(details) > 0 {
		return nil, validationError(details)
	}
	if err := s.checkPasswordStrength(ctx, req.Password); err != nil {
		return nil, err
	}

	subdomain := tenantx.NameToSubdomain(req.ClubName)
	if err := tenantx.ValidateSubdomain(subdomain); err != nil {
		return nil, err
	}
	available, err := s.deps.Tenants.Available(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, tenantx.ErrSubdomainTaken().WithDetail("subdomain", subdomain)
	}

	// Signup discloses the email conflict: the caller is provisioning a
	// public subdomain, so the usual enumeration concerns do not apply.
	exists, err := s.deps.Principals.EmailExistsAnywhere(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, iam.ErrEmailTaken()
	}

	planID := req.PlanID
	if planID == "" {
		planID = "basic"
	}
	err = s.deps.Tenants.Put(ctx, tenantx.Config{
		ID:        uuid.NewString(),
		Name:      req.ClubName,
		Subdomain: subdomain,
		MaxCourts: defaultMaxCourts,
		PlanID:    planID,
	})
	if err != nil {
		return nil, err
	}

	hash, err := s.deps.PasswordHasher.Hash(req.Password)
	if err != nil {
		return nil, errx.Wrap(err, "failed to hash password", errx.TypeInternal)
	}

	p := principal.NewAdmin(kernel.TenantID(subdomain), req.Email, hash)
	verifyToken, err := cryptox.GenerateToken()
	if err != nil {
		return nil, errx.Wrap(err, "failed to mint verification token", errx.TypeInternal)
	}
	expires := time.Now().Add(verifyTokenTTL)
	p.EmailVerificationToken = &verifyToken
	p.EmailVerificationExpires = &expires

	if err := s.deps.Principals.Create(ctx, p); err != nil {
		return nil, err
	}

	s.deps.Mailer.SendVerificationEmail(ctx, p.TenantID, p.Email, verifyToken)
	s.deps.Mailer.SendSignupNotification(ctx, req.ClubName, p.Email, subdomain)

	snapshot := p.Snapshot()
	return &snapshot, nil
}

// Register creates an admin inside an existing tenant. A conflicting email
// is silently absorbed: the caller sees the same success either way.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	if details := req.Validate(); len(details) > 0 {
		return validationError(details)
	}
	if err := s.checkPasswordStrength(ctx, req.Password); err != nil {
		return err
	}

	tenantID := kernel.TenantID(req.TenantID)
	if _, err := s.deps.Tenants.Get(ctx, req.TenantID); err != nil {
		logx.Warnf("auth: register against unknown tenant %q", req.TenantID)
		return nil
	}
	exists, err := s.deps.Principals.EmailExists(ctx, tenantID, req.Email)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	hash, err := s.deps.PasswordHasher.Hash(req.Password)
	if err != nil {
		return errx.Wrap(err, "failed to hash password", errx.TypeInternal)
	}
	p := principal.NewAdmin(tenantID, req.Email, hash)
	verifyToken, err := cryptox.GenerateToken()
	if err != nil {
		return errx.Wrap(err, "failed to mint verification token", errx.TypeInternal)
	}
	expires := time.Now().Add(verifyTokenTTL)
	p.EmailVerificationToken = &verifyToken
	p.EmailVerificationExpires = &expires

	if err := s.deps.Principals.Create(ctx, p); err != nil {
		// A concurrent registration won the unique constraint. Same outcome.
		if errx.IsType(err, errx.TypeConflict) {
			return nil
		}
		return err
	}
	s.deps.Mailer.SendVerificationEmail(ctx, tenantID, p.Email, verifyToken)
	return nil
}

// LoginResult is the outcome of a login attempt. When Requires2FA is set the
// tokens are empty and the client must retry with a TOTP code.
type LoginResult struct {
	Requires2FA bool
	Tokens      *TokenPair
	Principal   *principal.Principal
}

// Login runs the unified email+password / username+PIN flow.
func (s *Service) Login(ctx context.Context, req LoginRequest, ip string) (*LoginResult, error) {
	if details := req.Validate(); len(details) > 0 {
		return nil, validationError(details)
	}

	tenantID := kernel.TenantID(req.TenantID)
	var identifier string
	if req.IsEmailFlow() {
		identifier = strings.ToLower(req.Email)
	} else {
		identifier = principal.CanonicalUsername(req.Username)
	}

	if err := s.deps.Limiter.Check(ctx, identifier, ip); err != nil {
		return nil, err
	}

	var (
		p   *principal.Principal
		err error
	)
	if req.IsEmailFlow() {
		p, err = s.deps.Principals.FindByEmail(ctx, tenantID, req.Email, kernel.RoleAdmin, kernel.RoleSuperAdmin)
	} else {
		p, err = s.deps.Principals.FindByUsername(ctx, tenantID, req.Username)
	}
	if err != nil {
		if errx.IsType(err, errx.TypeNotFound) {
			s.deps.Limiter.RecordFailure(ctx, identifier, ip, nil)
			return nil, iam.ErrInvalidCredentials()
		}
		return nil, err
	}

	var ok bool
	if req.IsEmailFlow() {
		ok = p.PasswordHash != nil && s.deps.PasswordHasher.Verify(*p.PasswordHash, req.Password)
	} else {
		ok = p.PINHash != nil && s.deps.PINHasher.Verify(*p.PINHash, req.PIN)
	}
	if !ok {
		s.deps.Limiter.RecordFailure(ctx, identifier, ip, &p.ID)
		return nil, iam.ErrInvalidCredentials()
	}

	if req.IsEmailFlow() && !p.EmailVerified {
		return nil, ErrEmailNotVerified()
	}

	if p.TwoFactorEnabled {
		if req.TOTPCode == "" {
			return &LoginResult{Requires2FA: true}, nil
		}
		if !s.verifySecondFactor(ctx, p, req.TOTPCode) {
			s.deps.Limiter.RecordFailure(ctx, identifier, ip, &p.ID)
			return nil, ErrInvalidTOTPCode()
		}
	}

	tokens, err := s.issueTokens(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Principals.TouchLastLogin(ctx, p.ID); err != nil {
		logx.WithError(err).Warn("auth: failed to touch last_login")
	}
	s.deps.Limiter.RecordSuccess(ctx, identifier, ip, &p.ID)

	return &LoginResult{Tokens: tokens, Principal: p}, nil
}

// verifySecondFactor accepts a live TOTP code or, failing that, consumes a
// backup code.
func (s *Service) verifySecondFactor(ctx context.Context, p *principal.Principal, code string) bool {
	if p.TwoFactorSecret != nil && s.deps.TOTP.ValidateCode(code, *p.TwoFactorSecret) {
		return true
	}
	for i, hash := range p.TwoFactorBackupCodes {
		if s.deps.PINHasher.Verify(hash, code) {
			remaining := make([]string, 0, len(p.TwoFactorBackupCodes)-1)
			remaining = append(remaining, p.TwoFactorBackupCodes[:i]...)
			remaining = append(remaining, p.TwoFactorBackupCodes[i+1:]...)
			if err := s.deps.Principals.UpdateBackupCodes(ctx, p.ID, remaining); err != nil {
				logx.WithError(err).Error("auth: failed to consume backup code")
				return false
			}
			return true
		}
	}
	return false
}

// Refresh rotates a refresh token and mints a fresh access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, session.ErrInvalidRefreshToken()
	}
	oldHash := cryptox.HashToken(refreshToken)

	sess, err := s.deps.Sessions.FindLiveByTokenHash(ctx, oldHash)
	if err != nil {
		return nil, err
	}

	// Session rows carry no tenant, so the lookup is by ID alone. A deleted
	// principal invalidates its sessions here.
	p, err := s.deps.Principals.FindByIDAnyTenant(ctx, sess.PrincipalID)
	if err != nil {
		if errx.IsType(err, errx.TypeNotFound) {
			return nil, session.ErrInvalidRefreshToken()
		}
		return nil, err
	}

	newToken, err := cryptox.GenerateToken()
	if err != nil {
		return nil, ErrTokenGenerationFailed().WithDetail("error", err.Error())
	}
	next := session.New(p.ID, cryptox.HashToken(newToken), s.deps.RefreshTokenTTL)
	if err := s.deps.Sessions.Rotate(ctx, oldHash, next); err != nil {
		return nil, err
	}

	accessToken, err := s.deps.Tokens.GenerateAccessToken(p.ID, p.TenantID, p.Role, p.Email)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: newToken}, nil
}

// Logout deletes the session for a refresh token. Idempotent.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.deps.Sessions.DeleteByTokenHash(ctx, cryptox.HashToken(refreshToken))
}

// VerifyEmail consumes a verify-email token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	p, err := s.deps.Principals.FindByVerificationToken(ctx, token)
	if err != nil {
		if errx.IsType(err, errx.TypeNotFound) {
			return ErrInvalidResetToken()
		}
		return err
	}
	if p.EmailVerificationExpires == nil || p.EmailVerificationExpires.Before(time.Now()) {
		return ErrInvalidResetToken()
	}
	return s.deps.Principals.SetEmailVerified(ctx, p.ID)
}

// ForgotPassword issues a reset token when the account exists. The response
// is identical either way; dispatch failures are swallowed.
func (s *Service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	if details := req.Validate(); len(details) > 0 {
		return validationError(details)
	}
	p, err := s.deps.Principals.FindByEmail(ctx, kernel.TenantID(req.TenantID), req.Email, kernel.RoleAdmin, kernel.RoleSuperAdmin)
	if err != nil {
		if errx.IsType(err, errx.TypeNotFound) {
			return nil
		}
		return err
	}

	token, err := cryptox.GenerateToken()
	if err != nil {
		return errx.Wrap(err, "failed to mint reset token", errx.TypeInternal)
	}
	if err := s.deps.Principals.SetPasswordResetToken(ctx, p.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		return err
	}
	s.deps.Mailer.SendPasswordResetEmail(ctx, p.TenantID, p.Email, token)
	return nil
}

// ResetPassword consumes a reset token and installs a new password.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if details := req.Validate(); len(details) > 0 {
		return validationError(details)
	}
	p, err := s.deps.Principals.FindByPasswordResetToken(ctx, req.Token)
	if err != nil {
		if errx.IsType(err, errx.TypeNotFound) {
			return ErrInvalidResetToken()
		}
		return err
	}
	if p.PasswordResetExpires == nil || p.PasswordResetExpires.Before(time.Now()) {
		return ErrInvalidResetToken()
	}
	if err := s.checkPasswordStrength(ctx, req.Password); err != nil {
		return err
	}

	hash, err := s.deps.PasswordHasher.Hash(req.Password)
	if err != nil {
		return errx.Wrap(err, "failed to hash password", errx.TypeInternal)
	}
	if err := s.deps.Principals.UpdatePasswordHash(ctx, p.ID, hash); err != nil {
		return err
	}
	return s.deps.Sessions.DeleteAllForPrincipal(ctx, p.ID)
}

// ChangePassword is the authenticated password change for admins.
func (s *Service) ChangePassword(ctx context.Context, p *principal.Principal, req ChangePasswordRequest) error {
	if details := req.Validate(); len(details) > 0 {
		return validationError(details)
	}
	if !p.IsAdmin() {
		return iam.ErrAccessDenied()
	}
	if p.PasswordHash == nil || !s.deps.PasswordHasher.Verify(*p.PasswordHash, req.CurrentPassword) {
		return iam.ErrInvalidCredentials()
	}
	if err := s.checkPasswordStrength(ctx, req.NewPassword); err != nil {
		return err
	}

	hash, err := s.deps.PasswordHasher.Hash(req.NewPassword)
	if err != nil {
		return errx.Wrap(err, "failed to hash password", errx.TypeInternal)
	}
	if err := s.deps.Principals.UpdatePasswordHash(ctx, p.ID, hash); err != nil {
		return err
	}
	return s.deps.Sessions.DeleteAllForPrincipal(ctx, p.ID)
}

// ChangePIN is the authenticated PIN change for coaches.
func (s *Service) ChangePIN(ctx context.Context, p *principal.Principal, req ChangePINRequest) error {
	if details := req.Validate(); len(details) > 0 {
		return validationError(details)
	}
	if !p.Role.IsCoach() {
		return iam.ErrAccessDenied()
	}
	if p.PINHash == nil || !s.deps.PINHasher.Verify(*p.PINHash, req.CurrentPIN) {
		return iam.ErrInvalidCredentials()
	}
	if details := cryptox.ValidatePIN(req.NewPIN); len(details) > 0 {
		return validationError(details)
	}

	hash, err := s.deps.PINHasher.Hash(req.NewPIN)
	if err != nil {
		return errx.Wrap(err, "failed to hash pin", errx.TypeInternal)
	}
	if err := s.deps.Principals.UpdatePINHash(ctx, p.ID, hash); err != nil {
		return err
	}
	return s.deps.Sessions.DeleteAllForPrincipal(ctx, p.ID)
}

// RequestPINReset issues a PIN reset token and emails the link. Unlike the
// password flow, a transport failure here surfaces to the caller; operators
// chose visibility of mail breakage over strict enumeration resistance on
// this one endpoint.
func (s *Service) RequestPINReset(ctx context.Context, email, username, tenantID string) error {
	p, err := s.deps.Principals.FindByUsername(ctx, kernel.TenantID(tenantID), username)
	if err != nil {
		if errx.IsType(err, errx.TypeNotFound) {
			return nil
		}
		return err
	}
	if !strings.EqualFold(p.Email, email) {
		return nil
	}
	return s.issuePINReset(ctx, p)
}

// issuePINReset mints the token and sends the email synchronously.
func (s *Service) issuePINReset(ctx context.Context, p *principal.Principal) error {
	token, err := cryptox.GenerateToken()
	if err != nil {
		return errx.Wrap(err, "failed to mint reset token", errx.TypeInternal)
	}
	if err := s.deps.Principals.SetPINResetToken(ctx, p.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		return err
	}
	username := ""
	if p.Username != nil {
		username = *p.Username
	}
	return s.deps.Mailer.SendPINResetEmailSync(ctx, p.TenantID, p.Email, username, token)
}

// IssuePINResetFor is the admin-panel entry point: it skips the email match
// and works directly off the coach row.
func (s *Service) IssuePINResetFor(ctx context.Context, p *principal.Principal) error {
	return s.issuePINReset(ctx, p)
}

// ValidatePINResetToken resolves a token to the coach's username without
// consuming it, so the reset UI can greet the user.
func (s *Service) ValidatePINResetToken(ctx context.Context, token string) (string, error) {
	p, err := s.deps.Principals.FindByPINResetToken(ctx, token)
	if err != nil {
		if errx.IsType(err, errx.TypeNotFound) {
			return "", ErrInvalidResetToken()
		}
		return "", err
	}
	if p.PINResetExpires == nil || p.PINResetExpires.Before(time.Now()) {
		return "", ErrInvalidResetToken()
	}
	if p.Username == nil {
		return "", ErrInvalidResetToken()
	}
	return *p.Username, nil
}

// ResetPIN consumes a PIN reset token and installs a new PIN.
func (s *Service) ResetPIN(ctx context.Context, token, pin string) error {
	p, err := s.deps.Principals.FindByPINResetToken(ctx, token)
	if err != nil {
		if errx.IsType(err, errx.TypeNotFound) {
			return ErrInvalidResetToken()
		}
		return err
	}
	if p.PINResetExpires == nil || p.PINResetExpires.Before(time.Now()) {
		return ErrInvalidResetToken()
	}
	if details := cryptox.ValidatePIN(pin); len(details) > 0 {
		return validationError(details)
	}

	hash, err := s.deps.PINHasher.Hash(pin)
	if err != nil {
		return errx.Wrap(err, "failed to hash pin", errx.TypeInternal)
	}
	if err := s.deps.Principals.UpdatePINHash(ctx, p.ID, hash); err != nil {
		return err
	}
	return s.deps.Sessions.DeleteAllForPrincipal(ctx, p.ID)
}

// Setup2FA generates and stores a TOTP secret without enabling 2FA yet.
func (s *Service) Setup2FA(ctx context.Context, p *principal.Principal) (*TOTPSetup, error) {
	if p.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled()
	}
	setup, err := s.deps.TOTP.GenerateSecret(p.Email)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Principals.SetTwoFactorSecret(ctx, p.ID, setup.Secret); err != nil {
		return nil, err
	}
	return setup, nil
}

// Verify2FA confirms the setup code, enables 2FA and returns the plaintext
// backup codes exactly once.
func (s *Service) Verify2FA(ctx context.Context, p *principal.Principal, code string) ([]string, error) {
	if p.TwoFactorSecret == nil {
		return nil, ErrTwoFactorNotSetUp()
	}
	if !s.deps.TOTP.ValidateCode(code, *p.TwoFactorSecret) {
		return nil, ErrInvalidTOTPCode()
	}

	codes, err := GenerateBackupCodes()
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(codes))
	for i, c := range codes {
		h, err := s.deps.PINHasher.Hash(c)
		if err != nil {
			return nil, errx.Wrap(err, "failed to hash backup code", errx.TypeInternal)
		}
		hashes[i] = h
	}
	if err := s.deps.Principals.EnableTwoFactor(ctx, p.ID, hashes); err != nil {
		return nil, err
	}
	s.deps.Mailer.SendTwoFactorEnabledEmail(ctx, p.Email)
	return codes, nil
}

// Disable2FA turns 2FA off after re-verifying the password.
func (s *Service) Disable2FA(ctx context.Context, p *principal.Principal, password string) error {
	if p.PasswordHash == nil || !s.deps.PasswordHasher.Verify(*p.PasswordHash, password) {
		return iam.ErrInvalidCredentials()
	}
	return s.deps.Principals.DisableTwoFactor(ctx, p.ID)
}

// UpdateProfile changes the account email and restarts verification.
func (s *Service) UpdateProfile(ctx context.Context, p *principal.Principal, req UpdateProfileRequest) error {
	if details := req.Validate(); len(details) > 0 {
		return validationError(details)
	}
	newEmail := strings.ToLower(strings.TrimSpace(req.Email))
	if newEmail == p.Email {
		return nil
	}
	exists, err := s.deps.Principals.EmailExists(ctx, p.TenantID, newEmail)
	if err != nil {
		return err
	}
	if exists {
		return iam.ErrEmailTaken()
	}

	verifyToken, err := cryptox.GenerateToken()
	if err != nil {
		return errx.Wrap(err, "failed to mint verification token", errx.TypeInternal)
	}
	if err := s.deps.Principals.UpdateEmail(ctx, p.ID, newEmail, verifyToken, time.Now().Add(verifyTokenTTL)); err != nil {
		return err
	}
	s.deps.Mailer.SendVerificationEmail(ctx, p.TenantID, newEmail, verifyToken)
	return nil
}

// ReapExpired prunes dead sessions and stale login attempts. Runs on a timer
// from the composition root.
func (s *Service) ReapExpired(ctx context.Context, attempts loginlimit.Repository, attemptRetention time.Duration) {
	if deleted, err := s.deps.Sessions.DeleteExpired(ctx); err != nil {
		logx.WithError(err).Warn("auth: session reap failed")
	} else if deleted > 0 {
		logx.Debugf("auth: reaped %d expired sessions", deleted)
	}
	if deleted, err := attempts.DeleteOlderThan(ctx, time.Now().Add(-attemptRetention)); err != nil {
		logx.WithError(err).Warn("auth: login attempt prune failed")
	} else if deleted > 0 {
		logx.Debugf("auth: pruned %d old login attempts", deleted)
	}
}
