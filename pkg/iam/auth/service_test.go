package auth

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/klubhub/klubhub/pkg/config"
	"github.com/klubhub/klubhub/pkg/cryptox"
	"github.com/klubhub/klubhub/pkg/errx"
	"github.com/klubhub/klubhub/pkg/fsx/fsxlocal"
	"github.com/klubhub/klubhub/pkg/iam"
	"github.com/klubhub/klubhub/pkg/iam/loginlimit"
	"github.com/klubhub/klubhub/pkg/iam/principal"
	"github.com/klubhub/klubhub/pkg/iam/session"
	"github.com/klubhub/klubhub/pkg/kernel"
	"github.com/klubhub/klubhub/pkg/ptrx"
	"github.com/klubhub/klubhub/pkg/tenantx"
)

// testParams keeps argon2 cheap; Verify reads the cost from the PHC string,
// so production hashes would still verify.
var testParams = cryptox.Params{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type testEnv struct {
	svc        *Service
	principals *fakePrincipals
	sessions   *fakeSessions
	attempts   *fakeAttempts
	tenants    *tenantx.Store
	hasher     *cryptox.Hasher
	totp       *TOTPManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fs, err := fsxlocal.NewLocalFileSystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFileSystem: %v", err)
	}

	env := &testEnv{
		principals: newFakePrincipals(),
		sessions:   newFakeSessions(),
		attempts:   &fakeAttempts{},
		tenants:    tenantx.NewStore(fs, "tenants"),
		hasher:     cryptox.NewHasher(testParams),
		totp:       NewTOTPManager("KlubHub"),
	}
	env.svc = NewService(Deps{
		Principals:      env.principals,
		Sessions:        env.sessions,
		Limiter:         loginlimit.NewLimiter(env.attempts),
		Tokens:          NewJWTService("test-secret", time.Minute, "klubhub"),
		TOTP:            env.totp,
		Mailer:          NewMailer(nil, nil, config.EmailConfig{}, config.TenantConfig{}, true),
		Tenants:         env.tenants,
		PasswordHasher:  env.hasher,
		PINHasher:       env.hasher,
		RefreshTokenTTL: time.Hour,
	})
	return env
}

func (e *testEnv) seedTenant(t *testing.T, subdomain string) {
	t.Helper()
	err := e.tenants.Put(context.Background(), tenantx.Config{
		ID: "tid-" + subdomain, Name: subdomain, Subdomain: subdomain, PlanID: "basic",
	})
	if err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
}

func (e *testEnv) seedAdmin(t *testing.T, tenant, email, password string, verified bool) *principal.Principal {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	p := principal.NewAdmin(kernel.TenantID(tenant), email, hash)
	p.EmailVerified = verified
	if err := e.principals.Create(context.Background(), p); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return p
}

func (e *testEnv) seedCoach(t *testing.T, tenant, email, username, pin string) *principal.Principal {
	t.Helper()
	hash, err := e.hasher.Hash(pin)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	p := principal.NewCoach(kernel.TenantID(tenant), email, username, hash)
	if err := e.principals.Create(context.Background(), p); err != nil {
		t.Fatalf("seed coach: %v", err)
	}
	return p
}

func wantCode(t *testing.T, err error, code *errx.ErrorCode) {
	t.Helper()
	var e *errx.Error
	if !errx.As(err, &e) {
		t.Fatalf("expected *errx.Error, got %v", err)
	}
	if e.Code != code.Code {
		t.Fatalf("error code = %s, want %s", e.Code, code.Code)
	}
}

func TestLoginAdminSuccess(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", true)

	result, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "Admin@Holte.dk", Password: "Passw0rd!",
	}, "1.2.3.4")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Requires2FA {
		t.Fatal("unexpected 2FA challenge")
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if env.sessions.count() != 1 {
		t.Errorf("sessions = %d, want 1", env.sessions.count())
	}
	if last := env.attempts.last(); last == nil || !last.Success {
		t.Error("successful login should record a success attempt")
	}

	stored, _ := env.principals.FindByIDAnyTenant(context.Background(), p.ID)
	if stored.LastLogin == nil {
		t.Error("last login should be touched")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", true)

	_, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "admin@holte.dk", Password: "wrong-guess",
	}, "1.2.3.4")
	wantCode(t, err, iam.CodeInvalidCredentials)

	last := env.attempts.last()
	if last == nil || last.Success {
		t.Fatal("failed login should record a failure attempt")
	}
	if last.PrincipalID == nil {
		t.Error("failure against a known account should carry the principal id")
	}
}

func TestLoginUnknownAccountSameError(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", true)

	_, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "nobody@holte.dk", Password: "Passw0rd!",
	}, "1.2.3.4")
	wantCode(t, err, iam.CodeInvalidCredentials)

	last := env.attempts.last()
	if last == nil || last.Success {
		t.Fatal("unknown account should still record a failure")
	}
	if last.PrincipalID != nil {
		t.Error("failure against an unknown account must not carry a principal id")
	}
}

func TestLoginLockout(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", true)

	for i := 0; i < loginlimit.MaxFailures; i++ {
		_, err := env.svc.Login(context.Background(), LoginRequest{
			TenantID: "holte-if", Email: "admin@holte.dk", Password: "wrong-guess",
		}, "1.2.3.4")
		wantCode(t, err, iam.CodeInvalidCredentials)
	}

	// Correct credentials do not bypass the lockout.
	_, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "admin@holte.dk", Password: "Passw0rd!",
	}, "1.2.3.4")
	wantCode(t, err, loginlimit.CodeTooManyAttempts)

	var e *errx.Error
	errx.As(err, &e)
	if _, ok := e.Details["lockoutUntil"]; !ok {
		t.Error("lockout error should carry lockoutUntil")
	}

	// A different source address is unaffected.
	if _, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "admin@holte.dk", Password: "Passw0rd!",
	}, "5.6.7.8"); err != nil {
		t.Fatalf("different ip should not be locked out: %v", err)
	}
}

func TestLoginUnverifiedEmailBlocked(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", false)

	_, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "admin@holte.dk", Password: "Passw0rd!",
	}, "1.2.3.4")
	wantCode(t, err, CodeEmailNotVerified)
}

func TestCoachLoginWithPIN(t *testing.T) {
	env := newTestEnv(t)
	env.seedCoach(t, "holte-if", "lars@holte.dk", "Lars", "123456")

	// Mixed-case username resolves via the canonical form. Coaches skip
	// email verification entirely.
	result, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Username: "LARS", PIN: "123456",
	}, "1.2.3.4")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Principal.Role != kernel.RoleCoach {
		t.Errorf("role = %s, want coach", result.Principal.Role)
	}
}

func TestCoachCannotUseEmailFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedCoach(t, "holte-if", "lars@holte.dk", "lars", "123456")

	_, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "lars@holte.dk", Password: "123456",
	}, "1.2.3.4")
	wantCode(t, err, iam.CodeInvalidCredentials)
}

func TestLoginRequires2FA(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", true)
	p.TwoFactorEnabled = true

	result, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "admin@holte.dk", Password: "Passw0rd!",
	}, "1.2.3.4")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !result.Requires2FA {
		t.Fatal("expected a 2FA challenge")
	}
	if result.Tokens != nil {
		t.Error("challenge response must not carry tokens")
	}
	if env.sessions.count() != 0 {
		t.Error("no session may exist before the second factor")
	}
}

func TestLoginWithTOTPCode(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", true)

	setup, err := env.totp.GenerateSecret(p.Email)
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	p.TwoFactorEnabled = true
	p.TwoFactorSecret = &setup.Secret

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}

	result, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "admin@holte.dk", Password: "Passw0rd!", TOTPCode: code,
	}, "1.2.3.4")
	if err != nil {
		t.Fatalf("Login with TOTP: %v", err)
	}
	if result.Requires2FA || result.Tokens == nil {
		t.Fatal("valid code should complete the login")
	}

	// A wrong code is a failure, and it is rate limited like a password.
	_, err = env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "admin@holte.dk", Password: "Passw0rd!", TOTPCode: "000000",
	}, "1.2.3.4")
	if err == nil {
		t.Fatal("wrong code should fail")
	}
	if last := env.attempts.last(); last == nil || last.Success {
		t.Error("wrong code should record a failure attempt")
	}
}

func TestLoginWithBackupCodeConsumesIt(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", true)

	hash, err := env.hasher.Hash("aaaa-bbbb")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	p.TwoFactorEnabled = true
	p.TwoFactorSecret = ptrx.String("JBSWY3DPEHPK3PXP")
	p.TwoFactorBackupCodes = []string{hash}

	if _, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "admin@holte.dk", Password: "Passw0rd!", TOTPCode: "aaaa-bbbb",
	}, "1.2.3.4"); err != nil {
		t.Fatalf("login with backup code: %v", err)
	}

	stored, _ := env.principals.FindByIDAnyTenant(context.Background(), p.ID)
	if len(stored.TwoFactorBackupCodes) != 0 {
		t.Fatal("backup code should be consumed")
	}

	// The same code cannot be replayed.
	_, err = env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "admin@holte.dk", Password: "Passw0rd!", TOTPCode: "aaaa-bbbb",
	}, "1.2.3.4")
	wantCode(t, err, CodeInvalidTOTPCode)
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", true)

	result, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "admin@holte.dk", Password: "Passw0rd!",
	}, "1.2.3.4")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	old := result.Tokens.RefreshToken

	rotated, err := env.svc.Refresh(context.Background(), old)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.RefreshToken == old {
		t.Fatal("refresh must rotate the token")
	}
	if env.sessions.count() != 1 {
		t.Errorf("sessions = %d, want 1 after rotation", env.sessions.count())
	}

	// Replaying the consumed token fails.
	_, err = env.svc.Refresh(context.Background(), old)
	wantCode(t, err, session.CodeInvalidRefreshToken)

	// The rotated token still works.
	if _, err := env.svc.Refresh(context.Background(), rotated.RefreshToken); err != nil {
		t.Fatalf("second rotation: %v", err)
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.Refresh(context.Background(), "deadbeef"); err == nil {
		t.Fatal("unknown refresh token should fail")
	}
	if _, err := env.svc.Refresh(context.Background(), ""); err == nil {
		t.Fatal("empty refresh token should fail")
	}
}

func TestLogoutIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", true)

	result, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "admin@holte.dk", Password: "Passw0rd!",
	}, "1.2.3.4")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := env.svc.Logout(context.Background(), result.Tokens.RefreshToken); err != nil {
			t.Fatalf("Logout: %v", err)
		}
	}
	if env.sessions.count() != 0 {
		t.Error("logout should remove the session")
	}
	if err := env.svc.Logout(context.Background(), ""); err != nil {
		t.Errorf("logout without a token is a no-op, got %v", err)
	}
}

func TestSignupProvisionsTenantAndAdmin(t *testing.T) {
	env := newTestEnv(t)

	snapshot, err := env.svc.Signup(context.Background(), SignupRequest{
		Email: "formand@holte.dk", Password: "Passw0rd!", ClubName: "Holte Idrætsforening",
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if snapshot.TenantID != "holte-idraetsforening" {
		t.Errorf("tenantId = %q", snapshot.TenantID)
	}
	if snapshot.Role != "admin" {
		t.Errorf("role = %q, want admin", snapshot.Role)
	}
	if snapshot.EmailVerified {
		t.Error("new admin must start unverified")
	}

	cfg, err := env.tenants.Get(context.Background(), "holte-idraetsforening")
	if err != nil {
		t.Fatalf("tenant config not written: %v", err)
	}
	if cfg.PlanID != "basic" {
		t.Errorf("plan defaults to basic, got %q", cfg.PlanID)
	}
	if cfg.Name != "Holte Idrætsforening" {
		t.Errorf("club name = %q", cfg.Name)
	}
}

func TestSignupSubdomainConflict(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, "holte-if")

	_, err := env.svc.Signup(context.Background(), SignupRequest{
		Email: "x@y.dk", Password: "Passw0rd!", ClubName: "Holte IF",
	})
	wantCode(t, err, tenantx.CodeSubdomainTaken)
}

func TestSignupReservedClubName(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Signup(context.Background(), SignupRequest{
		Email: "x@y.dk", Password: "Passw0rd!", ClubName: "Admin",
	})
	if err == nil {
		t.Fatal("reserved subdomain should be rejected")
	}
}

func TestSignupEmailConflictDisclosed(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "anden-klub", "formand@holte.dk", "Passw0rd!", true)

	_, err := env.svc.Signup(context.Background(), SignupRequest{
		Email: "formand@holte.dk", Password: "Passw0rd!", ClubName: "Holte IF",
	})
	wantCode(t, err, iam.CodeEmailTaken)
}

func TestSignupWeakPassword(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Signup(context.Background(), SignupRequest{
		Email: "x@y.dk", Password: "short", ClubName: "Holte IF",
	})
	if err == nil || !errx.IsType(err, errx.TypeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegisterSilentOnDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, "holte-if")
	env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", true)

	err := env.svc.Register(context.Background(), RegisterRequest{
		Email: "admin@holte.dk", Password: "Passw0rd!", TenantID: "holte-if",
	})
	if err != nil {
		t.Fatalf("duplicate registration must look like success, got %v", err)
	}
}

func TestRegisterSilentOnUnknownTenant(t *testing.T) {
	env := newTestEnv(t)

	err := env.svc.Register(context.Background(), RegisterRequest{
		Email: "x@y.dk", Password: "Passw0rd!", TenantID: "no-such-club",
	})
	if err != nil {
		t.Fatalf("unknown tenant must look like success, got %v", err)
	}
	if exists, _ := env.principals.EmailExistsAnywhere(context.Background(), "x@y.dk"); exists {
		t.Error("no account may be created for an unknown tenant")
	}
}

func TestVerifyEmail(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", false)

	token := "verify-tok"
	p.EmailVerificationToken = ptrx.String(token)
	p.EmailVerificationExpires = ptrx.Time(time.Now().Add(time.Hour))

	if err := env.svc.VerifyEmail(context.Background(), token); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	stored, _ := env.principals.FindByIDAnyTenant(context.Background(), p.ID)
	if !stored.EmailVerified {
		t.Fatal("email should be verified")
	}
	if stored.EmailVerificationToken != nil {
		t.Error("token should be cleared")
	}

	// Consumed token no longer resolves.
	wantCode(t, env.svc.VerifyEmail(context.Background(), token), CodeInvalidResetToken)
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", false)

	token := "stale-tok"
	p.EmailVerificationToken = ptrx.String(token)
	p.EmailVerificationExpires = ptrx.Time(time.Now().Add(-time.Minute))

	wantCode(t, env.svc.VerifyEmail(context.Background(), token), CodeInvalidResetToken)
}

func TestForgotPasswordUnknownEmailSilent(t *testing.T) {
	env := newTestEnv(t)
	err := env.svc.ForgotPassword(context.Background(), ForgotPasswordRequest{
		Email: "nobody@holte.dk", TenantID: "holte-if",
	})
	if err != nil {
		t.Fatalf("unknown email must look like success, got %v", err)
	}
}

func TestResetPasswordFlow(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedAdmin(t, "holte-if", "admin@holte.dk", "OldPassw0rd!", true)

	if err := env.svc.ForgotPassword(context.Background(), ForgotPasswordRequest{
		Email: "admin@holte.dk", TenantID: "holte-if",
	}); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}

	stored, _ := env.principals.FindByIDAnyTenant(context.Background(), p.ID)
	if stored.PasswordResetToken == nil {
		t.Fatal("reset token should be stored")
	}
	token := *stored.PasswordResetToken

	// Seed a live session; the reset must kill it.
	login, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "admin@holte.dk", Password: "OldPassw0rd!",
	}, "1.2.3.4")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := env.svc.ResetPassword(context.Background(), ResetPasswordRequest{
		Token: token, Password: "NewPassw0rd!",
	}); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if env.sessions.count() != 0 {
		t.Error("password reset must delete all sessions")
	}
	if _, err := env.svc.Refresh(context.Background(), login.Tokens.RefreshToken); err == nil {
		t.Error("old refresh token should be dead")
	}

	// Old password out, new password in.
	if _, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "admin@holte.dk", Password: "OldPassw0rd!",
	}, "1.2.3.4"); err == nil {
		t.Error("old password should no longer work")
	}
	if _, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "admin@holte.dk", Password: "NewPassw0rd!",
	}, "5.6.7.8"); err != nil {
		t.Errorf("new password should work: %v", err)
	}

	// The token was consumed by the hash update.
	wantCode(t, env.svc.ResetPassword(context.Background(), ResetPasswordRequest{
		Token: token, Password: "AnotherPassw0rd!",
	}), CodeInvalidResetToken)
}

func TestChangePasswordDeletesSessions(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedAdmin(t, "holte-if", "admin@holte.dk", "OldPassw0rd!", true)

	if _, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Email: "admin@holte.dk", Password: "OldPassw0rd!",
	}, "1.2.3.4"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	err := env.svc.ChangePassword(context.Background(), p, ChangePasswordRequest{
		CurrentPassword: "wrong", NewPassword: "NewPassw0rd!",
	})
	wantCode(t, err, iam.CodeInvalidCredentials)

	if err := env.svc.ChangePassword(context.Background(), p, ChangePasswordRequest{
		CurrentPassword: "OldPassw0rd!", NewPassword: "NewPassw0rd!",
	}); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if env.sessions.count() != 0 {
		t.Error("password change must delete all sessions")
	}
}

func TestChangePINRejectsBadPIN(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedCoach(t, "holte-if", "lars@holte.dk", "lars", "123456")

	err := env.svc.ChangePIN(context.Background(), p, ChangePINRequest{
		CurrentPIN: "123456", NewPIN: "12ab56",
	})
	if err == nil || !errx.IsType(err, errx.TypeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	err = env.svc.ChangePIN(context.Background(), p, ChangePINRequest{
		CurrentPIN: "999999", NewPIN: "654321",
	})
	wantCode(t, err, iam.CodeInvalidCredentials)
}

func TestPINResetFlow(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedCoach(t, "holte-if", "lars@holte.dk", "lars", "123456")

	// Email mismatch is silently absorbed.
	if err := env.svc.RequestPINReset(context.Background(), "wrong@holte.dk", "lars", "holte-if"); err != nil {
		t.Fatalf("mismatch must look like success, got %v", err)
	}
	if stored, _ := env.principals.FindByIDAnyTenant(context.Background(), p.ID); stored.PINResetToken != nil {
		t.Fatal("no token may be issued on mismatch")
	}

	// Case-insensitive email match issues the token.
	if err := env.svc.RequestPINReset(context.Background(), "LARS@holte.dk", "lars", "holte-if"); err != nil {
		t.Fatalf("RequestPINReset: %v", err)
	}
	stored, _ := env.principals.FindByIDAnyTenant(context.Background(), p.ID)
	if stored.PINResetToken == nil {
		t.Fatal("token should be issued")
	}
	token := *stored.PINResetToken

	username, err := env.svc.ValidatePINResetToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidatePINResetToken: %v", err)
	}
	if username != "lars" {
		t.Errorf("username = %q", username)
	}

	if err := env.svc.ResetPIN(context.Background(), token, "654321"); err != nil {
		t.Fatalf("ResetPIN: %v", err)
	}
	if _, err := env.svc.Login(context.Background(), LoginRequest{
		TenantID: "holte-if", Username: "lars", PIN: "654321",
	}, "1.2.3.4"); err != nil {
		t.Errorf("new PIN should work: %v", err)
	}

	// Consumed token is gone.
	wantCode(t, env.svc.ResetPIN(context.Background(), token, "111111"), CodeInvalidResetToken)
}

func TestSetup2FA(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", true)

	setup, err := env.svc.Setup2FA(context.Background(), p)
	if err != nil {
		t.Fatalf("Setup2FA: %v", err)
	}
	if setup.Secret == "" {
		t.Fatal("expected a secret")
	}
	stored, _ := env.principals.FindByIDAnyTenant(context.Background(), p.ID)
	if stored.TwoFactorSecret == nil || *stored.TwoFactorSecret != setup.Secret {
		t.Error("secret should be stored")
	}
	if stored.TwoFactorEnabled {
		t.Error("setup alone must not enable 2FA")
	}

	p.TwoFactorEnabled = true
	_, err = env.svc.Setup2FA(context.Background(), p)
	wantCode(t, err, CodeTwoFactorAlreadyOn)
}

func TestVerify2FAEnablesAndReturnsBackupCodes(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", true)

	_, err := env.svc.Verify2FA(context.Background(), p, "123456")
	wantCode(t, err, CodeTwoFactorNotSetUp)

	setup, err := env.svc.Setup2FA(context.Background(), p)
	if err != nil {
		t.Fatalf("Setup2FA: %v", err)
	}
	p.TwoFactorSecret = &setup.Secret

	_, err = env.svc.Verify2FA(context.Background(), p, "000000")
	if err == nil {
		t.Fatal("wrong setup code should fail")
	}

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	codes, err := env.svc.Verify2FA(context.Background(), p, code)
	if err != nil {
		t.Fatalf("Verify2FA: %v", err)
	}
	if len(codes) != backupCodeCount {
		t.Fatalf("got %d backup codes, want %d", len(codes), backupCodeCount)
	}

	stored, _ := env.principals.FindByIDAnyTenant(context.Background(), p.ID)
	if !stored.TwoFactorEnabled {
		t.Error("2FA should be enabled")
	}
	for i, hash := range stored.TwoFactorBackupCodes {
		if hash == codes[i] {
			t.Fatal("backup codes must be stored hashed")
		}
	}
}

func TestDisable2FARequiresPassword(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", true)
	p.TwoFactorEnabled = true

	err := env.svc.Disable2FA(context.Background(), p, "wrong")
	wantCode(t, err, iam.CodeInvalidCredentials)

	if err := env.svc.Disable2FA(context.Background(), p, "Passw0rd!"); err != nil {
		t.Fatalf("Disable2FA: %v", err)
	}
	stored, _ := env.principals.FindByIDAnyTenant(context.Background(), p.ID)
	if stored.TwoFactorEnabled || stored.TwoFactorSecret != nil {
		t.Error("2FA state should be cleared")
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedAdmin(t, "holte-if", "admin@holte.dk", "Passw0rd!", true)
	env.seedAdmin(t, "holte-if", "other@holte.dk", "Passw0rd!", true)

	// Same email is a no-op.
	if err := env.svc.UpdateProfile(context.Background(), p, UpdateProfileRequest{Email: "admin@holte.dk"}); err != nil {
		t.Fatalf("same email: %v", err)
	}

	err := env.svc.UpdateProfile(context.Background(), p, UpdateProfileRequest{Email: "other@holte.dk"})
	wantCode(t, err, iam.CodeEmailTaken)

	if err := env.svc.UpdateProfile(context.Background(), p, UpdateProfileRequest{Email: "ny@holte.dk"}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	stored, _ := env.principals.FindByIDAnyTenant(context.Background(), p.ID)
	if stored.Email != "ny@holte.dk" {
		t.Errorf("email = %q", stored.Email)
	}
	if stored.EmailVerified {
		t.Error("email change must restart verification")
	}
	if stored.EmailVerificationToken == nil {
		t.Error("a fresh verification token should be stored")
	}
}

func TestReapExpired(t *testing.T) {
	env := newTestEnv(t)

	// One dead session, one stale attempt.
	dead := session.New(kernel.PrincipalID("p-1"), "hash-1", -time.Minute)
	if err := env.sessions.Create(context.Background(), dead); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = env.attempts.Record(context.Background(), &loginlimit.Attempt{
		ID: "a-1", Identifier: "x", IP: "1.2.3.4", OccurredAt: time.Now().Add(-48 * time.Hour),
	})

	env.svc.ReapExpired(context.Background(), env.attempts, 24*time.Hour)

	if env.sessions.count() != 0 {
		t.Error("expired session should be reaped")
	}
	if got, _ := env.attempts.FailuresSince(context.Background(), "x", "1.2.3.4", time.Now().Add(-72*time.Hour)); len(got) != 0 {
		t.Error("stale attempts should be pruned")
	}
}
