package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/klubhub/klubhub/pkg/errx"
	"github.com/klubhub/klubhub/pkg/iam"
	"github.com/klubhub/klubhub/pkg/iam/loginlimit"
)

// Handlers exposes the auth flows over HTTP.
type Handlers struct {
	service    *Service
	middleware *Middleware

	// useCookies switches token transport to HttpOnly cookies; the tokens
	// are then omitted from response bodies.
	useCookies      bool
	secureCookies   bool
	refreshTokenTTL time.Duration
}

// NewHandlers creates the HTTP layer.
func NewHandlers(service *Service, middleware *Middleware, useCookies, secureCookies bool, refreshTokenTTL time.Duration) *Handlers {
	return &Handlers{
		service:         service,
		middleware:      middleware,
		useCookies:      useCookies,
		secureCookies:   secureCookies,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// RegisterRoutes mounts the /auth endpoints.
func (h *Handlers) RegisterRoutes(router fiber.Router) {
	authed := h.middleware.RequireAuth()

	grp := router.Group("/auth")
	grp.Post("/signup", h.Signup)
	grp.Post("/register", h.Register)
	grp.Post("/login", h.Login)
	grp.Post("/refresh", h.Refresh)
	grp.Post("/logout", h.Logout)
	grp.Post("/verify-email", h.VerifyEmail)
	grp.Post("/forgot-password", h.ForgotPassword)
	grp.Post("/reset-password", h.ResetPassword)
	grp.Post("/reset-pin", h.ResetPIN)
	grp.Post("/change-password", authed, h.ChangePassword)
	grp.Post("/change-pin", authed, h.ChangePIN)
	grp.Post("/setup-2fa", authed, h.Setup2FA)
	grp.Post("/verify-2fa", authed, h.Verify2FA)
	grp.Post("/disable-2fa", authed, h.Disable2FA)
	grp.Put("/update-profile", authed, h.UpdateProfile)
	grp.Get("/club", authed, h.Whoami)
}

func parseBody[T any](c *fiber.Ctx) (T, error) {
	var req T
	if err := c.BodyParser(&req); err != nil {
		return req, errx.Validation("Invalid request body")
	}
	return req, nil
}

func clientIP(c *fiber.Ctx) string {
	return loginlimit.ClientIP(c.Get("X-Forwarded-For"))
}

func (h *Handlers) setTokenCookies(c *fiber.Ctx, tokens *TokenPair) {
	c.Cookie(&fiber.Cookie{
		Name:     "accessToken",
		Value:    tokens.AccessToken,
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: "Strict",
		Path:     "/",
		Expires:  time.Now().Add(h.service.deps.Tokens.AccessTokenTTL()),
	})
	c.Cookie(&fiber.Cookie{
		Name:     "refreshToken",
		Value:    tokens.RefreshToken,
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: "Strict",
		Path:     "/",
		Expires:  time.Now().Add(h.refreshTokenTTL),
	})
}

func (h *Handlers) clearTokenCookies(c *fiber.Ctx) {
	expired := time.Now().Add(-time.Hour)
	for _, name := range []string{"accessToken", "refreshToken"} {
		c.Cookie(&fiber.Cookie{Name: name, Value: "", HTTPOnly: true, Path: "/", Expires: expired})
	}
}

// tokenResponse renders a token pair either into the body or into cookies.
func (h *Handlers) tokenResponse(c *fiber.Ctx, tokens *TokenPair, extra fiber.Map) error {
	body := fiber.Map{}
	for k, v := range extra {
		body[k] = v
	}
	if h.useCookies {
		h.setTokenCookies(c, tokens)
	} else {
		body["accessToken"] = tokens.AccessToken
		body["refreshToken"] = tokens.RefreshToken
	}
	return c.JSON(body)
}

// Signup handles POST /auth/signup.
func (h *Handlers) Signup(c *fiber.Ctx) error {
	req, err := parseBody[SignupRequest](c)
	if err != nil {
		return err
	}
	snapshot, err := h.service.Signup(c.Context(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"club":    snapshot,
	})
}

// Register handles POST /auth/register. The response never discloses
// whether the account already existed.
func (h *Handlers) Register(c *fiber.Ctx) error {
	req, err := parseBody[RegisterRequest](c)
	if err != nil {
		return err
	}
	if err := h.service.Register(c.Context(), req); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Account created. Please check your email to verify your address.",
	})
}

// Login handles POST /auth/login.
func (h *Handlers) Login(c *fiber.Ctx) error {
	req, err := parseBody[LoginRequest](c)
	if err != nil {
		return err
	}
	result, err := h.service.Login(c.Context(), req, clientIP(c))
	if err != nil {
		return err
	}
	if result.Requires2FA {
		return c.JSON(fiber.Map{"requires2FA": true})
	}
	return h.tokenResponse(c, result.Tokens, fiber.Map{"club": result.Principal.Snapshot()})
}

// Refresh handles POST /auth/refresh.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	req, err := parseBody[RefreshRequest](c)
	if err != nil {
		return err
	}
	if req.RefreshToken == "" && h.useCookies {
		req.RefreshToken = c.Cookies("refreshToken")
	}
	tokens, err := h.service.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return h.tokenResponse(c, tokens, nil)
}

// Logout handles POST /auth/logout. Idempotent.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	req, _ := parseBody[LogoutRequest](c)
	if req.RefreshToken == "" && h.useCookies {
		req.RefreshToken = c.Cookies("refreshToken")
	}
	if err := h.service.Logout(c.Context(), req.RefreshToken); err != nil {
		return err
	}
	if h.useCookies {
		h.clearTokenCookies(c)
	}
	return c.JSON(fiber.Map{"success": true})
}

// VerifyEmail handles POST /auth/verify-email.
func (h *Handlers) VerifyEmail(c *fiber.Ctx) error {
	req, err := parseBody[VerifyEmailRequest](c)
	if err != nil {
		return err
	}
	if details := req.Validate(); len(details) > 0 {
		return validationError(details)
	}
	if err := h.service.VerifyEmail(c.Context(), req.Token); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Email verified."})
}

// ForgotPassword handles POST /auth/forgot-password. Always 200.
func (h *Handlers) ForgotPassword(c *fiber.Ctx) error {
	req, err := parseBody[ForgotPasswordRequest](c)
	if err != nil {
		return err
	}
	if err := h.service.ForgotPassword(c.Context(), req); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "If the account exists, a reset link has been sent.",
	})
}

// ResetPassword handles POST /auth/reset-password.
func (h *Handlers) ResetPassword(c *fiber.Ctx) error {
	req, err := parseBody[ResetPasswordRequest](c)
	if err != nil {
		return err
	}
	if err := h.service.ResetPassword(c.Context(), req); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Password has been reset."})
}

// ResetPIN handles POST /auth/reset-pin?action=request|validate|reset.
func (h *Handlers) ResetPIN(c *fiber.Ctx) error {
	req, err := parseBody[PINResetRequest](c)
	if err != nil {
		return err
	}
	if action := c.Query("action"); action != "" {
		req.Action = action
	}
	if details := req.Validate(); len(details) > 0 {
		return validationError(details)
	}

	switch req.Action {
	case "request":
		if err := h.service.RequestPINReset(c.Context(), req.Email, req.Username, req.TenantID); err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": "If the account exists, a reset link has been sent.",
		})
	case "validate":
		username, err := h.service.ValidatePINResetToken(c.Context(), req.Token)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"valid": true, "username": username})
	default: // "reset", guaranteed by Validate
		if err := h.service.ResetPIN(c.Context(), req.Token, req.PIN); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "PIN has been reset."})
	}
}

// ChangePassword handles POST /auth/change-password.
func (h *Handlers) ChangePassword(c *fiber.Ctx) error {
	p, ok := PrincipalFromContext(c)
	if !ok {
		return iam.ErrUnauthorized()
	}
	req, err := parseBody[ChangePasswordRequest](c)
	if err != nil {
		return err
	}
	if err := h.service.ChangePassword(c.Context(), p, req); err != nil {
		return err
	}
	if h.useCookies {
		h.clearTokenCookies(c)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Password changed. Please log in again."})
}

// ChangePIN handles POST /auth/change-pin.
func (h *Handlers) ChangePIN(c *fiber.Ctx) error {
	p, ok := PrincipalFromContext(c)
	if !ok {
		return iam.ErrUnauthorized()
	}
	req, err := parseBody[ChangePINRequest](c)
	if err != nil {
		return err
	}
	if err := h.service.ChangePIN(c.Context(), p, req); err != nil {
		return err
	}
	if h.useCookies {
		h.clearTokenCookies(c)
	}
	return c.JSON(fiber.Map{"success": true, "message": "PIN changed. Please log in again."})
}

// Setup2FA handles POST /auth/setup-2fa.
func (h *Handlers) Setup2FA(c *fiber.Ctx) error {
	p, ok := PrincipalFromContext(c)
	if !ok {
		return iam.ErrUnauthorized()
	}
	setup, err := h.service.Setup2FA(c.Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"secret":     setup.Secret,
		"qrCode":     setup.QRCodeURI,
		"otpauthUrl": setup.OTPAuthURL,
	})
}

// Verify2FA handles POST /auth/verify-2fa.
func (h *Handlers) Verify2FA(c *fiber.Ctx) error {
	p, ok := PrincipalFromContext(c)
	if !ok {
		return iam.ErrUnauthorized()
	}
	req, err := parseBody[Verify2FARequest](c)
	if err != nil {
		return err
	}
	if details := req.Validate(); len(details) > 0 {
		return validationError(details)
	}
	codes, err := h.service.Verify2FA(c.Context(), p, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "backupCodes": codes})
}

// Disable2FA handles POST /auth/disable-2fa.
func (h *Handlers) Disable2FA(c *fiber.Ctx) error {
	p, ok := PrincipalFromContext(c)
	if !ok {
		return iam.ErrUnauthorized()
	}
	req, err := parseBody[Disable2FARequest](c)
	if err != nil {
		return err
	}
	if details := req.Validate(); len(details) > 0 {
		return validationError(details)
	}
	if err := h.service.Disable2FA(c.Context(), p, req.Password); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Two-factor authentication disabled."})
}

// UpdateProfile handles PUT /auth/update-profile.
func (h *Handlers) UpdateProfile(c *fiber.Ctx) error {
	p, ok := PrincipalFromContext(c)
	if !ok {
		return iam.ErrUnauthorized()
	}
	req, err := parseBody[UpdateProfileRequest](c)
	if err != nil {
		return err
	}
	if err := h.service.UpdateProfile(c.Context(), p, req); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated. Please verify your new email address.",
	})
}

// Whoami handles GET /auth/club.
func (h *Handlers) Whoami(c *fiber.Ctx) error {
	p, ok := PrincipalFromContext(c)
	if !ok {
		return iam.ErrUnauthorized()
	}
	return c.JSON(fiber.Map{"club": p.Snapshot()})
}
