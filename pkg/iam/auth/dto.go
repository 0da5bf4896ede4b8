package auth

import (
	"regexp"
	"strings"

	"github.com/klubhub/klubhub/pkg/errx"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func requireEmail(details []errx.FieldDetail, path, value string) []errx.FieldDetail {
	if strings.TrimSpace(value) == "" {
		return append(details, errx.FieldDetail{Path: path, Message: "email is required"})
	}
	if !emailPattern.MatchString(value) {
		return append(details, errx.FieldDetail{Path: path, Message: "invalid email address"})
	}
	return details
}

func require(details []errx.FieldDetail, path, value, message string) []errx.FieldDetail {
	if strings.TrimSpace(value) == "" {
		return append(details, errx.FieldDetail{Path: path, Message: message})
	}
	return details
}

// SignupRequest provisions a tenant and its first admin.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	ClubName string `json:"clubName"`
	PlanID   string `json:"planId"`
}

func (r SignupRequest) Validate() []errx.FieldDetail {
	var details []errx.FieldDetail
	details = requireEmail(details, "email", r.Email)
	details = require(details, "password", r.Password, "password is required")
	details = require(details, "clubName", r.ClubName, "club name is required")
	switch r.PlanID {
	case "", "basic", "professional":
	default:
		details = append(details, errx.FieldDetail{Path: "planId", Message: "plan must be basic or professional"})
	}
	return details
}

// RegisterRequest creates an admin inside an existing tenant.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID string `json:"tenantId"`
}

func (r RegisterRequest) Validate() []errx.FieldDetail {
	var details []errx.FieldDetail
	details = requireEmail(details, "email", r.Email)
	details = require(details, "password", r.Password, "password is required")
	details = require(details, "tenantId", r.TenantID, "tenant is required")
	return details
}

// LoginRequest carries either an email+password or a username+pin pair.
type LoginRequest struct {
	TenantID string `json:"tenantId"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	PIN      string `json:"pin"`
	TOTPCode string `json:"totpCode"`
}

// IsEmailFlow reports which credential pair the request uses.
func (r LoginRequest) IsEmailFlow() bool { return r.Email != "" }

func (r LoginRequest) Validate() []errx.FieldDetail {
	var details []errx.FieldDetail
	details = require(details, "tenantId", r.TenantID, "tenant is required")

	hasEmailPair := r.Email != "" && r.Password != ""
	hasPINPair := r.Username != "" && r.PIN != ""
	if !hasEmailPair && !hasPINPair {
		details = append(details, errx.FieldDetail{
			Path:    "credentials",
			Message: "either email and password or username and pin must be provided",
		})
	}
	return details
}

// RefreshRequest rotates a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r RefreshRequest) Validate() []errx.FieldDetail {
	return require(nil, "refreshToken", r.RefreshToken, "refresh token is required")
}

// LogoutRequest terminates one session.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// VerifyEmailRequest consumes a verify-email token.
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

func (r VerifyEmailRequest) Validate() []errx.FieldDetail {
	return require(nil, "token", r.Token, "token is required")
}

// ForgotPasswordRequest starts the admin password-reset flow.
type ForgotPasswordRequest struct {
	Email    string `json:"email"`
	TenantID string `json:"tenantId"`
}

func (r ForgotPasswordRequest) Validate() []errx.FieldDetail {
	var details []errx.FieldDetail
	details = requireEmail(details, "email", r.Email)
	details = require(details, "tenantId", r.TenantID, "tenant is required")
	return details
}

// ResetPasswordRequest consumes a password-reset token.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r ResetPasswordRequest) Validate() []errx.FieldDetail {
	var details []errx.FieldDetail
	details = require(details, "token", r.Token, "token is required")
	details = require(details, "password", r.Password, "password is required")
	return details
}

// ChangePasswordRequest is the authenticated admin password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r ChangePasswordRequest) Validate() []errx.FieldDetail {
	var details []errx.FieldDetail
	details = require(details, "currentPassword", r.CurrentPassword, "current password is required")
	details = require(details, "newPassword", r.NewPassword, "new password is required")
	return details
}

// ChangePINRequest is the authenticated coach PIN change.
type ChangePINRequest struct {
	CurrentPIN string `json:"currentPin"`
	NewPIN     string `json:"newPin"`
}

func (r ChangePINRequest) Validate() []errx.FieldDetail {
	var details []errx.FieldDetail
	details = require(details, "currentPin", r.CurrentPIN, "current pin is required")
	details = require(details, "newPin", r.NewPIN, "new pin is required")
	return details
}

// PINResetRequest multiplexes the reset-pin endpoint. Action selects which
// fields matter: "request" needs email+username+tenantId, "validate" needs
// token, "reset" needs token+pin.
type PINResetRequest struct {
	Action   string `json:"action"`
	Email    string `json:"email"`
	Username string `json:"username"`
	TenantID string `json:"tenantId"`
	Token    string `json:"token"`
	PIN      string `json:"pin"`
}

func (r PINResetRequest) Validate() []errx.FieldDetail {
	var details []errx.FieldDetail
	switch r.Action {
	case "request":
		details = requireEmail(details, "email", r.Email)
		details = require(details, "username", r.Username, "username is required")
		details = require(details, "tenantId", r.TenantID, "tenant is required")
	case "validate":
		details = require(details, "token", r.Token, "token is required")
	case "reset":
		details = require(details, "token", r.Token, "token is required")
		details = require(details, "pin", r.PIN, "pin is required")
	default:
		details = append(details, errx.FieldDetail{Path: "action", Message: "action must be request, validate or reset"})
	}
	return details
}

// Verify2FARequest confirms TOTP setup with a live code.
type Verify2FARequest struct {
	Code string `json:"code"`
}

func (r Verify2FARequest) Validate() []errx.FieldDetail {
	return require(nil, "code", r.Code, "code is required")
}

// Disable2FARequest turns 2FA off; requires the current password.
type Disable2FARequest struct {
	Password string `json:"password"`
}

func (r Disable2FARequest) Validate() []errx.FieldDetail {
	return require(nil, "password", r.Password, "password is required")
}

// UpdateProfileRequest changes the account email.
type UpdateProfileRequest struct {
	Email string `json:"email"`
}

func (r UpdateProfileRequest) Validate() []errx.FieldDetail {
	return requireEmail(nil, "email", r.Email)
}
