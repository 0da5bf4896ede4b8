// Package auth implements signup, login, token issuance and the account
// self-service flows (verification, resets, 2FA, profile).
package auth

import (
	"net/http"

	"github.com/klubhub/klubhub/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("AUTH")

var (
	CodeTokenGenerationFailed = ErrRegistry.Register("TOKEN_GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Token generation failed")
	CodeTokenValidationFailed = ErrRegistry.Register("TOKEN_VALIDATION_FAILED", errx.TypeAuthorization, http.StatusUnauthorized, "Token validation failed")
	CodeEmailNotVerified      = ErrRegistry.Register("EMAIL_NOT_VERIFIED", errx.TypeForbidden, http.StatusForbidden, "Email address has not been verified")
	CodeInvalidResetToken     = ErrRegistry.Register("INVALID_RESET_TOKEN", errx.TypeValidation, http.StatusBadRequest, "Invalid or expired token")
	CodeWeakPassword          = ErrRegistry.Register("WEAK_PASSWORD", errx.TypeValidation, http.StatusBadRequest, "Password does not meet the requirements")
	CodeBreachedPassword      = ErrRegistry.Register("BREACHED_PASSWORD", errx.TypeValidation, http.StatusBadRequest, "Password has appeared in a known data breach")
	CodeInvalidTOTPCode       = ErrRegistry.Register("INVALID_TOTP_CODE", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid two-factor code")
	CodeTwoFactorAlreadyOn    = ErrRegistry.Register("TWO_FACTOR_ALREADY_ENABLED", errx.TypeConflict, http.StatusConflict, "Two-factor authentication is already enabled")
	CodeTwoFactorNotSetUp     = ErrRegistry.Register("TWO_FACTOR_NOT_SET_UP", errx.TypeValidation, http.StatusBadRequest, "Two-factor authentication has not been set up")
	CodeEmailDispatchFailed   = ErrRegistry.Register("EMAIL_DISPATCH_FAILED", errx.TypeExternal, http.StatusInternalServerError, "Failed to send email")
)

func ErrTokenGenerationFailed() *errx.Error { return ErrRegistry.New(CodeTokenGenerationFailed) }

func ErrTokenValidationFailed() *errx.Error { return ErrRegistry.New(CodeTokenValidationFailed) }

func ErrEmailNotVerified() *errx.Error { return ErrRegistry.New(CodeEmailNotVerified) }

func ErrInvalidResetToken() *errx.Error { return ErrRegistry.New(CodeInvalidResetToken) }

func ErrInvalidTOTPCode() *errx.Error { return ErrRegistry.New(CodeInvalidTOTPCode) }

func ErrTwoFactorAlreadyEnabled() *errx.Error { return ErrRegistry.New(CodeTwoFactorAlreadyOn) }

func ErrTwoFactorNotSetUp() *errx.Error { return ErrRegistry.New(CodeTwoFactorNotSetUp) }

func ErrEmailDispatchFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeEmailDispatchFailed, cause)
}
