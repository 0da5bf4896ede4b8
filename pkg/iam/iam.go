package iam

import (
	"net/http"

	"github.com/klubhub/klubhub/pkg/errx"
)

// ErrRegistry holds the error codes shared across the identity modules.
var ErrRegistry = errx.NewRegistry("IAM")

var (
	CodeUnauthorized       = ErrRegistry.Register("UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "Unauthorized")
	CodeInvalidToken       = ErrRegistry.Register("INVALID_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid or expired token")
	CodeInvalidCredentials = ErrRegistry.Register("INVALID_CREDENTIALS", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid credentials")
	CodeAccessDenied       = ErrRegistry.Register("ACCESS_DENIED", errx.TypeForbidden, http.StatusForbidden, "Access denied")
	CodePrincipalNotFound  = ErrRegistry.Register("PRINCIPAL_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Account not found")
	CodeEmailTaken         = ErrRegistry.Register("EMAIL_TAKEN", errx.TypeConflict, http.StatusConflict, "Email is already in use")
	CodeUsernameTaken      = ErrRegistry.Register("USERNAME_TAKEN", errx.TypeConflict, http.StatusConflict, "Username is already in use")
	CodeRateLimited        = ErrRegistry.Register("RATE_LIMITED", errx.TypeRateLimited, http.StatusTooManyRequests, "Too many failed attempts")
)

func ErrUnauthorized() *errx.Error { return ErrRegistry.New(CodeUnauthorized) }

func ErrInvalidToken() *errx.Error { return ErrRegistry.New(CodeInvalidToken) }

// ErrInvalidCredentials is deliberately generic. Login and reset flows must
// not reveal whether the account exists or which part of the credential was
// wrong.
func ErrInvalidCredentials() *errx.Error { return ErrRegistry.New(CodeInvalidCredentials) }

func ErrAccessDenied() *errx.Error { return ErrRegistry.New(CodeAccessDenied) }

func ErrPrincipalNotFound() *errx.Error { return ErrRegistry.New(CodePrincipalNotFound) }

func ErrEmailTaken() *errx.Error { return ErrRegistry.New(CodeEmailTaken) }

func ErrUsernameTaken() *errx.Error { return ErrRegistry.New(CodeUsernameTaken) }
