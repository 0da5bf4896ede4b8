package cryptox

import (
	"unicode"

	"github.com/klubhub/klubhub/pkg/errx"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	pinLength         = 6
)

// ValidatePassword applies the password policy: length in [8,128] and at
// least one lowercase, one uppercase, one digit and one symbol. The returned
// details name each violated rule; an empty slice means the password passes.
func ValidatePassword(password string) []errx.FieldDetail {
	var details []errx.FieldDetail

	if len(password) < minPasswordLength {
		details = append(details, errx.FieldDetail{Path: "password", Message: "Password must be at least 8 characters"})
	}
	if len(password) > maxPasswordLength {
		details = append(details, errx.FieldDetail{Path: "password", Message: "Password must be at most 128 characters"})
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	if !hasLower {
		details = append(details, errx.FieldDetail{Path: "password", Message: "Password must contain a lowercase letter"})
	}
	if !hasUpper {
		details = append(details, errx.FieldDetail{Path: "password", Message: "Password must contain an uppercase letter"})
	}
	if !hasDigit {
		details = append(details, errx.FieldDetail{Path: "password", Message: "Password must contain a digit"})
	}
	if !hasSymbol {
		details = append(details, errx.FieldDetail{Path: "password", Message: "Password must contain a special character"})
	}
	return details
}

// ValidatePIN checks that the PIN is exactly six decimal digits. Same
// contract as ValidatePassword: empty result means valid.
func ValidatePIN(pin string) []errx.FieldDetail {
	if len(pin) != pinLength {
		return []errx.FieldDetail{{Path: "pin", Message: "PIN must be exactly 6 digits"}}
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return []errx.FieldDetail{{Path: "pin", Message: "PIN must contain only digits"}}
		}
	}
	return nil
}
