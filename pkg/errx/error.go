package errx

import (
	"errors"
	"fmt"
)

// Type categorizes an error for transport-level mapping.
type Type string

const (
	TypeInternal      Type = "INTERNAL"
	TypeValidation    Type = "VALIDATION"
	TypeAuthorization Type = "AUTHORIZATION"
	TypeForbidden     Type = "FORBIDDEN"
	TypeNotFound      Type = "NOT_FOUND"
	TypeConflict      Type = "CONFLICT"
	TypeRateLimited   Type = "RATE_LIMITED"
	TypeExternal      Type = "EXTERNAL"
)

func (t Type) String() string { return string(t) }

// FieldDetail points at a single invalid request field.
type FieldDetail struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error carries an error code, a client-safe message, a transport hint and
// optional structured context.
type Error struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Type       Type           `json:"type"`
	HTTPStatus int            `json:"http_status"`
	Fields     []FieldDetail  `json:"details,omitempty"`
	Details    map[string]any `json:"-"`
	Err        error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetail attaches a key/value pair for logging and response enrichment.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithFields attaches per-field validation details.
func (e *Error) WithFields(fields ...FieldDetail) *Error {
	e.Fields = append(e.Fields, fields...)
	return e
}

// New creates an Error of the given type with a default code and status.
func New(message string, errType Type) *Error {
	return &Error{
		Code:       string(errType),
		Message:    message,
		Type:       errType,
		HTTPStatus: typeToHTTPStatus(errType),
	}
}

// Wrap attaches context to an existing error. A nil err yields nil.
// Wrapping an *Error preserves its code and status.
func Wrap(err error, message string, errType Type) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{
			Code:       existing.Code,
			Message:    message,
			Type:       errType,
			HTTPStatus: existing.HTTPStatus,
			Fields:     existing.Fields,
			Details:    existing.Details,
			Err:        err,
		}
	}
	return &Error{
		Code:       string(errType),
		Message:    message,
		Type:       errType,
		HTTPStatus: typeToHTTPStatus(errType),
		Err:        err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, errType Type, format string, args ...any) *Error {
	return Wrap(err, fmt.Sprintf(format, args...), errType)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain matching target.
func As(err error, target any) bool { return errors.As(err, target) }

// IsType reports whether err is an *Error of the given type.
func IsType(err error, t Type) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}

// Convenience constructors.

func Internal(message string) *Error    { return New(message, TypeInternal) }
func Validation(message string) *Error  { return New(message, TypeValidation) }
func NotFound(message string) *Error    { return New(message, TypeNotFound) }
func Unauthorized(message string) *Error { return New(message, TypeAuthorization) }
func Forbidden(message string) *Error   { return New(message, TypeForbidden) }
func Conflict(message string) *Error    { return New(message, TypeConflict) }
func External(message string) *Error    { return New(message, TypeExternal) }

func typeToHTTPStatus(t Type) int {
	switch t {
	case TypeValidation:
		return 400
	case TypeAuthorization:
		return 401
	case TypeForbidden:
		return 403
	case TypeNotFound:
		return 404
	case TypeConflict:
		return 409
	case TypeRateLimited:
		return 429
	case TypeExternal:
		return 502
	default:
		return 500
	}
}
