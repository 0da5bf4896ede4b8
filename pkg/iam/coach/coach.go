// Package coach implements the admin-facing coach management inside a tenant.
package coach

import (
	"net/http"
	"strings"

	"github.com/klubhub/klubhub/pkg/errx"
)

var coachErrors = errx.NewRegistry("COACH")

var (
	CodePlanLimitReached = coachErrors.Register("PLAN_LIMIT_REACHED", errx.TypeForbidden, http.StatusForbidden, "Coach limit for the current plan has been reached")
	CodeInvalidAction    = coachErrors.Register("INVALID_ACTION", errx.TypeValidation, http.StatusBadRequest, "Unknown action")
)

func ErrPlanLimitReached(limit int) *errx.Error {
	return coachErrors.New(CodePlanLimitReached).WithDetail("limit", limit)
}

func ErrInvalidAction(action string) *errx.Error {
	return coachErrors.New(CodeInvalidAction).WithDetail("action", action)
}

// CreateRequest creates a coach. When PIN is empty one is generated. When
// SendEmail is set the welcome mail carries the PIN and the response omits
// it; otherwise the plaintext PIN is returned exactly once.
type CreateRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	PIN       string `json:"pin"`
	SendEmail bool   `json:"sendEmail"`
}

func (r CreateRequest) Validate() []errx.FieldDetail {
	var details []errx.FieldDetail
	if strings.TrimSpace(r.Email) == "" {
		details = append(details, errx.FieldDetail{Path: "email", Message: "email is required"})
	}
	if strings.TrimSpace(r.Username) == "" {
		details = append(details, errx.FieldDetail{Path: "username", Message: "username is required"})
	}
	return details
}

// UpdateRequest patches a coach. Nil fields stay untouched.
type UpdateRequest struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
	PIN      *string `json:"pin"`
}

// ActionRequest drives POST /:tenantId/admin/coaches/:id.
type ActionRequest struct {
	Action string `json:"action"`
}
