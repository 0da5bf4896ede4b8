// Package sysadmin holds the cross-tenant operator endpoints.
package sysadmin

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/klubhub/klubhub/pkg/errx"
	"github.com/klubhub/klubhub/pkg/iam/auth"
	"github.com/klubhub/klubhub/pkg/tenantx"
)

// Handlers exposes the super-admin surface: tenant listing and cold
// outreach email.
type Handlers struct {
	tenants    *tenantx.Store
	mailer     *auth.Mailer
	middleware *auth.Middleware
}

// NewHandlers creates the HTTP layer.
func NewHandlers(tenants *tenantx.Store, mailer *auth.Mailer, middleware *auth.Middleware) *Handlers {
	return &Handlers{tenants: tenants, mailer: mailer, middleware: middleware}
}

// RegisterRoutes mounts the /admin endpoints, super admin only.
func (h *Handlers) RegisterRoutes(router fiber.Router) {
	grp := router.Group("/admin",
		h.middleware.RequireAuth(),
		h.middleware.RequireSuperAdmin(),
	)
	grp.Get("/tenants", h.ListTenants)
	grp.Post("/outreach", h.Outreach)
}

// ListTenants handles GET /admin/tenants.
func (h *Handlers) ListTenants(c *fiber.Ctx) error {
	configs, err := h.tenants.List(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tenants": configs, "total": len(configs)})
}

// OutreachRequest is a free-form email to a prospect.
type OutreachRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (r OutreachRequest) Validate() []errx.FieldDetail {
	var details []errx.FieldDetail
	if strings.TrimSpace(r.To) == "" {
		details = append(details, errx.FieldDetail{Path: "to", Message: "recipient is required"})
	}
	if strings.TrimSpace(r.Subject) == "" {
		details = append(details, errx.FieldDetail{Path: "subject", Message: "subject is required"})
	}
	if strings.TrimSpace(r.Body) == "" {
		details = append(details, errx.FieldDetail{Path: "body", Message: "body is required"})
	}
	return details
}

// Outreach handles POST /admin/outreach. Delivery failure surfaces; the
// operator wants to know the message did not go out.
func (h *Handlers) Outreach(c *fiber.Ctx) error {
	var req OutreachRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("Invalid request body")
	}
	if details := req.Validate(); len(details) > 0 {
		return errx.Validation("Validation error").WithFields(details...)
	}
	if err := h.mailer.SendOutreachEmail(c.Context(), req.To, req.Subject, req.Body); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Email sent."})
}
