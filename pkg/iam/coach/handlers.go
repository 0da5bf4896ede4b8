package coach

import (
	"github.com/gofiber/fiber/v2"

	"github.com/klubhub/klubhub/pkg/errx"
	"github.com/klubhub/klubhub/pkg/iam/auth"
	"github.com/klubhub/klubhub/pkg/iam/principal"
	"github.com/klubhub/klubhub/pkg/kernel"
)

// Handlers exposes coach management under /:tenantId/admin/coaches.
type Handlers struct {
	service    *Service
	middleware *auth.Middleware
}

// NewHandlers creates the HTTP layer.
func NewHandlers(service *Service, middleware *auth.Middleware) *Handlers {
	return &Handlers{service: service, middleware: middleware}
}

// RegisterRoutes mounts the coach endpoints. Admin only; the path tenant
// must match the caller's tenant unless they are a super admin.
func (h *Handlers) RegisterRoutes(router fiber.Router) {
	grp := router.Group("/:tenantId/admin/coaches",
		h.middleware.RequireAuth(),
		h.middleware.RequireAdmin(),
		h.middleware.RequireClub("tenantId"),
	)
	grp.Get("/", h.List)
	grp.Post("/", h.Create)
	grp.Get("/:id", h.Get)
	grp.Put("/:id", h.Update)
	grp.Delete("/:id", h.Delete)
	grp.Post("/:id", h.Action)
}

func pathIDs(c *fiber.Ctx) (kernel.TenantID, kernel.PrincipalID) {
	return kernel.TenantID(c.Params("tenantId")), kernel.PrincipalID(c.Params("id"))
}

func snapshots(coaches []*principal.Principal) []principal.Snapshot {
	out := make([]principal.Snapshot, len(coaches))
	for i, p := range coaches {
		out[i] = p.Snapshot()
	}
	return out
}

// List handles GET /:tenantId/admin/coaches.
func (h *Handlers) List(c *fiber.Ctx) error {
	tenantID := kernel.TenantID(c.Params("tenantId"))
	coaches, err := h.service.List(c.Context(), tenantID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"coaches": snapshots(coaches), "total": len(coaches)})
}

// Create handles POST /:tenantId/admin/coaches.
func (h *Handlers) Create(c *fiber.Ctx) error {
	tenantID := kernel.TenantID(c.Params("tenantId"))
	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("Invalid request body")
	}
	result, err := h.service.Create(c.Context(), tenantID, req)
	if err != nil {
		return err
	}

	body := fiber.Map{"coach": result.Coach.Snapshot()}
	if result.PIN != "" {
		// Shown exactly once; the hash is all that survives.
		body["pin"] = result.PIN
	}
	return c.Status(fiber.StatusCreated).JSON(body)
}

// Get handles GET /:tenantId/admin/coaches/:id.
func (h *Handlers) Get(c *fiber.Ctx) error {
	tenantID, id := pathIDs(c)
	p, err := h.service.Get(c.Context(), tenantID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"coach": p.Snapshot()})
}

// Update handles PUT /:tenantId/admin/coaches/:id.
func (h *Handlers) Update(c *fiber.Ctx) error {
	tenantID, id := pathIDs(c)
	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("Invalid request body")
	}
	p, err := h.service.Update(c.Context(), tenantID, id, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"coach": p.Snapshot()})
}

// Delete handles DELETE /:tenantId/admin/coaches/:id.
func (h *Handlers) Delete(c *fiber.Ctx) error {
	tenantID, id := pathIDs(c)
	if err := h.service.Delete(c.Context(), tenantID, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// Action handles POST /:tenantId/admin/coaches/:id.
func (h *Handlers) Action(c *fiber.Ctx) error {
	tenantID, id := pathIDs(c)
	var req ActionRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("Invalid request body")
	}
	switch req.Action {
	case "reset-pin":
		if err := h.service.ResetPIN(c.Context(), tenantID, id); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "PIN reset email sent."})
	default:
		return ErrInvalidAction(req.Action)
	}
}
