package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/klubhub/klubhub/pkg/iam"
	"github.com/klubhub/klubhub/pkg/iam/principal"
	"github.com/klubhub/klubhub/pkg/kernel"
)

// Middleware guards routes with JWT bearer auth and role checks.
type Middleware struct {
	tokens     *JWTService
	principals principal.Repository
}

// NewMiddleware creates the middleware.
func NewMiddleware(tokens *JWTService, principals principal.Repository) *Middleware {
	return &Middleware{tokens: tokens, principals: principals}
}

// RequireAuth validates the bearer token and re-fetches the principal row.
// The row's role overrides the claim's role, so a role change invalidates
// stale tokens' privileges immediately.
func (m *Middleware) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		var token string
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
				token = parts[1]
			}
		}
		if token == "" {
			token = c.Cookies("accessToken")
		}
		if token == "" {
			return iam.ErrUnauthorized()
		}

		claims, err := m.tokens.ValidateAccessToken(token)
		if err != nil {
			return err
		}

		p, err := m.principals.FindByID(c.Context(), claims.ClubID, claims.TenantID)
		if err != nil {
			return iam.ErrInvalidToken()
		}

		authCtx := &kernel.AuthContext{
			PrincipalID: p.ID,
			TenantID:    p.TenantID,
			Role:        p.Role,
			Email:       p.Email,
		}
		c.Locals(kernel.AuthContextKey, authCtx)
		c.Locals(kernel.PrincipalKey, p)
		return c.Next()
	}
}

// AuthFromContext reads the auth context set by RequireAuth.
func AuthFromContext(c *fiber.Ctx) (*kernel.AuthContext, bool) {
	authCtx, ok := c.Locals(kernel.AuthContextKey).(*kernel.AuthContext)
	return authCtx, ok && authCtx != nil
}

// PrincipalFromContext reads the re-fetched principal set by RequireAuth.
func PrincipalFromContext(c *fiber.Ctx) (*principal.Principal, bool) {
	p, ok := c.Locals(kernel.PrincipalKey).(*principal.Principal)
	return p, ok && p != nil
}

func (m *Middleware) requireRole(check func(kernel.Role) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authCtx, ok := AuthFromContext(c)
		if !ok {
			return iam.ErrUnauthorized()
		}
		if !check(authCtx.Role) {
			return iam.ErrAccessDenied()
		}
		return c.Next()
	}
}

// RequireAdmin passes admins and super admins.
func (m *Middleware) RequireAdmin() fiber.Handler {
	return m.requireRole(func(r kernel.Role) bool { return r.IsAdmin() })
}

// RequireSuperAdmin passes only super admins.
func (m *Middleware) RequireSuperAdmin() fiber.Handler {
	return m.requireRole(func(r kernel.Role) bool { return r.IsSuperAdmin() })
}

// RequireCoach passes only coaches.
func (m *Middleware) RequireCoach() fiber.Handler {
	return m.requireRole(func(r kernel.Role) bool { return r.IsCoach() })
}

// RequireClub rejects requests whose path tenant differs from the caller's
// tenant. Super admins cross tenant boundaries.
func (m *Middleware) RequireClub(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authCtx, ok := AuthFromContext(c)
		if !ok {
			return iam.ErrUnauthorized()
		}
		pathTenant := kernel.TenantID(c.Params(param))
		if !authCtx.CanAccessTenant(pathTenant) {
			return iam.ErrAccessDenied().WithDetail("tenantId", pathTenant.String())
		}
		return c.Next()
	}
}
