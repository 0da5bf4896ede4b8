package kernel

// AuthContext is the per-request authentication state injected by the
// middleware. Role comes from the database row, not from the token claims;
// the claim is treated as a hint only.
type AuthContext struct {
	PrincipalID PrincipalID `json:"principal_id"`
	TenantID    TenantID    `json:"tenant_id"`
	Role        Role        `json:"role"`
	Email       string      `json:"email"`
}

// IsValid reports whether the context identifies a principal in a tenant.
func (ac *AuthContext) IsValid() bool {
	return !ac.PrincipalID.IsEmpty() && !ac.TenantID.IsEmpty()
}

// CanAccessTenant reports whether the context may operate on the given
// tenant. Super-admins cross tenant boundaries; everyone else is confined
// to their own.
func (ac *AuthContext) CanAccessTenant(tenant TenantID) bool {
	if ac.Role.IsSuperAdmin() {
		return true
	}
	return ac.TenantID == tenant
}

// ContextKey is the type for values stored in request-local storage.
type ContextKey string

const (
	// AuthContextKey stores the *AuthContext on the request.
	AuthContextKey ContextKey = "auth_context"

	// PrincipalKey stores the rehydrated principal row on the request.
	PrincipalKey ContextKey = "principal"

	// RequestIDKey stores the request correlation ID.
	RequestIDKey ContextKey = "request_id"
)
