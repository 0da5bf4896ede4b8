// Package tenantx manages tenant identity: subdomain normalisation and
// validation, and the tenant configuration store kept in the object store.
package tenantx

import (
	"net/http"

	"github.com/klubhub/klubhub/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("TENANT")

var (
	CodeInvalidSubdomain = ErrRegistry.Register("INVALID_SUBDOMAIN", errx.TypeValidation, http.StatusBadRequest, "Invalid subdomain")
	CodeSubdomainTaken   = ErrRegistry.Register("SUBDOMAIN_TAKEN", errx.TypeConflict, http.StatusConflict, "Subdomain is already taken")
	CodeTenantNotFound   = ErrRegistry.Register("TENANT_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Tenant not found")
	CodeStoreFailure     = ErrRegistry.Register("STORE_FAILURE", errx.TypeInternal, http.StatusInternalServerError, "Tenant store failure")
)

func ErrInvalidSubdomain(reason string) *errx.Error {
	return ErrRegistry.New(CodeInvalidSubdomain).WithDetail("reason", reason)
}

func ErrSubdomainTaken() *errx.Error { return ErrRegistry.New(CodeSubdomainTaken) }

func ErrTenantNotFound() *errx.Error { return ErrRegistry.New(CodeTenantNotFound) }

// Config is the per-tenant configuration document kept in the object store
// as <subdomain>.json.
type Config struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Subdomain string   `json:"subdomain"`
	Logo      string   `json:"logo,omitempty"`
	MaxCourts int      `json:"maxCourts"`
	Features  []string `json:"features,omitempty"`
	PlanID    string   `json:"planId,omitempty"`
}

// CoachLimit returns how many coaches the tenant's plan allows; -1 means
// unlimited.
func (c Config) CoachLimit() int {
	switch c.PlanID {
	case "basic":
		return 2
	case "professional", "enterprise":
		return -1
	default:
		// Unset plan behaves like basic.
		return 2
	}
}
