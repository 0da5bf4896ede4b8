package coach

import (
	"context"

	"github.com/klubhub/klubhub/pkg/cryptox"
	"github.com/klubhub/klubhub/pkg/errx"
	"github.com/klubhub/klubhub/pkg/iam"
	"github.com/klubhub/klubhub/pkg/iam/auth"
	"github.com/klubhub/klubhub/pkg/iam/principal"
	"github.com/klubhub/klubhub/pkg/kernel"
	"github.com/klubhub/klubhub/pkg/tenantx"
)

// Service implements coach management for tenant admins.
type Service struct {
	principals principal.Repository
	tenants    *tenantx.Store
	auth       *auth.Service
	mailer     *auth.Mailer
	pinHasher  *cryptox.Hasher
}

// NewService creates the service.
func NewService(principals principal.Repository, tenants *tenantx.Store, authSvc *auth.Service, mailer *auth.Mailer, pinHasher *cryptox.Hasher) *Service {
	return &Service{
		principals: principals,
		tenants:    tenants,
		auth:       authSvc,
		mailer:     mailer,
		pinHasher:  pinHasher,
	}
}

// CreateResult carries the new coach and, when no welcome email was sent,
// the plaintext PIN for one-time display.
type CreateResult struct {
	Coach *principal.Principal
	PIN   string
}

// Create adds a coach, enforcing plan limits and per-tenant uniqueness.
func (s *Service) Create(ctx context.Context, tenantID kernel.TenantID, req CreateRequest) (*CreateResult, error) {
	if details := req.Validate(); len(details) > 0 {
		return nil, errx.Validation("Validation error").WithFields(details...)
	}

	cfg, err := s.tenants.Get(ctx, tenantID.String())
	if err != nil {
		return nil, err
	}
	if limit := cfg.CoachLimit(); limit >= 0 {
		count, err := s.principals.CountCoaches(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if count >= limit {
			return nil, ErrPlanLimitReached(limit)
		}
	}

	if exists, err := s.principals.EmailExists(ctx, tenantID, req.Email); err != nil {
		return nil, err
	} else if exists {
		return nil, iam.ErrEmailTaken()
	}
	if exists, err := s.principals.UsernameExists(ctx, tenantID, req.Username); err != nil {
		return nil, err
	} else if exists {
		return nil, iam.ErrUsernameTaken()
	}

	pin := req.PIN
	if pin == "" {
		pin, err = cryptox.GenerateRandomPIN()
		if err != nil {
			return nil, errx.Wrap(err, "failed to generate pin", errx.TypeInternal)
		}
	}
	if details := cryptox.ValidatePIN(pin); len(details) > 0 {
		return nil, errx.Validation("Validation error").WithFields(details...)
	}

	hash, err := s.pinHasher.Hash(pin)
	if err != nil {
		return nil, errx.Wrap(err, "failed to hash pin", errx.TypeInternal)
	}

	p := principal.NewCoach(tenantID, req.Email, req.Username, hash)
	if err := s.principals.Create(ctx, p); err != nil {
		return nil, err
	}

	result := &CreateResult{Coach: p}
	if req.SendEmail {
		username := ""
		if p.Username != nil {
			username = *p.Username
		}
		s.mailer.SendCoachWelcomeEmail(ctx, tenantID, cfg.Name, p.Email, username, pin)
	} else {
		result.PIN = pin
	}
	return result, nil
}

// List returns the tenant's coaches.
func (s *Service) List(ctx context.Context, tenantID kernel.TenantID) ([]*principal.Principal, error) {
	return s.principals.ListCoaches(ctx, tenantID)
}

// Get returns one coach.
func (s *Service) Get(ctx context.Context, tenantID kernel.TenantID, id kernel.PrincipalID) (*principal.Principal, error) {
	p, err := s.principals.FindByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}
	if !p.Role.IsCoach() {
		return nil, principal.ErrNotFound()
	}
	return p, nil
}

// Update patches a coach. Fields run through the same format and uniqueness
// checks as create.
func (s *Service) Update(ctx context.Context, tenantID kernel.TenantID, id kernel.PrincipalID, req UpdateRequest) (*principal.Principal, error) {
	if _, err := s.Get(ctx, tenantID, id); err != nil {
		return nil, err
	}

	patch := principal.Patch{}
	if req.Email != nil {
		if exists, err := s.principals.EmailExists(ctx, tenantID, *req.Email); err != nil {
			return nil, err
		} else if exists {
			return nil, iam.ErrEmailTaken()
		}
		patch.Email = req.Email
	}
	if req.Username != nil {
		if exists, err := s.principals.UsernameExists(ctx, tenantID, *req.Username); err != nil {
			return nil, err
		} else if exists {
			return nil, iam.ErrUsernameTaken()
		}
		patch.Username = req.Username
	}
	if req.PIN != nil {
		if details := cryptox.ValidatePIN(*req.PIN); len(details) > 0 {
			return nil, errx.Validation("Validation error").WithFields(details...)
		}
		hash, err := s.pinHasher.Hash(*req.PIN)
		if err != nil {
			return nil, errx.Wrap(err, "failed to hash pin", errx.TypeInternal)
		}
		patch.PINHash = &hash
	}

	if !patch.Empty() {
		if err := s.principals.ApplyPatch(ctx, id, tenantID, patch); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, tenantID, id)
}

// Delete removes a coach. Scoped to (tenant, id, role=coach).
func (s *Service) Delete(ctx context.Context, tenantID kernel.TenantID, id kernel.PrincipalID) error {
	return s.principals.Delete(ctx, id, tenantID)
}

// ResetPIN issues a one-hour PIN reset token and emails the link. Transport
// failure surfaces so the admin sees mail breakage.
func (s *Service) ResetPIN(ctx context.Context, tenantID kernel.TenantID, id kernel.PrincipalID) error {
	p, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	return s.auth.IssuePINResetFor(ctx, p)
}
