// Package loginlimit throttles credential guessing. Attempts are keyed by
// (identifier, ip) so a single source cannot hammer one account, while other
// users of a shared NAT stay unaffected by someone else's identifier.
package loginlimit

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/klubhub/klubhub/pkg/errx"
	"github.com/klubhub/klubhub/pkg/kernel"
	"github.com/klubhub/klubhub/pkg/logx"
)

var limitErrors = errx.NewRegistry("LIMIT")

var CodeTooManyAttempts = limitErrors.Register("TOO_MANY_ATTEMPTS", errx.TypeRateLimited, http.StatusTooManyRequests, "Too many failed login attempts")

// ErrLockedOut carries the lockout deadline for the response body.
func ErrLockedOut(until time.Time) *errx.Error {
	return limitErrors.New(CodeTooManyAttempts).WithDetail("lockoutUntil", until.UTC().Format(time.RFC3339))
}

// Attempt is one recorded login attempt, successful or not.
type Attempt struct {
	ID          string              `db:"id"`
	PrincipalID *kernel.PrincipalID `db:"principal_id"`
	Identifier  string              `db:"identifier"`
	IP          string              `db:"ip"`
	Success     bool                `db:"success"`
	OccurredAt  time.Time           `db:"occurred_at"`
}

// Repository is the persistence contract for attempts.
type Repository interface {
	Record(ctx context.Context, attempt *Attempt) error

	// FailuresSince returns failed attempts for (identifier, ip) at or after
	// the cutoff, in any order.
	FailuresSince(ctx context.Context, identifier, ip string, since time.Time) ([]Attempt, error)

	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

const (
	// Window and MaxFailures define the throttle: five failures inside
	// fifteen minutes lock the (identifier, ip) pair out.
	Window      = 15 * time.Minute
	MaxFailures = 5
)

// Limiter decides whether a login attempt may proceed.
type Limiter struct {
	repo Repository
	now  func() time.Time
}

// NewLimiter creates a limiter over an attempt store.
func NewLimiter(repo Repository) *Limiter {
	return &Limiter{repo: repo, now: time.Now}
}

// Check returns a rate-limit error when the pair has reached MaxFailures
// inside the window. The lockout expires Window after the oldest failure
// that still counts, i.e. the fifth-most-recent one.
func (l *Limiter) Check(ctx context.Context, identifier, ip string) error {
	now := l.now()
	failures, err := l.repo.FailuresSince(ctx, identifier, ip, now.Add(-Window))
	if err != nil {
		return err
	}
	if len(failures) < MaxFailures {
		return nil
	}

	sort.Slice(failures, func(i, j int) bool {
		return failures[i].OccurredAt.After(failures[j].OccurredAt)
	})
	lockoutUntil := failures[MaxFailures-1].OccurredAt.Add(Window)
	if !lockoutUntil.After(now) {
		return nil
	}
	return ErrLockedOut(lockoutUntil)
}

// RecordFailure appends a failed attempt. Recording is best-effort; a storage
// error must not mask the 401 the caller is about to return.
func (l *Limiter) RecordFailure(ctx context.Context, identifier, ip string, principalID *kernel.PrincipalID) {
	l.record(ctx, identifier, ip, principalID, false)
}

// RecordSuccess appends a successful attempt. Success does not clear past
// failures; they age out of the window on their own.
func (l *Limiter) RecordSuccess(ctx context.Context, identifier, ip string, principalID *kernel.PrincipalID) {
	l.record(ctx, identifier, ip, principalID, true)
}

func (l *Limiter) record(ctx context.Context, identifier, ip string, principalID *kernel.PrincipalID, success bool) {
	attempt := &Attempt{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		Identifier:  identifier,
		IP:          ip,
		Success:     success,
		OccurredAt:  l.now(),
	}
	if err := l.repo.Record(ctx, attempt); err != nil {
		logx.WithError(err).Warnf("loginlimit: failed to record attempt for %q", identifier)
	}
}

// ClientIP extracts the caller's address from the first X-Forwarded-For
// value, falling back to "unknown" when the header is absent.
func ClientIP(forwardedFor string) string {
	first, _, _ := strings.Cut(forwardedFor, ",")
	ip := strings.TrimSpace(first)
	if ip == "" {
		return "unknown"
	}
	return ip
}
