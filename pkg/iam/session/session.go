// Package session holds refresh-token state. A session row with a future
// expiry is the only evidence that a refresh token is live.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/klubhub/klubhub/pkg/errx"
	"github.com/klubhub/klubhub/pkg/kernel"
)

var sessionErrors = errx.NewRegistry("SESSION")

var (
	CodeInvalidRefreshToken = sessionErrors.Register("INVALID_REFRESH_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid refresh token")
)

// ErrInvalidRefreshToken covers unknown, expired and replayed tokens alike.
func ErrInvalidRefreshToken() *errx.Error { return sessionErrors.New(CodeInvalidRefreshToken) }

// Session is one live refresh token. TokenHash is the SHA-256 of the opaque
// token the client holds; the token itself is never stored.
type Session struct {
	ID          string             `db:"id"`
	PrincipalID kernel.PrincipalID `db:"principal_id"`
	TokenHash   string             `db:"token_hash"`
	ExpiresAt   time.Time          `db:"expires_at"`
	CreatedAt   time.Time          `db:"created_at"`
}

// New creates a session for a hashed refresh token.
func New(principalID kernel.PrincipalID, tokenHash string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		TokenHash:   tokenHash,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
}

// Repository is the persistence contract for sessions.
type Repository interface {
	Create(ctx context.Context, s *Session) error

	// FindLiveByTokenHash only returns sessions whose expiry is in the
	// future; expired rows behave as if absent.
	FindLiveByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// Rotate atomically deletes the session matching oldHash and inserts
	// next. If no live row matched oldHash the whole operation fails with
	// ErrInvalidRefreshToken, so a replayed token can never mint a session.
	Rotate(ctx context.Context, oldHash string, next *Session) error

	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteAllForPrincipal(ctx context.Context, principalID kernel.PrincipalID) error
	DeleteExpired(ctx context.Context) (int64, error)
}
