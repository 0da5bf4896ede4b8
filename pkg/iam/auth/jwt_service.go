package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/klubhub/klubhub/pkg/kernel"
)

// JWTService mints and validates HS256 access tokens. Refresh tokens are not
// JWTs; they live in the session store.
type JWTService struct {
	secretKey      []byte
	accessTokenTTL time.Duration
	issuer         string
}

// NewJWTService creates the token service.
func NewJWTService(secretKey string, accessTokenTTL time.Duration, issuer string) *JWTService {
	if accessTokenTTL == 0 {
		accessTokenTTL = 15 * time.Minute
	}
	if issuer == "" {
		issuer = "klubhub"
	}
	return &JWTService{
		secretKey:      []byte(secretKey),
		accessTokenTTL: accessTokenTTL,
		issuer:         issuer,
	}
}

// AccessClaims is the wire shape of an access token. Field names are the
// camelCase keys the frontends read.
type AccessClaims struct {
	ClubID    kernel.PrincipalID `json:"clubId"`
	TenantID  kernel.TenantID    `json:"tenantId"`
	Role      string             `json:"role"`
	Email     string             `json:"email"`
	TokenType string             `json:"type"`
	jwt.RegisteredClaims
}

// AccessTokenTTL returns the configured access-token lifetime.
func (j *JWTService) AccessTokenTTL() time.Duration { return j.accessTokenTTL }

// GenerateAccessToken mints a short-lived access token for a principal.
func (j *JWTService) GenerateAccessToken(principalID kernel.PrincipalID, tenantID kernel.TenantID, role kernel.Role, email string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		ClubID:    principalID,
		TenantID:  tenantID,
		Role:      string(kernel.NormalizeRole(string(role))),
		Email:     email,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   principalID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTokenTTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", ErrTokenGenerationFailed().WithDetail("error", err.Error())
	}
	return signed, nil
}

// ValidateAccessToken verifies signature, issuer, expiry and token type.
func (j *JWTService) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(j.issuer))
	if err != nil {
		return nil, ErrTokenValidationFailed().WithDetail("error", err.Error())
	}
	if !token.Valid {
		return nil, ErrTokenValidationFailed().WithDetail("error", "token is invalid")
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok {
		return nil, ErrTokenValidationFailed().WithDetail("error", "invalid claims type")
	}
	if claims.TokenType != "access" {
		return nil, ErrTokenValidationFailed().WithDetail("error", "not an access token")
	}
	return claims, nil
}
