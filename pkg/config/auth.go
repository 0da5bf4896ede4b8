package config

import "time"

// AuthConfig configures token issuance and breach checking.
type AuthConfig struct {
	JWTSecret       string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:       getEnv("JWT_SECRET", ""),
		Issuer:          getEnv("JWT_ISSUER", "klubhub"),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
	}
}

// BreachConfig configures the k-anonymity breach-password lookup.
type BreachConfig struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

func loadBreachConfig() BreachConfig {
	return BreachConfig{
		Enabled: getEnvBool("BREACH_CHECK_ENABLED", true),
		BaseURL: getEnv("BREACH_CHECK_URL", "https://api.pwnedpasswords.com/range"),
		Timeout: getEnvDuration("BREACH_CHECK_TIMEOUT", 3*time.Second),
	}
}
