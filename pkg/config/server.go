package config

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port               string
	Env                string
	AllowedOrigins     []string
	UseHTTPOnlyCookies bool
}

// IsDevelopment reports whether the server runs in development mode.
func (s ServerConfig) IsDevelopment() bool { return s.Env != "production" }

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("APP_ENV", getEnv("NODE_ENV", "development")),
		AllowedOrigins:     getEnvStringSlice("ALLOWED_ORIGINS", nil),
		UseHTTPOnlyCookies: getEnvBool("USE_HTTPONLY_COOKIES", false),
	}
}
