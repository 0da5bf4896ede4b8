package config

// EmailConfig configures the notification system.
type EmailConfig struct {
	Provider      string
	FromAddress   string
	FromName      string
	AWSRegion     string
	NotifyAddress string
}

// Configured reports whether an outbound transport is set up. Unconfigured
// email degrades to best-effort logging instead of failing requests.
func (e EmailConfig) Configured() bool { return e.Provider != "" }

func loadEmailConfig() EmailConfig {
	return EmailConfig{
		Provider:      getEnv("NOTIFX_PROVIDER", "console"),
		FromAddress:   getEnv("EMAIL_FROM_ADDRESS", "noreply@klubhub.dk"),
		FromName:      getEnv("EMAIL_FROM_NAME", "KlubHub"),
		AWSRegion:     getEnv("NOTIFX_AWS_REGION", getEnv("AWS_REGION", "eu-north-1")),
		NotifyAddress: getEnv("SIGNUP_NOTIFY_ADDRESS", ""),
	}
}
