package config

// TenantConfig configures tenant link building and config storage layout.
type TenantConfig struct {
	// BaseDomain is the production apex; tenant links resolve to
	// https://<tenant>.<BaseDomain>.
	BaseDomain string
	// DevPort is the local frontend port used for hash-router links in
	// development.
	DevPort string
	// ConfigDir is the object-store prefix holding per-tenant config files.
	ConfigDir string
}

func loadTenantConfig() TenantConfig {
	return TenantConfig{
		BaseDomain: getEnv("BASE_DOMAIN", "klubhub.dk"),
		DevPort:    getEnv("DEV_APP_PORT", "5173"),
		ConfigDir:  getEnv("TENANT_CONFIG_DIR", "tenants"),
	}
}

// StorageConfig selects the object-store backend for tenant configs.
type StorageConfig struct {
	Mode     string // "local" or "s3"
	LocalDir string
	S3Bucket string
	S3Region string
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Mode:     getEnv("STORAGE_MODE", "local"),
		LocalDir: getEnv("STORAGE_LOCAL_DIR", "./data"),
		S3Bucket: getEnv("STORAGE_S3_BUCKET", "klubhub-tenants"),
		S3Region: getEnv("STORAGE_S3_REGION", getEnv("AWS_REGION", "eu-north-1")),
	}
}
