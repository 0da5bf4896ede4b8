package config

import "time"

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL: getEnv("DATABASE_URL", ""),
		// The workload is serialised per handler; a single connection per
		// connection string matches the reference deployment.
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 1),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 1),
		ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 20*time.Second),
		ConnectTimeout:  getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
	}
}

// RedisConfig configures the optional Redis connection used by the job queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether Redis is configured at all.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}
