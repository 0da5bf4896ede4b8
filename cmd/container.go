// cmd/container.go
//
// Composition root. Owns infrastructure (Postgres, Redis, tenant config
// storage, email transport) and wires the identity modules together. This is
// the only place that knows about ALL modules.
package main

import (
	"context"
	"time"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/klubhub/klubhub/pkg/config"
	"github.com/klubhub/klubhub/pkg/cryptox"
	"github.com/klubhub/klubhub/pkg/fsx"
	"github.com/klubhub/klubhub/pkg/fsx/fsxlocal"
	"github.com/klubhub/klubhub/pkg/fsx/fsxs3"
	"github.com/klubhub/klubhub/pkg/iam/auth"
	"github.com/klubhub/klubhub/pkg/iam/coach"
	"github.com/klubhub/klubhub/pkg/iam/loginlimit"
	"github.com/klubhub/klubhub/pkg/iam/loginlimit/loginlimitinfra"
	"github.com/klubhub/klubhub/pkg/iam/principal"
	"github.com/klubhub/klubhub/pkg/iam/principal/principalinfra"
	"github.com/klubhub/klubhub/pkg/iam/session/sessioninfra"
	"github.com/klubhub/klubhub/pkg/iam/sysadmin"
	"github.com/klubhub/klubhub/pkg/jobx"
	"github.com/klubhub/klubhub/pkg/jobx/jobxredis"
	"github.com/klubhub/klubhub/pkg/logx"
	"github.com/klubhub/klubhub/pkg/notifx"
	"github.com/klubhub/klubhub/pkg/notifx/notifxconsole"
	"github.com/klubhub/klubhub/pkg/notifx/notifxses"
	"github.com/klubhub/klubhub/pkg/tenantx"
)

// How long failed login attempts are kept before the reaper prunes them.
// Lockout only looks 15 minutes back, so a day of history is plenty.
const attemptRetention = 24 * time.Hour

// Container holds shared infrastructure and the composed modules.
type Container struct {
	Config *config.Config

	// Infrastructure (shared across all modules)
	DB         *sqlx.DB
	Redis      *redis.Client
	FileSystem fsx.FileSystem
	Notifier   *notifx.Client
	Jobs       *jobx.Client

	// Modules
	Tenants          *tenantx.Store
	AuthService      *auth.Service
	AuthMiddleware   *auth.Middleware
	AuthHandlers     *auth.Handlers
	CoachHandlers    *coach.Handlers
	SysadminHandlers *sysadmin.Handlers

	principals principal.Repository
	attempts   loginlimit.Repository
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("🔧 Initializing application container...")

	c := &Container{Config: cfg}

	c.initInfrastructure()
	c.initModules()

	logx.Info("✅ Application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure — DB, Redis, tenant config storage, email, jobs
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure() {
	logx.Info("🏗️ Initializing infrastructure...")

	// 1. Database
	ctx, cancel := context.WithTimeout(context.Background(), c.Config.Database.ConnectTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", c.Config.Database.URL)
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxIdleTime(c.Config.Database.ConnMaxIdleTime)
	c.DB = db
	logx.Info("  ✅ Database connected")

	// 2. Redis (optional; backs the email job queue)
	if c.Config.Redis.Enabled() {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     c.Config.Redis.Addr,
			Password: c.Config.Redis.Password,
			DB:       c.Config.Redis.DB,
		})
		if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
			logx.Fatalf("Failed to connect to Redis: %v", err)
		}
		logx.Info("  ✅ Redis connected")
	} else {
		logx.Info("  ⏭️ Redis not configured, email falls back to in-process delivery")
	}

	// 3. Tenant config storage
	c.initFileStorage()

	// 4. Email transport
	c.initEmail()

	// 5. Job queue
	c.initJobs()

	logx.Info("✅ Infrastructure initialized")
}

func (c *Container) initFileStorage() {
	switch c.Config.Storage.Mode {
	case "s3":
		awsCfg, err := awsConfig.LoadDefaultConfig(context.Background(),
			awsConfig.WithRegion(c.Config.Storage.S3Region))
		if err != nil {
			logx.Fatalf("Unable to load AWS SDK config: %v", err)
		}
		c.FileSystem = fsxs3.NewS3FileSystem(s3.NewFromConfig(awsCfg), c.Config.Storage.S3Bucket, "")
		logx.Infof("  ✅ S3 file system configured (bucket: %s, region: %s)",
			c.Config.Storage.S3Bucket, c.Config.Storage.S3Region)

	case "local":
		localFS, err := fsxlocal.NewLocalFileSystem(c.Config.Storage.LocalDir)
		if err != nil {
			logx.Fatalf("Failed to initialize local file system: %v", err)
		}
		c.FileSystem = localFS
		logx.Infof("  ✅ Local file system configured (path: %s)", localFS.GetBasePath())

	default:
		logx.Fatalf("Unknown STORAGE_MODE: %s (use 'local' or 's3')", c.Config.Storage.Mode)
	}
}

func (c *Container) initEmail() {
	var provider notifx.EmailSender

	switch c.Config.Email.Provider {
	case "ses":
		awsCfg, err := awsConfig.LoadDefaultConfig(context.Background(),
			awsConfig.WithRegion(c.Config.Email.AWSRegion))
		if err != nil {
			logx.Fatalf("Unable to load AWS SDK config for SES: %v", err)
		}
		provider = notifxses.NewSESProvider(ses.NewFromConfig(awsCfg), c.Config.Email.FromAddress)
		logx.Infof("  ✅ SES email transport configured (region: %s)", c.Config.Email.AWSRegion)

	case "console", "":
		provider = notifxconsole.NewConsoleProvider()
		logx.Info("  ✅ Console email transport configured")

	default:
		logx.Fatalf("Unknown NOTIFX_PROVIDER: %s (use 'console' or 'ses')", c.Config.Email.Provider)
	}

	c.Notifier = notifx.NewClient(provider)
	if err := auth.RegisterTemplates(c.Notifier); err != nil {
		logx.Fatalf("Failed to register email templates: %v", err)
	}
}

func (c *Container) initJobs() {
	if c.Redis == nil {
		return
	}
	c.Jobs = jobx.NewClient(jobxredis.NewRedisQueue(c.Redis),
		jobx.WithConcurrency(c.Config.Jobx.Concurrency),
		jobx.WithQueues(c.Config.Jobx.Queues...),
		jobx.WithPollInterval(c.Config.Jobx.PollInterval),
		jobx.WithDequeueTimeout(c.Config.Jobx.DequeueTimeout),
		jobx.WithRetryDelay(c.Config.Jobx.DefaultRetryDelay),
	)
	c.Jobs.Register(auth.MailJobType, auth.NewMailJobHandler(c.Notifier))
	logx.Infof("  ✅ Job queue configured (queues: %v)", c.Config.Jobx.Queues)
}

// ---------------------------------------------------------------------------
// Module composition
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	logx.Info("📦 Initializing modules...")

	cfg := c.Config

	c.Tenants = tenantx.NewStore(c.FileSystem, cfg.Tenant.ConfigDir)

	c.principals = principalinfra.NewPostgresPrincipalRepository(c.DB)
	sessions := sessioninfra.NewPostgresSessionRepository(c.DB)
	c.attempts = loginlimitinfra.NewPostgresAttemptRepository(c.DB)

	passwordHasher := cryptox.NewHasher(cryptox.PasswordParams())
	pinHasher := cryptox.NewHasher(cryptox.PINParams())
	tokens := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.Issuer)
	totp := auth.NewTOTPManager(cfg.Email.FromName)
	breach := cryptox.NewBreachChecker(cfg.Breach.BaseURL, cfg.Breach.Timeout, cfg.Breach.Enabled)
	mailer := auth.NewMailer(c.Notifier, c.Jobs, cfg.Email, cfg.Tenant, cfg.Server.IsDevelopment())

	c.AuthService = auth.NewService(auth.Deps{
		Principals:      c.principals,
		Sessions:        sessions,
		Limiter:         loginlimit.NewLimiter(c.attempts),
		Tokens:          tokens,
		TOTP:            totp,
		Mailer:          mailer,
		Tenants:         c.Tenants,
		Breach:          breach,
		PasswordHasher:  passwordHasher,
		PINHasher:       pinHasher,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
	})
	c.AuthMiddleware = auth.NewMiddleware(tokens, c.principals)
	c.AuthHandlers = auth.NewHandlers(c.AuthService, c.AuthMiddleware,
		cfg.Server.UseHTTPOnlyCookies, !cfg.Server.IsDevelopment(), cfg.Auth.RefreshTokenTTL)

	coachService := coach.NewService(c.principals, c.Tenants, c.AuthService, mailer, pinHasher)
	c.CoachHandlers = coach.NewHandlers(coachService, c.AuthMiddleware)

	c.SysadminHandlers = sysadmin.NewHandlers(c.Tenants, mailer, c.AuthMiddleware)

	logx.Info("✅ Modules initialized")
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// StartBackgroundServices runs the job workers and the session/attempt reaper
// until ctx is cancelled.
func (c *Container) StartBackgroundServices(ctx context.Context) {
	logx.Info("🔄 Starting background services...")

	if c.Jobs != nil {
		go func() {
			if err := c.Jobs.Start(ctx); err != nil {
				logx.WithError(err).Error("job workers stopped with error")
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.AuthService.ReapExpired(ctx, c.attempts, attemptRetention)
			}
		}
	}()
}

func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		} else {
			logx.Info("  ✅ Database connection closed")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("  ✅ Redis connection closed")
		}
	}

	logx.Info("✅ Cleanup complete")
}
