package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/klubhub/klubhub/pkg/config"
	"github.com/klubhub/klubhub/pkg/errx"
	"github.com/klubhub/klubhub/pkg/logx"
)

func main() {
	// 1. Environment and configuration
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logx.Warnf("Could not load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logx.Fatalf("Invalid configuration: %v", err)
	}

	logx.Info("🚀 Starting KlubHub API Server...")

	// 2. Dependency container
	container := NewContainer(cfg)
	defer container.Cleanup()

	// 3. Fiber app
	app := fiber.New(fiber.Config{
		AppName:               "KlubHub API",
		DisableStartupMessage: true,
		ErrorHandler:          globalErrorHandler(cfg.Server.IsDevelopment()),
		BodyLimit:             1 * 1024 * 1024,
		IdleTimeout:           120 * time.Second,
	})

	// 4. Global middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: cfg.Server.IsDevelopment(),
	}))

	app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: uuid.NewString,
	}))

	app.Use(cors.New(corsConfig(cfg)))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	// 5. Health check
	app.Get("/health", healthCheckHandler(container))

	// 6. Routes
	container.AuthHandlers.RegisterRoutes(app)
	logx.Info("✓ Auth routes registered")

	container.CoachHandlers.RegisterRoutes(app)
	logx.Info("✓ Coach routes registered")

	container.SysadminHandlers.RegisterRoutes(app)
	logx.Info("✓ Sysadmin routes registered")

	// 7. 404 handler
	app.Use(notFoundHandler)

	// 8. Background services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	container.StartBackgroundServices(ctx)

	// 9. Serve with graceful shutdown
	startServer(app, cfg.Server.Port, cancel)
}

// corsConfig allows everything in development and pins the configured
// origins in production. Credentials only work with a pinned origin list.
func corsConfig(cfg *config.Config) cors.Config {
	if len(cfg.Server.AllowedOrigins) == 0 {
		return cors.Config{
			AllowOrigins: "*",
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
			AllowMethods: "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS",
		}
	}
	return cors.Config{
		AllowOrigins:     strings.Join(cfg.Server.AllowedOrigins, ", "),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:     "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS",
		AllowCredentials: true,
		ExposeHeaders:    "X-Request-ID",
	}
}

func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status":  "healthy",
			"service": "klubhub-api",
		}

		if err := container.DB.PingContext(c.Context()); err != nil {
			health["db"] = "unhealthy"
			health["status"] = "degraded"
		} else {
			health["db"] = "healthy"
		}

		if container.Redis != nil {
			if err := container.Redis.Ping(c.Context()).Err(); err != nil {
				health["redis"] = "unhealthy"
				health["status"] = "degraded"
			} else {
				health["redis"] = "healthy"
			}
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "Route not found",
		"code":  "NOT_FOUND",
		"path":  c.Path(),
	})
}

// globalErrorHandler converts internal errors to the JSON error envelope.
// Validation failures carry per-field details; lockouts and other enriched
// errors carry their extra keys at the top level.
func globalErrorHandler(isDev bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		logx.WithFields(logx.Fields{
			"path":       c.Path(),
			"method":     c.Method(),
			"request_id": c.GetRespHeader("X-Request-ID"),
		}).WithError(err).Error("request failed")

		if e, ok := err.(*fiber.Error); ok {
			return c.Status(e.Code).JSON(fiber.Map{
				"error": e.Message,
				"code":  "HTTP_ERROR",
			})
		}

		var e *errx.Error
		if errx.As(err, &e) {
			response := fiber.Map{
				"error": e.Message,
				"code":  e.Code,
				"type":  string(e.Type),
			}
			if len(e.Fields) > 0 {
				response["details"] = e.Fields
			}
			for key, value := range e.Details {
				if _, taken := response[key]; !taken {
					response[key] = value
				}
			}
			if isDev && e.Err != nil {
				response["underlying_error"] = e.Err.Error()
			}
			return c.Status(e.HTTPStatus).JSON(response)
		}

		response := fiber.Map{
			"error": "Internal Server Error",
			"code":  "INTERNAL_ERROR",
			"type":  string(errx.TypeInternal),
		}
		if isDev {
			response["underlying_error"] = err.Error()
		}
		return c.Status(fiber.StatusInternalServerError).JSON(response)
	}
}

func startServer(app *fiber.App, port string, stopBackground context.CancelFunc) {
	go func() {
		logx.Infof("🚀 Server listening on port %s", port)
		if err := app.Listen(":" + port); err != nil {
			logx.Fatalf("Server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logx.Infof("🛑 Received signal: %v, shutting down gracefully...", sig)

	stopBackground()
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
	}

	logx.Info("✅ Server exited")
}
