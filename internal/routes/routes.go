package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/config"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/gateway"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/gateway/store"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/middleware"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/onboarding"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/provider"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/session"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce infra presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cfg.ProviderBaseURL == "" {
			return fmt.Errorf("identity provider base URL is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	// Health
	RegisterHealthRoutes(app, d)

	// Underlying store executor: Postgres when configured, in-memory otherwise.
	var exec store.Executor
	if d.DB != nil {
		exec = store.NewPostgres(d.DB)
	} else {
		exec = store.NewMemory()
	}
	gatewaySvc := gateway.NewService(exec)

	var sessions session.Stores
	if d.Cache != nil {
		sessions = session.NewRedisStores(d.Cache)
	} else {
		sessions = session.NewMemoryStores()
	}

	providerClient := provider.NewClient(
		d.Cfg.ProviderBaseURL,
		d.Cfg.ProviderClientID,
		d.Cfg.ProviderClientSecret,
		d.Cfg.ProviderTimeout,
		d.Logger,
	)

	onboardingSvc := onboarding.NewService(
		providerClient,
		gatewaySvc,
		sessions,
		d.Cfg.OtpWindow,
		d.Cfg.OtpMaxAttempts,
		d.Logger,
	)

	// Gateway endpoints live at the root, path-routed, CORS for all origins.
	RegisterGatewayRoutes(app, gateway.NewHandler(gatewaySvc))

	// API routes
	api := app.Group("/api/v1", middleware.Audit(d.Logger))
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	otpLimiter := middleware.OtpRateLimit(d.Cache, 3)
	RegisterOnboardingRoutes(api, onboarding.NewHandler(onboardingSvc), otpLimiter)

	return nil
}
