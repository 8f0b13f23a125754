package httpapi

import (
	"context"
	"strings"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/usecase"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

type Config struct {
	MaxUploadMB     int
	CORSOrigins     string
	OutputRoute     string
	DefaultPageSize int
}

type Dependencies struct {
	Extract *usecase.ExtractFramesUseCase
	Query   *usecase.FrameQueryUseCase
	Archive *usecase.ArchiveUseCase
	// Checks are run by /healthz; any error marks the service unhealthy.
	Checks map[string]func(ctx context.Context) error
	Logger *zap.Logger
}

func NewApp(cfg Config, d Dependencies) *fiber.App {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 512
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 50
	}
	if cfg.OutputRoute == "" {
		cfg.OutputRoute = "output"
	}

	app := fiber.New(fiber.Config{
		AppName:               "frame-extractor",
		BodyLimit:             cfg.MaxUploadMB * 1024 * 1024,
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSOrigins}))

	RegisterRoutes(app, cfg, d)
	return app
}

func RegisterRoutes(app *fiber.App, cfg Config, d Dependencies) {
	h := &Handler{
		extract:         d.Extract,
		query:           d.Query,
		archive:         d.Archive,
		defaultPageSize: cfg.DefaultPageSize,
		logger:          d.Logger,
	}

	app.Get("/healthz", HealthLimiter(), healthHandler(d.Checks, d.Logger))

	api := app.Group("/api")
	api.Post("/upload", h.HandleUpload)
	api.Get("/images/:job_id", h.HandleImages)
	api.Get("/download/:job_id", h.HandleDownload)
	api.Get("/jobs/:job_id", h.HandleJob)

	app.Get("/"+strings.Trim(cfg.OutputRoute, "/")+"/:job_id/:name", h.HandleFrame)
}

func HealthLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Rate limit exceeded"})
		},
	})
}

func healthHandler(checks map[string]func(ctx context.Context) error, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		components := make(map[string]string, len(checks))
		ok := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				ok = false
				components[name] = err.Error()
				logger.Warn("health check failed", zap.String("component", name), zap.Error(err))
				continue
			}
			components[name] = "ok"
		}

		status := "ok"
		code := fiber.StatusOK
		if !ok {
			status = "error"
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{"status": status, "components": components})
	}
}
