package mockapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/adrelay/adrelay-go/internal/telemetry"
)

// Server bundles the fiber app with its stateful parts
type Server struct {
	App     *fiber.App
	Handler *Handler
	faults  *faultInjector
}

// NewServer creates the stub API with middleware and routes installed
func NewServer(cfg *Config, version string) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "AdRelay Mock API",
		ErrorHandler:          ErrorHandler,
		ReadTimeout:           time.Duration(cfg.RequestTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.RequestTimeout) * time.Second,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
	})

	s := &Server{
		App:     app,
		Handler: NewHandler(version),
		faults:  newFaultInjector(cfg.MaxDelay),
	}

	SetupMiddleware(app)
	SetupRoutes(app, s.Handler, s.faults, cfg)
	return s
}

// ResetFaults forgets X-Mock-Fail-Times counters
func (s *Server) ResetFaults() {
	s.faults.Reset()
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, handler *Handler, faults *faultInjector, cfg *Config) {
	// Health and metrics endpoints (no auth required)
	app.Get("/health", handler.Health)
	app.Get(cfg.MetricsPath, adaptor.HTTPHandler(telemetry.PrometheusHandler()))

	v1 := app.Group("/v1")
	v1.Use(ValidateAPIKey(cfg.APIKey))
	v1.Use(faults.Middleware())

	v1.Post("/decide", handler.Decide)
	v1.Post("/events", handler.TrackEvent)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Endpoint not found")
	})
}
