package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/rescuelink/internal/pkg/metrics"
)

const (
	registryTimeout = 10 * time.Second
	// The call handler waits for every notification; each one is bounded by
	// dispatch.notify_timeout, so this only caps the registry lookup.
	dispatchTimeout = 60 * time.Second
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(recover.New())

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP. Emergency calls are exempt.
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/emergency/call"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	em := app.Group("/emergency")
	em.Post("/ambulances/register", timeout.NewWithContext(RegisterAmbulanceHandler(deps), registryTimeout))
	em.Get("/ambulances", timeout.NewWithContext(ListAmbulancesHandler(deps), registryTimeout))
	em.Get("/ambulances/nearby", timeout.NewWithContext(NearbyAmbulancesHandler(deps), registryTimeout))
	em.Get("/ambulances/:id", timeout.NewWithContext(GetAmbulanceHandler(deps), registryTimeout))
	em.Put("/ambulances/:id/location", timeout.NewWithContext(UpdateLocationHandler(deps), registryTimeout))
	em.Delete("/ambulances/:id", timeout.NewWithContext(DeactivateAmbulanceHandler(deps), registryTimeout))
	em.Post("/call", timeout.NewWithContext(EmergencyCallHandler(deps), dispatchTimeout))
	em.Get("/dispatches/:id", timeout.NewWithContext(GetDispatchHandler(deps), registryTimeout))

	// GraphQL
	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), registryTimeout))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
