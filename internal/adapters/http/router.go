package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/amchercashin/VeloTrek/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 240 requests per minute per IP. Tile serving bursts
	// hard when a map pans, hence the higher ceiling.
	app.Use(limiter.New(limiter.Config{
		Max:        240,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1
	v1 := app.Group("/v1")

	// Route catalog. Uploads parse whole KMZ archives, so they get a
	// longer budget than reads.
	v1.Post("/routes", timeout.NewWithContext(UploadRouteHandler(deps), 60*time.Second))
	v1.Get("/routes", timeout.NewWithContext(ListRoutesHandler(deps), 15*time.Second))
	v1.Get("/routes/:id", timeout.NewWithContext(GetRouteHandler(deps), 15*time.Second))
	v1.Delete("/routes/:id", timeout.NewWithContext(DeleteRouteHandler(deps), 15*time.Second))

	// Tile coverage and downloads
	v1.Get("/routes/:id/tiles/estimate", timeout.NewWithContext(EstimateTilesHandler(deps), 15*time.Second))
	v1.Post("/routes/:id/tiles/download", timeout.NewWithContext(StartDownloadHandler(deps), 15*time.Second))
	v1.Get("/downloads/:id", timeout.NewWithContext(GetDownloadHandler(deps), 15*time.Second))
	v1.Delete("/downloads/:id", timeout.NewWithContext(CancelDownloadHandler(deps), 15*time.Second))

	// Tile serving and store management
	v1.Get("/tiles/stats", timeout.NewWithContext(TileStatsHandler(deps), 15*time.Second))
	v1.Get("/tiles/:z/:x/:y", timeout.NewWithContext(ServeTileHandler(deps), 30*time.Second))
	v1.Delete("/tiles", timeout.NewWithContext(ClearTilesHandler(deps), 30*time.Second))

	// Live position
	v1.Post("/routes/:id/position", timeout.NewWithContext(ResolvePositionHandler(deps), 15*time.Second))

	// Offline app assets
	v1.Get("/resources/status", timeout.NewWithContext(ResourceStatusHandler(deps), 15*time.Second))
	v1.Post("/resources/cache", timeout.NewWithContext(CacheResourceHandler(deps), 15*time.Second))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
