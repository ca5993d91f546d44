package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/amchercashin/VeloTrek/internal/adapters/http"
	natsadapter "github.com/amchercashin/VeloTrek/internal/adapters/nats"
	"github.com/amchercashin/VeloTrek/internal/adapters/postgres"
	"github.com/amchercashin/VeloTrek/internal/adapters/tilestore"
	"github.com/amchercashin/VeloTrek/internal/adapters/upstream"
	"github.com/amchercashin/VeloTrek/internal/adapters/valkey"
	"github.com/amchercashin/VeloTrek/internal/core/ports"
	"github.com/amchercashin/VeloTrek/internal/core/usecases"
	"github.com/amchercashin/VeloTrek/internal/pkg/config"
	"github.com/amchercashin/VeloTrek/internal/pkg/logging"
	"github.com/amchercashin/VeloTrek/internal/pkg/metrics"
	"github.com/amchercashin/VeloTrek/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("velotrek-server")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("velotrek-server", logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					slog.Warn("telemetry shutdown failed", "error", err)
				}
			}()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Sample pool stats for the /metrics endpoint
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			}
		}
	}()

	// Tile store
	store, err := tilestore.Open(cfg.Tiles.StorePath)
	if err != nil {
		log.Fatalf("tile store: %v", err)
	}
	defer store.Close()

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
	}

	// NATS
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
	}

	// Raw NATS connection for WebSocket relay and resource cache requests
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Repos
	routeRepo := postgres.NewRouteRepo(db)

	// Use cases
	var cacheSvc ports.CacheService
	if cache != nil {
		cacheSvc = cache
	}
	var pubSvc ports.EventPublisher
	if pub != nil {
		pubSvc = pub
	}

	fetcher := upstream.NewFetcher(time.Duration(cfg.Tiles.FetchTimeout) * time.Second)
	trackSvc := usecases.NewTrackService(routeRepo, cacheSvc, store)
	tileSvc := usecases.NewTileService()
	downloadSvc := usecases.NewDownloadService(store, fetcher, tileSvc)
	downloadMgr := usecases.NewDownloadManager(downloadSvc, pubSvc)
	trackingSvc := usecases.NewTrackingService(pubSvc)

	var resources ports.ResourceCache
	if natsConn != nil {
		resources = natsadapter.NewCacheStatus(natsConn)
	}

	deps := &http.Dependencies{
		Tracks:          trackSvc,
		Tiles:           tileSvc,
		Downloads:       downloadMgr,
		Tracking:        trackingSvc,
		TileStore:       store,
		Fetcher:         fetcher,
		Resources:       resources,
		NATS:            natsConn,
		DB:              db,
		Cache:           cache,
		TileURLTemplate: cfg.Tiles.URLTemplate,
		ZoomMin:         cfg.Tiles.ZoomMin,
		ZoomMax:         cfg.Tiles.ZoomMax,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    32 * 1024 * 1024, // KMZ uploads can be large
		AppName:      "VeloTrek API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
