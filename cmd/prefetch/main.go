package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amchercashin/VeloTrek/internal/adapters/kml"
	"github.com/amchercashin/VeloTrek/internal/adapters/tilestore"
	"github.com/amchercashin/VeloTrek/internal/adapters/upstream"
	"github.com/amchercashin/VeloTrek/internal/core/domain"
	"github.com/amchercashin/VeloTrek/internal/core/usecases"
	"github.com/amchercashin/VeloTrek/internal/pkg/config"
	"github.com/amchercashin/VeloTrek/internal/pkg/logging"
)

// prefetch downloads the tile coverage for a local KML/KMZ file straight
// into the tile store, without the API server or database.
func main() {
	var (
		trackPath = flag.String("track", "", "path to a KML or KMZ track file")
		zoomMin   = flag.Int("zoom-min", -1, "minimum zoom (default from config)")
		zoomMax   = flag.Int("zoom-max", -1, "maximum zoom (default from config)")
	)
	flag.Parse()

	logging.Setup("velotrek-prefetch", os.Getenv("LOG_LEVEL"), "text")

	if *trackPath == "" {
		log.Fatal("usage: prefetch -track route.kmz [-zoom-min N] [-zoom-max N]")
	}

	cfg, err := config.Load("velotrek-prefetch")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *zoomMin < 0 {
		*zoomMin = cfg.Tiles.ZoomMin
	}
	if *zoomMax < 0 {
		*zoomMax = cfg.Tiles.ZoomMax
	}

	data, err := os.ReadFile(*trackPath)
	if err != nil {
		log.Fatalf("read track: %v", err)
	}

	route, err := kml.ParseAuto(data)
	if err != nil {
		log.Fatalf("parse track: %v", err)
	}
	slog.Info("track parsed",
		"name", route.Name,
		"points", route.PointCount(),
		"pois", len(route.POIs))

	store, err := tilestore.Open(cfg.Tiles.StorePath)
	if err != nil {
		log.Fatalf("tile store: %v", err)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetcher := upstream.NewFetcher(time.Duration(cfg.Tiles.FetchTimeout) * time.Second)
	svc := usecases.NewDownloadService(store, fetcher, usecases.NewTileService())

	opts := usecases.DownloadOptions{
		ZoomMin:     *zoomMin,
		ZoomMax:     *zoomMax,
		Concurrency: cfg.Tiles.Concurrency,
		Delay:       time.Duration(cfg.Tiles.DelayMs) * time.Millisecond,
		OnProgress: func(p domain.DownloadProgress) {
			if p.Phase == domain.PhaseDownloading && (p.Completed+p.Failed+p.Cached)%50 == 0 {
				slog.Info("downloading",
					"done", p.Completed,
					"cached", p.Cached,
					"failed", p.Failed,
					"total", p.Total)
			}
		},
	}

	result, err := svc.DownloadTiles(ctx, route, cfg.Tiles.URLTemplate, opts)
	if err != nil {
		log.Fatalf("download: %v", err)
	}

	slog.Info("prefetch finished",
		"completed", result.Completed,
		"cached", result.Cached,
		"failed", result.Failed,
		"cancelled", result.Cancelled)
}
