package http

import (
	"github.com/nats-io/nats.go"

	"github.com/amchercashin/VeloTrek/internal/adapters/postgres"
	"github.com/amchercashin/VeloTrek/internal/adapters/valkey"
	"github.com/amchercashin/VeloTrek/internal/core/ports"
	"github.com/amchercashin/VeloTrek/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Tracks    *usecases.TrackService
	Tiles     *usecases.TileService
	Downloads *usecases.DownloadManager
	Tracking  *usecases.TrackingService
	TileStore ports.TileStore
	Fetcher   ports.TileFetcher
	Resources ports.ResourceCache
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     *valkey.Cache

	// Tile download defaults from configuration.
	TileURLTemplate string
	ZoomMin         int
	ZoomMax         int
}
