package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
	"github.com/amchercashin/VeloTrek/internal/core/ports"
	"github.com/amchercashin/VeloTrek/internal/core/usecases"
	"github.com/amchercashin/VeloTrek/internal/pkg/metrics"
)

// ServeTileHandler serves a map tile from the local store, falling back
// to the upstream server on a miss. Fetched tiles are promoted into the
// store so the next request is local.
func ServeTileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		zoom, errZ := c.ParamsInt("z")
		x, errX := c.ParamsInt("x")
		y, errY := c.ParamsInt("y")
		if errZ != nil || errX != nil || errY != nil {
			return errBadRequest(c, "tile coordinates must be integers")
		}
		if zoom < 0 || zoom > 20 {
			return errBadRequest(c, "zoom out of range")
		}
		maxIndex := (1 << zoom) - 1
		if x < 0 || x > maxIndex || y < 0 || y > maxIndex {
			return errBadRequest(c, "tile index out of range for zoom")
		}

		key := domain.TileKey{Zoom: zoom, X: x, Y: y}

		if data, err := deps.TileStore.Get(c.UserContext(), key.String()); err == nil {
			metrics.TilesServed.WithLabelValues("store").Inc()
			c.Set("Content-Type", "image/png")
			return c.Send(data)
		} else if !errors.Is(err, ports.ErrNotFound) {
			return errInternal(c, err.Error())
		}

		if deps.Fetcher == nil {
			return errNotFound(c, "tile not cached and no upstream configured")
		}

		url := usecases.SubstituteTileURL(deps.TileURLTemplate, key)
		data, err := deps.Fetcher.Fetch(c.UserContext(), url)
		if err != nil {
			return errBadGateway(c, "upstream tile fetch failed")
		}

		// Promote into the store, best-effort
		if err := deps.TileStore.Put(c.UserContext(), key.String(), data); err != nil {
			LoggerFromCtx(c.UserContext()).Warn("tile promote failed", "key", key.String(), "error", err)
		}

		metrics.TilesServed.WithLabelValues("upstream").Inc()
		c.Set("Content-Type", "image/png")
		return c.Send(data)
	}
}

// TileStatsHandler reports tile store occupancy.
func TileStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		count, err := deps.TileStore.Count(c.UserContext())
		if err != nil {
			return errInternal(c, err.Error())
		}
		size := deps.Tiles.EstimateSize(count)
		return c.JSON(fiber.Map{
			"tile_count":     count,
			"estimated_size": size,
			"estimated_text": deps.Tiles.FormatSize(size),
		})
	}
}

// ClearTilesHandler wipes the entire tile store.
func ClearTilesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.TileStore.Clear(c.UserContext()); err != nil {
			return errInternal(c, err.Error())
		}
		LoggerFromCtx(c.UserContext()).Info("tile store cleared")
		return c.SendStatus(204)
	}
}
