package http

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/amchercashin/VeloTrek/internal/adapters/kml"
	"github.com/amchercashin/VeloTrek/internal/core/domain"
	"github.com/amchercashin/VeloTrek/internal/core/ports"
	"github.com/amchercashin/VeloTrek/internal/core/usecases"
	"github.com/amchercashin/VeloTrek/internal/pkg/metrics"
)

// UploadRouteHandler accepts a KML or KMZ track file, parses it, and
// stores the resulting route. The file arrives either as multipart form
// field "track" or as the raw request body.
func UploadRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, filename, err := readTrackUpload(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if len(data) == 0 {
			return errBadRequest(c, "empty track file")
		}

		route, err := kml.ParseAuto(data)
		if err != nil {
			if errors.Is(err, kml.ErrNoKMLEntry) {
				return errUnprocessable(c, "archive contains no KML document")
			}
			return errUnprocessable(c, "track parse failed: "+err.Error())
		}
		if route.PointCount() == 0 && len(route.POIs) == 0 {
			return errUnprocessable(c, "track contains no usable geometry")
		}

		if name := c.FormValue("name"); name != "" {
			route.Name = name
		}
		if route.Name == "" && filename != "" {
			route.Name = strings.TrimSuffix(filename, filepath.Ext(filename))
		}
		if route.Name == "" {
			route.Name = "Unnamed route"
		}

		if err := deps.Tracks.Create(c.UserContext(), route); err != nil {
			return errInternal(c, err.Error())
		}

		format := "kml"
		if len(data) >= 2 && data[0] == 'P' && data[1] == 'K' {
			format = "kmz"
		}
		metrics.RoutesParsed.WithLabelValues(format).Inc()

		return c.Status(201).JSON(route)
	}
}

func readTrackUpload(c *fiber.Ctx) ([]byte, string, error) {
	fh, err := c.FormFile("track")
	if err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", err
		}
		return data, fh.Filename, nil
	}
	// Fall back to raw body uploads
	return c.Body(), "", nil
}

// ListRoutesHandler returns the route catalog without geometry.
func ListRoutesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		routes, err := deps.Tracks.List(c.UserContext())
		if err != nil {
			return errInternal(c, err.Error())
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 100
		}

		total := len(routes)
		if offset >= total {
			routes = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			routes = routes[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: routes, Pagination: pg})
	}
}

// GetRouteHandler returns a single route with full geometry.
func GetRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "route id is required")
		}
		route, err := deps.Tracks.GetByID(c.UserContext(), id)
		if errors.Is(err, ports.ErrNotFound) {
			return errNotFound(c, "route not found")
		}
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(route)
	}
}

// DeleteRouteHandler removes a route and its selectively owned tiles.
func DeleteRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "route id is required")
		}
		err := deps.Tracks.Delete(c.UserContext(), id)
		if errors.Is(err, ports.ErrNotFound) {
			return errNotFound(c, "route not found")
		}
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// EstimateTilesHandler reports how many tiles a download would cover and
// the estimated size, without fetching anything.
func EstimateTilesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		route, zoomMin, zoomMax, err := routeAndZoom(c, deps)
		if err != nil {
			return err
		}

		set := deps.Tiles.TilesForRoute(route, zoomMin, zoomMax)
		size := deps.Tiles.EstimateSize(len(set))

		return c.JSON(fiber.Map{
			"route_id":       route.ID,
			"zoom_min":       zoomMin,
			"zoom_max":       zoomMax,
			"tile_count":     len(set),
			"estimated_size": size,
			"estimated_text": deps.Tiles.FormatSize(size),
		})
	}
}

type downloadRequest struct {
	ZoomMin     int `json:"zoom_min"`
	ZoomMax     int `json:"zoom_max"`
	Concurrency int `json:"concurrency"`
	DelayMs     int `json:"delay_ms"`
}

// StartDownloadHandler launches a background tile download for a route.
// A download already running for the same route is superseded.
func StartDownloadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		route, err := deps.Tracks.GetByID(c.UserContext(), id)
		if errors.Is(err, ports.ErrNotFound) {
			return errNotFound(c, "route not found")
		}
		if err != nil {
			return errInternal(c, err.Error())
		}

		req := downloadRequest{ZoomMin: deps.ZoomMin, ZoomMax: deps.ZoomMax}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		if req.ZoomMin < 0 || req.ZoomMax > 20 || req.ZoomMin > req.ZoomMax {
			return errBadRequest(c, "invalid zoom range")
		}

		opts := usecases.DownloadOptions{
			ZoomMin:     req.ZoomMin,
			ZoomMax:     req.ZoomMax,
			Concurrency: req.Concurrency,
			Delay:       time.Duration(req.DelayMs) * time.Millisecond,
		}

		job := deps.Downloads.Start(route, deps.TileURLTemplate, opts)
		return c.Status(202).JSON(job)
	}
}

// GetDownloadHandler returns the state of a download job.
func GetDownloadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		job, ok := deps.Downloads.Get(c.Params("id"))
		if !ok {
			return errNotFound(c, "download job not found")
		}
		return c.JSON(job)
	}
}

// CancelDownloadHandler requests cooperative cancellation of a job.
func CancelDownloadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if deps.Downloads.Cancel(id) {
			return c.Status(202).JSON(fiber.Map{"status": "cancelling", "job_id": id})
		}
		if _, ok := deps.Downloads.Get(id); ok {
			return c.JSON(fiber.Map{"status": "already finished", "job_id": id})
		}
		return errNotFound(c, "download job not found")
	}
}

type positionRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ResolvePositionHandler locates a live position against a route and
// broadcasts the result to subscribed clients.
func ResolvePositionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		route, err := deps.Tracks.GetByID(c.UserContext(), c.Params("id"))
		if errors.Is(err, ports.ErrNotFound) {
			return errNotFound(c, "route not found")
		}
		if err != nil {
			return errInternal(c, err.Error())
		}

		var req positionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
			return errBadRequest(c, "lat/lon out of range")
		}

		np, err := deps.Tracking.ResolvePosition(c.UserContext(), route, req.Lat, req.Lon)
		if err != nil {
			return errUnprocessable(c, err.Error())
		}
		return c.JSON(np)
	}
}

func routeAndZoom(c *fiber.Ctx, deps *Dependencies) (route *domain.Route, zoomMin, zoomMax int, err error) {
	r, gerr := deps.Tracks.GetByID(c.UserContext(), c.Params("id"))
	if errors.Is(gerr, ports.ErrNotFound) {
		return nil, 0, 0, errNotFound(c, "route not found")
	}
	if gerr != nil {
		return nil, 0, 0, errInternal(c, gerr.Error())
	}

	zoomMin = c.QueryInt("zoom_min", deps.ZoomMin)
	zoomMax = c.QueryInt("zoom_max", deps.ZoomMax)
	if zoomMin < 0 || zoomMax > 20 || zoomMin > zoomMax {
		return nil, 0, 0, errBadRequest(c, "invalid zoom range")
	}
	return r, zoomMin, zoomMax, nil
}
