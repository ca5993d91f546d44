package usecases

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
	"github.com/amchercashin/VeloTrek/internal/core/ports"
)

// TrackService handles the route catalog: storing parsed routes and
// serving them back, with cache-aside caching of single routes.
type TrackService struct {
	routes ports.RouteRepository
	cache  ports.CacheService
	tiles  ports.TileStore
}

// NewTrackService creates a new TrackService.
func NewTrackService(routes ports.RouteRepository, cache ports.CacheService, tiles ports.TileStore) *TrackService {
	return &TrackService{routes: routes, cache: cache, tiles: tiles}
}

// Create persists a freshly parsed route.
func (s *TrackService) Create(ctx context.Context, route *domain.Route) error {
	return s.routes.Create(ctx, route)
}

// GetByID returns a single route.
func (s *TrackService) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	cacheKey := "routes:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var route domain.Route
			if err := json.Unmarshal(data, &route); err == nil {
				return &route, nil
			}
		}
	}

	route, err := s.routes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Routes are immutable once parsed, so a long TTL is safe.
	if s.cache != nil {
		if data, err := json.Marshal(route); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 3600)
		}
	}

	return route, nil
}

// List returns all routes in the catalog.
func (s *TrackService) List(ctx context.Context) ([]domain.Route, error) {
	return s.routes.List(ctx)
}

// Delete removes a route, its cached JSON, and its offline tiles.
func (s *TrackService) Delete(ctx context.Context, id string) error {
	if err := s.routes.Delete(ctx, id); err != nil {
		return err
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx, "routes:id:"+id)
	}

	if s.tiles != nil {
		if n, err := s.tiles.DeleteRoute(ctx, id); err != nil {
			slog.Warn("route tile cleanup failed", "route_id", id, "error", err)
		} else if n > 0 {
			slog.Info("route tiles deleted", "route_id", id, "tiles", n)
		}
	}

	return nil
}
