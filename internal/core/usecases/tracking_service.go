package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
	"github.com/amchercashin/VeloTrek/internal/core/ports"
	"github.com/amchercashin/VeloTrek/internal/pkg/geospatial"
)

const (
	// A position closer than this to the polyline counts as on-route.
	onRouteThresholdM = 100

	// Coarse pass examines at most this many points however dense the
	// track is.
	maxCoarseSamples = 1000
)

// TrackingService locates live positions against a route polyline.
type TrackingService struct {
	pub ports.EventPublisher
}

// NewTrackingService creates a new TrackingService.
func NewTrackingService(pub ports.EventPublisher) *TrackingService {
	return &TrackingService{pub: pub}
}

// FindNearest returns the closest route point to (lat, lon) using a
// coarse stride pass followed by a refinement scan around the coarse
// winner. Ties keep the first point found. The refinement window is
// centered on the winner's array index, not its arc-length position.
func (s *TrackingService) FindNearest(lat, lon float64, points []domain.Point) (*domain.NearestPoint, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("route has no points")
	}

	step := max(1, len(points)/maxCoarseSamples)

	bestIdx := 0
	bestDist := geospatial.Haversine(lat, lon, points[0].Lat, points[0].Lon)
	for i := step; i < len(points); i += step {
		d := geospatial.Haversine(lat, lon, points[i].Lat, points[i].Lon)
		if d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}

	lo := max(0, bestIdx-step)
	hi := min(len(points), bestIdx+step)
	for i := lo; i < hi; i++ {
		d := geospatial.Haversine(lat, lon, points[i].Lat, points[i].Lon)
		if d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}

	return &domain.NearestPoint{
		Point:          points[bestIdx],
		DistanceMeters: bestDist,
		OnRoute:        bestDist < onRouteThresholdM,
	}, nil
}

// ResolvePosition locates a live position against the route and
// broadcasts the result for any listening clients. Publishing is
// best-effort; the caller still gets the location when the broker is
// down.
func (s *TrackingService) ResolvePosition(ctx context.Context, route *domain.Route, lat, lon float64) (*domain.NearestPoint, error) {
	np, err := s.FindNearest(lat, lon, route.FlatPoints())
	if err != nil {
		return nil, err
	}

	if s.pub != nil {
		if err := s.pub.PublishPosition(ctx, route.ID, np); err != nil {
			slog.Debug("position publish failed", "route_id", route.ID, "error", err)
		}
	}
	return np, nil
}
