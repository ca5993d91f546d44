package usecases

import (
	"context"
	"sync"
	"testing"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
	"github.com/amchercashin/VeloTrek/internal/pkg/geospatial"
)

type mockPublisher struct {
	mu        sync.Mutex
	positions []string
	progress  []string
}

func (m *mockPublisher) PublishProgress(ctx context.Context, jobID string, p domain.DownloadProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = append(m.progress, jobID)
	return nil
}

func (m *mockPublisher) PublishPosition(ctx context.Context, routeID string, np *domain.NearestPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = append(m.positions, routeID)
	return nil
}

func TestFindNearest_EmptyRoute(t *testing.T) {
	svc := NewTrackingService(nil)
	if _, err := svc.FindNearest(43.0, -2.0, nil); err == nil {
		t.Error("empty point list must error")
	}
}

func TestFindNearest_PicksMiddlePoint(t *testing.T) {
	svc := NewTrackingService(nil)
	points := []domain.Point{
		{Lat: 43.00, Lon: -2.0},
		{Lat: 43.01, Lon: -2.0},
		{Lat: 43.02, Lon: -2.0},
	}

	np, err := svc.FindNearest(43.0101, -2.0, points)
	if err != nil {
		t.Fatal(err)
	}
	if np.Point.Lat != 43.01 {
		t.Errorf("expected middle point, got %+v", np.Point)
	}
}

func TestFindNearest_OnRouteThreshold(t *testing.T) {
	svc := NewTrackingService(nil)
	points := []domain.Point{{Lat: 43.0, Lon: -2.0}}

	// Directly on the point
	np, err := svc.FindNearest(43.0, -2.0, points)
	if err != nil {
		t.Fatal(err)
	}
	if !np.OnRoute || np.DistanceMeters != 0 {
		t.Errorf("zero distance must be on-route: %+v", np)
	}

	// About 1.1 km north
	np, err = svc.FindNearest(43.01, -2.0, points)
	if err != nil {
		t.Fatal(err)
	}
	if np.OnRoute {
		t.Errorf("1 km away must be off-route: %+v", np)
	}
	if np.DistanceMeters < 1000 || np.DistanceMeters > 1200 {
		t.Errorf("distance out of range: %f", np.DistanceMeters)
	}
}

func TestFindNearest_RefinementFindsSkippedPoint(t *testing.T) {
	// 2000 points force a coarse stride of 2. The target point sits at an
	// odd index, so only the refinement pass can find it exactly.
	points := make([]domain.Point, 2000)
	for i := range points {
		points[i] = domain.Point{Lat: 43.0 + float64(i)*0.0001, Lon: -2.0}
	}
	target := points[1001]

	svc := NewTrackingService(nil)
	np, err := svc.FindNearest(target.Lat, target.Lon, points)
	if err != nil {
		t.Fatal(err)
	}
	if np.Point.Lat != target.Lat {
		t.Errorf("refinement missed the exact point: got %+v", np.Point)
	}
	if np.DistanceMeters != 0 {
		t.Errorf("expected exact hit, distance %f", np.DistanceMeters)
	}
}

func TestFindNearest_TieKeepsFirst(t *testing.T) {
	svc := NewTrackingService(nil)
	points := []domain.Point{
		{Lat: 43.00, Lon: -2.0, Ele: 1},
		{Lat: 43.02, Lon: -2.0, Ele: 2},
	}

	// Equidistant from both; the first must win
	np, err := svc.FindNearest(43.01, -2.0, points)
	if err != nil {
		t.Fatal(err)
	}
	if np.Point.Ele != 1 {
		t.Errorf("tie must keep the first point, got %+v", np.Point)
	}
}

func TestResolvePosition_PublishesBroadcast(t *testing.T) {
	pub := &mockPublisher{}
	svc := NewTrackingService(pub)

	route := &domain.Route{
		ID:       "r1",
		Segments: []domain.Segment{{Points: []domain.Point{{Lat: 43.0, Lon: -2.0}}}},
		BBox:     geospatial.NewBBox(),
	}

	np, err := svc.ResolvePosition(context.Background(), route, 43.0, -2.0)
	if err != nil {
		t.Fatal(err)
	}
	if !np.OnRoute {
		t.Errorf("expected on-route: %+v", np)
	}
	if len(pub.positions) != 1 || pub.positions[0] != "r1" {
		t.Errorf("position must be published for the route: %v", pub.positions)
	}
}

func TestResolvePosition_WorksWithoutPublisher(t *testing.T) {
	svc := NewTrackingService(nil)
	route := &domain.Route{
		Segments: []domain.Segment{{Points: []domain.Point{{Lat: 43.0, Lon: -2.0}}}},
	}

	if _, err := svc.ResolvePosition(context.Background(), route, 43.0, -2.0); err != nil {
		t.Errorf("nil publisher must not fail resolution: %v", err)
	}
}
