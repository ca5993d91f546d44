package usecases

import (
	"testing"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
	"github.com/amchercashin/VeloTrek/internal/pkg/geospatial"
)

func singlePointRoute(lat, lon float64) *domain.Route {
	route := &domain.Route{
		Segments: []domain.Segment{{Points: []domain.Point{{Lat: lat, Lon: lon}}}},
		BBox:     geospatial.NewBBox(),
	}
	route.BBox.Extend(lat, lon)
	return route
}

func TestTilesForRoute_CorridorBlockAtHighZoom(t *testing.T) {
	svc := NewTileService()
	route := singlePointRoute(43.2630, -2.9350)

	set := svc.TilesForRoute(route, 14, 14)

	// A single interior point yields exactly the 3x3 block around its tile
	if len(set) != 9 {
		t.Fatalf("expected 9 tiles, got %d", len(set))
	}
	cx, cy := geospatial.TileXY(43.2630, -2.9350, 14)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			key := domain.TileKey{Zoom: 14, X: cx + dx, Y: cy + dy}
			if _, ok := set[key]; !ok {
				t.Errorf("missing corridor tile %s", key)
			}
		}
	}
}

func TestTilesForRoute_LowZoomCoversBBoxRectangle(t *testing.T) {
	svc := NewTileService()
	route := singlePointRoute(43.2630, -2.9350)

	set := svc.TilesForRoute(route, 10, 10)

	if len(set) == 0 {
		t.Fatal("low zoom must produce bbox tiles")
	}
	for key := range set {
		if key.Zoom != 10 {
			t.Errorf("unexpected zoom in set: %s", key)
		}
	}

	// The margin-expanded box must include the center tile
	cx, cy := geospatial.TileXY(43.2630, -2.9350, 10)
	if _, ok := set[domain.TileKey{Zoom: 10, X: cx, Y: cy}]; !ok {
		t.Error("center tile missing from bbox rectangle")
	}
}

func TestTilesForRoute_MixedZoomRange(t *testing.T) {
	svc := NewTileService()
	route := singlePointRoute(43.2630, -2.9350)

	set := svc.TilesForRoute(route, 13, 14)

	var low, high int
	for key := range set {
		switch key.Zoom {
		case 13:
			low++
		case 14:
			high++
		default:
			t.Errorf("zoom outside requested range: %s", key)
		}
	}
	if low == 0 || high == 0 {
		t.Errorf("expected tiles at both zooms, got %d low / %d high", low, high)
	}
	if high != 9 {
		t.Errorf("zoom 14 must be corridor tiles only, got %d", high)
	}
}

func TestTilesForRoute_EmptyRangeAndInvertedRange(t *testing.T) {
	svc := NewTileService()
	route := singlePointRoute(43.0, -2.0)

	if set := svc.TilesForRoute(route, 14, 13); len(set) != 0 {
		t.Errorf("inverted range must be empty, got %d tiles", len(set))
	}
}

func TestTilesForRoute_NoGeometry(t *testing.T) {
	svc := NewTileService()
	route := &domain.Route{BBox: geospatial.NewBBox()}

	if set := svc.TilesForRoute(route, 8, 15); len(set) != 0 {
		t.Errorf("route without geometry must need no tiles, got %d", len(set))
	}
}

func TestTilesForRoute_StrideCoversSegmentEnd(t *testing.T) {
	// 1001 points force a stride of 2; the final point must still be covered
	points := make([]domain.Point, 1001)
	for i := range points {
		points[i] = domain.Point{Lat: 43.0 + float64(i)*0.0001, Lon: -2.0}
	}
	route := &domain.Route{
		Segments: []domain.Segment{{Points: points}},
		BBox:     geospatial.NewBBox(),
	}
	for _, p := range points {
		route.BBox.Extend(p.Lat, p.Lon)
	}

	svc := NewTileService()
	set := svc.TilesForRoute(route, 16, 16)

	last := points[len(points)-1]
	cx, cy := geospatial.TileXY(last.Lat, last.Lon, 16)
	if _, ok := set[domain.TileKey{Zoom: 16, X: cx, Y: cy}]; !ok {
		t.Error("segment end tile missing despite stride")
	}
}

func TestEstimateSize(t *testing.T) {
	svc := NewTileService()
	if got := svc.EstimateSize(100); got != 100*15*1024 {
		t.Errorf("estimate: got %d", got)
	}
	if got := svc.EstimateSize(0); got != 0 {
		t.Errorf("zero tiles must estimate 0, got %d", got)
	}
}

func TestFormatSize(t *testing.T) {
	svc := NewTileService()
	cases := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{15 * 1024, "15.0 KiB"},
		{3 * 1024 * 1024, "3.0 MiB"},
	}
	for _, tc := range cases {
		if got := svc.FormatSize(tc.bytes); got != tc.want {
			t.Errorf("FormatSize(%d): got %q want %q", tc.bytes, got, tc.want)
		}
	}
}

func TestSubstituteTileURL(t *testing.T) {
	url := SubstituteTileURL("https://tiles.example.org/{z}/{x}/{y}.png",
		domain.TileKey{Zoom: 14, X: 8058, Y: 6003})
	if url != "https://tiles.example.org/14/8058/6003.png" {
		t.Errorf("got %q", url)
	}
}
