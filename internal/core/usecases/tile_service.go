package usecases

import (
	"fmt"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
	"github.com/amchercashin/VeloTrek/internal/pkg/geospatial"
)

const (
	// Zoom levels up to this are cheap enough to cover with the full
	// bounding-box rectangle; above it only the route corridor is taken.
	lowZoomMax = 13

	// Bounding-box margin in degrees, avoids clipped tiles at the edges.
	bboxMarginDeg = 0.01

	// At corridor zooms each segment is downsampled to at most this many
	// examined points.
	maxSamplesPerSegment = 500

	// Average raster tile size used for download estimates.
	tileSizeBytes = 15 * 1024
)

// TileService computes the tile set a route needs for offline rendering.
type TileService struct{}

// NewTileService creates a new TileService.
func NewTileService() *TileService { return &TileService{} }

// TilesForRoute returns the deduplicated set of tiles covering the route
// across [zoomMin, zoomMax]. Low zooms enumerate the expanded bounding-box
// rectangle; high zooms walk the route corridor with a one-tile buffer,
// so a long thin route does not pull in its entire bounding box.
func (s *TileService) TilesForRoute(route *domain.Route, zoomMin, zoomMax int) domain.TileSet {
	set := make(domain.TileSet)
	if zoomMin > zoomMax {
		return set
	}

	if route.BBox.Valid() {
		box := route.BBox.Expand(bboxMarginDeg)
		for zoom := zoomMin; zoom <= min(lowZoomMax, zoomMax); zoom++ {
			minX, minY := geospatial.TileXY(box.MaxLat, box.MinLon, zoom)
			maxX, maxY := geospatial.TileXY(box.MinLat, box.MaxLon, zoom)
			for x := minX; x <= maxX; x++ {
				for y := minY; y <= maxY; y++ {
					set[domain.TileKey{Zoom: zoom, X: x, Y: y}] = struct{}{}
				}
			}
		}
	}

	for zoom := max(lowZoomMax+1, zoomMin); zoom <= zoomMax; zoom++ {
		seen := make(map[[2]int]struct{})
		maxIndex := (1 << uint(zoom)) - 1
		for _, seg := range route.Segments {
			stride := max(1, len(seg.Points)/maxSamplesPerSegment)
			for i := 0; i < len(seg.Points); i += stride {
				addCorridorTiles(set, seen, seg.Points[i], zoom, maxIndex)
			}
			// The stride may skip the segment end; always cover it.
			if n := len(seg.Points); n > 0 && (n-1)%stride != 0 {
				addCorridorTiles(set, seen, seg.Points[n-1], zoom, maxIndex)
			}
		}
	}

	return set
}

// addCorridorTiles adds the 3x3 tile block centered on the point's tile.
func addCorridorTiles(set domain.TileSet, seen map[[2]int]struct{}, p domain.Point, zoom, maxIndex int) {
	cx, cy := geospatial.TileXY(p.Lat, p.Lon, zoom)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			x, y := cx+dx, cy+dy
			if x < 0 || y < 0 || x > maxIndex || y > maxIndex {
				continue
			}
			if _, ok := seen[[2]int{x, y}]; ok {
				continue
			}
			seen[[2]int{x, y}] = struct{}{}
			set[domain.TileKey{Zoom: zoom, X: x, Y: y}] = struct{}{}
		}
	}
}

// EstimateSize approximates the storage a tile count will take.
func (s *TileService) EstimateSize(count int) int64 {
	return int64(count) * tileSizeBytes
}

// FormatSize renders a byte count as B, KiB, or MiB for display.
func (s *TileService) FormatSize(bytes int64) string {
	switch {
	case bytes >= 1024*1024:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/(1024*1024))
	case bytes >= 1024:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
