package domain

import (
	"time"

	"github.com/amchercashin/VeloTrek/internal/pkg/geospatial"
)

// Point is a single track coordinate (WGS 84). Elevation is meters above
// sea level; 0 means "no elevation recorded" in most consumer track files.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Ele float64 `json:"ele"`
}

// Segment is one continuous ordered polyline within a route. Point order
// defines path direction and feeds the distance and elevation sums.
type Segment struct {
	Points []Point `json:"points"`
}

// POI is a named point of interest on or near a route.
type POI struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Ele         float64 `json:"ele"`
}

// Stat keys present in Route.Stats. A key is absent when the metric could
// not be computed; it is never stored as a zero placeholder.
const (
	StatTrackKm      = "track_km"
	StatSpanKm       = "span_km"
	StatElevationMin = "elevation_min_m"
	StatElevationMax = "elevation_max_m"
	StatClimbM       = "climb_m"
	StatDescentM     = "descent_m"
)

// Route is a parsed track file: geometry, metadata, and derived statistics.
// Immutable once produced by the parser.
type Route struct {
	ID          string             `json:"id,omitempty"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Segments    []Segment          `json:"segments"`
	POIs        []POI              `json:"pois,omitempty"`
	BBox        geospatial.BBox    `json:"bbox"`
	Stats       map[string]float64 `json:"stats,omitempty"`
	CreatedAt   time.Time          `json:"created_at,omitempty"`
}

// FlatPoints returns every segment point in order as one slice, the shape
// the nearest-point locator works on.
func (r *Route) FlatPoints() []Point {
	n := 0
	for _, s := range r.Segments {
		n += len(s.Points)
	}
	points := make([]Point, 0, n)
	for _, s := range r.Segments {
		points = append(points, s.Points...)
	}
	return points
}

// PointCount returns the total number of segment points.
func (r *Route) PointCount() int {
	n := 0
	for _, s := range r.Segments {
		n += len(s.Points)
	}
	return n
}

// NearestPoint is the result of locating a live position against a route.
type NearestPoint struct {
	Point          Point   `json:"point"`
	DistanceMeters float64 `json:"distance_meters"`
	OnRoute        bool    `json:"on_route"`
}
