package geospatial

import "math"

// Kilometers per degree of latitude; longitude is scaled by cos(lat).
const kmPerDegree = 111.32

// BBox is a geographic bounding box accumulated point by point.
// The starting state is deliberately inverted (min > max) so that the
// first observed point snaps both bounds.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// NewBBox returns the degenerate starting box {90,-90,180,-180}.
func NewBBox() BBox {
	return BBox{MinLat: 90, MaxLat: -90, MinLon: 180, MaxLon: -180}
}

// Extend grows the box to include the given point. Bounds only ever
// move outward.
func (b *BBox) Extend(lat, lon float64) {
	b.MinLat = math.Min(b.MinLat, lat)
	b.MaxLat = math.Max(b.MaxLat, lat)
	b.MinLon = math.Min(b.MinLon, lon)
	b.MaxLon = math.Max(b.MaxLon, lon)
}

// Valid reports whether at least one point has been observed.
func (b BBox) Valid() bool {
	return b.MinLat <= b.MaxLat && b.MinLon <= b.MaxLon
}

// Expand returns a copy grown by margin degrees on every side.
func (b BBox) Expand(margin float64) BBox {
	return BBox{
		MinLat: b.MinLat - margin,
		MaxLat: b.MaxLat + margin,
		MinLon: b.MinLon - margin,
		MaxLon: b.MaxLon + margin,
	}
}

// SpanKm approximates the diagonal of the box in kilometers by projecting
// the degree deltas onto a flat plane: one degree of latitude is taken as
// 111.32 km and longitude is scaled by the cosine of the mean latitude.
// Good enough for display at route scale, not for navigation.
func (b BBox) SpanKm() float64 {
	if !b.Valid() {
		return 0
	}
	meanLat := (b.MinLat + b.MaxLat) / 2
	dLatKm := (b.MaxLat - b.MinLat) * kmPerDegree
	dLonKm := (b.MaxLon - b.MinLon) * kmPerDegree * math.Cos(toRad(meanLat))
	return math.Sqrt(dLatKm*dLatKm + dLonKm*dLonKm)
}
