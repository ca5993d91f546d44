package kml

import (
	"math"

	"github.com/amchercashin/VeloTrek/internal/core/domain"
	"github.com/amchercashin/VeloTrek/internal/pkg/geospatial"
)

// Half-width of the centered moving average applied to elevation samples.
// Window of 5 damps sub-kilometer DEM noise without flattening real relief.
const elevationSmoothingHalfWidth = 2

// computeStats derives the route's statistics map. A metric whose inputs
// are insufficient is omitted entirely, never recorded as zero.
func computeStats(route *domain.Route) {
	stats := make(map[string]float64)

	var trackKm float64
	for _, seg := range route.Segments {
		for i := 1; i < len(seg.Points); i++ {
			a, b := seg.Points[i-1], seg.Points[i]
			trackKm += geospatial.HaversineKm(a.Lat, a.Lon, b.Lat, b.Lon)
		}
	}
	if trackKm > 0 {
		stats[domain.StatTrackKm] = round1(trackKm)
	}

	if route.BBox.Valid() {
		stats[domain.StatSpanKm] = round1(route.BBox.SpanKm())
	}

	computeElevationStats(route, stats)

	if len(stats) > 0 {
		route.Stats = stats
	}
}

// computeElevationStats accumulates climb/descent over smoothed elevation
// sequences and raw min/max over the unsmoothed samples. Segments with
// fewer than two elevation-bearing points are skipped, and the whole
// block is omitted when no segment qualifies.
func computeElevationStats(route *domain.Route, stats map[string]float64) {
	var (
		climb, descent float64
		minEle         = math.Inf(1)
		maxEle         = math.Inf(-1)
		haveData       bool
	)

	for _, seg := range route.Segments {
		var eles []float64
		for _, p := range seg.Points {
			if p.Ele != 0 {
				eles = append(eles, p.Ele)
			}
		}
		if len(eles) < 2 {
			continue
		}
		haveData = true

		for _, e := range eles {
			minEle = math.Min(minEle, e)
			maxEle = math.Max(maxEle, e)
		}

		smoothed := movingAverage(eles, elevationSmoothingHalfWidth)
		for i := 1; i < len(smoothed); i++ {
			delta := smoothed[i] - smoothed[i-1]
			if delta > 0 {
				climb += delta
			} else {
				descent -= delta
			}
		}
	}

	if !haveData {
		return
	}
	stats[domain.StatElevationMin] = math.Round(minEle)
	stats[domain.StatElevationMax] = math.Round(maxEle)
	stats[domain.StatClimbM] = math.Round(climb)
	stats[domain.StatDescentM] = math.Round(descent)
}

// movingAverage applies a centered moving average with the given
// half-width. Windows are clamped at the sequence boundaries, so edge
// windows are shorter rather than padded.
func movingAverage(vals []float64, halfWidth int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		lo := i - halfWidth
		if lo < 0 {
			lo = 0
		}
		hi := i + halfWidth
		if hi > len(vals)-1 {
			hi = len(vals) - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += vals[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
