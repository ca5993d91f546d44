package geospatial

import "math"

// TileXY projects a WGS 84 coordinate to slippy-map tile coordinates at
// the given zoom: x from plain longitude scaling, y via the Mercator
// latitude transform. Results are clamped to the valid [0, 2^zoom-1]
// range so pole and antimeridian inputs stay addressable.
func TileXY(lat, lon float64, zoom int) (x, y int) {
	n := float64(int(1) << uint(zoom))

	x = int(math.Floor((lon + 180) / 360 * n))

	latRad := toRad(lat)
	y = int(math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n))

	max := int(n) - 1
	if x < 0 {
		x = 0
	} else if x > max {
		x = max
	}
	if y < 0 {
		y = 0
	} else if y > max {
		y = max
	}
	return x, y
}
