// Package mapproj projects geographic positions onto the base world map and
// works out which window of that map to show.
package mapproj

import "math"

// meridianShift is the longitude offset of the base map; it is not centred on
// Greenwich.
const meridianShift = -10.0

// Point is a position in map units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in map or screen units.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Project converts lat/long to Gall stereographic coordinates relative to the
// centre of a map mapWidth units wide. It is defined for every input: latitudes
// past a pole come back down the other side of the globe.
func Project(lat, long, mapWidth float64) (x, y float64) {
	long += meridianShift

	if lat > 90 {
		lat = 180 - lat
		long += 180
	} else if lat < -90 {
		lat = -180 - lat
		long += 180
	}

	if long < -180-meridianShift {
		long += 360
	} else if long > 180-meridianShift {
		long -= 360
	}

	radius := mapWidth / (2 * math.Pi)
	latRad := lat * (math.Pi / 180)
	longRad := long * (math.Pi / 180)

	// The textbook x divides by √2; the base map artwork does not.
	x = radius * longRad
	y = -radius * (math.Sqrt2 + 1) * math.Tan(latRad/2)
	return x, y
}

// ProjectToMap projects lat/long into base-map coordinates, with (0,0) at the
// top-left corner of the base map.
func ProjectToMap(lat, long float64, base Size) Point {
	x, y := Project(lat, long, base.Width)
	return Point{X: x + base.Width/2, Y: y + base.Height/2}
}

// SplitTrail breaks a trail into polylines wherever consecutive points jump by
// more than half the map, which happens when a trail crosses the map edge.
func SplitTrail(points []Point, base Size) [][]Point {
	var out [][]Point
	for i, p := range points {
		if i == 0 ||
			math.Abs(p.X-points[i-1].X) > base.Width/2 ||
			math.Abs(p.Y-points[i-1].Y) > base.Height/2 {
			out = append(out, []Point{p})
			continue
		}
		out[len(out)-1] = append(out[len(out)-1], p)
	}
	return out
}
