// Package orbit places satellites on the globe from the receiver's view of them.
//
// The receiver only reports azimuth and elevation. Assuming a circular orbit of
// a fixed radius per constellation, the line of sight from the observer is
// intersected with the orbit sphere and the intersection converted to the
// latitude/longitude directly beneath the satellite.
package orbit

import (
	"log"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	sat "satscope/internal/satellite"
)

// GroundPoint returns the sub-satellite point for a satellite seen at
// azimuthDeg/elevationDeg by an observer at observerLat/observerLong.
//
// The geometry is solved in a frame where the observer sits on the +y axis of
// a sphere of radius sat.GroundRadius, elevation tilts towards +x and azimuth
// swings x into z. The result is then rotated to the observer's latitude.
func GroundPoint(azimuthDeg, elevationDeg float64, constellation string, observerLat, observerLong float64) (lat, long float64) {
	if elevationDeg == 90 {
		return observerLat, observerLong
	}
	x, y, z := azElToUnitXYZ(azimuthDeg, elevationDeg, constellation)
	x, y, z = rotateByLatitude(x, y, z, observerLat)
	lat, long = unitXYZToLatLong(x, y, z)
	return lat, long + observerLong
}

func azElToUnitXYZ(azimuthDeg, elevationDeg float64, constellation string) (x, y, z float64) {
	orbit, ok := sat.OrbitRadius(constellation)
	if !ok {
		log.Printf("orbit unknown constellation=%q radius=%v", constellation, orbit)
	}
	ground := sat.GroundRadius
	az := radians(azimuthDeg)

	// The far/near roots are paired as (x1, y2): downstream positions depend
	// on exactly this pairing.
	x1, _ := solveX(elevationDeg, orbit, ground)
	_, y2 := solveY(elevationDeg, orbit, ground)

	x1 *= math.Cos(az)
	z1 := x1 * math.Tan(az)

	return x1 / orbit, y2 / orbit, z1 / orbit
}

// solveX returns the horizontal offsets at which a line of sight with the
// given elevation meets the orbit sphere.
func solveX(elevationDeg, orbit, ground float64) (float64, float64) {
	if elevationDeg == 90 {
		return 0, 0
	}
	tan := math.Tan(radians(elevationDeg))
	a := 1 + tan*tan
	b := 2 * ground * tan
	c := ground*ground - orbit*orbit
	return quadratic(a, b, c)
}

// solveY returns the vertical coordinates at which a line of sight with the
// given elevation meets the orbit sphere.
func solveY(elevationDeg, orbit, ground float64) (float64, float64) {
	if elevationDeg == 0 {
		return ground, ground
	}
	tan := math.Tan(radians(elevationDeg))
	k := 1 / (tan * tan)
	a := -1 - k
	b := 2 * ground * k
	c := orbit*orbit - ground*ground*k
	return quadratic(a, b, c)
}

// quadratic returns the (+√disc, −√disc) roots of ax²+bx+c.
func quadratic(a, b, c float64) (float64, float64) {
	d := math.Sqrt(b*b - 4*a*c)
	return (-b + d) / (2 * a), (-b - d) / (2 * a)
}

// rotateByLatitude rotates about the z axis by -lat so that the zenith of an
// observer on the equator maps onto the observer's latitude.
func rotateByLatitude(x, y, z, latDeg float64) (float64, float64, float64) {
	r := radians(-latDeg)
	sin, cos := math.Sincos(r)
	return x*cos - y*sin, x*sin + y*cos, z
}

func unitXYZToLatLong(x, y, z float64) (lat, long float64) {
	return degrees(math.Asin(x)), degrees(math.Atan2(z, y))
}

// RotateByTime moves a sub-satellite point computed at sampledAt west by the
// angle the Earth has turned until renderAt, so that old trail samples line up
// with the current orientation of the globe.
func RotateByTime(lat, long float64, sampledAt, renderAt time.Time) (float64, float64) {
	if sampledAt.IsZero() || renderAt.IsZero() || sampledAt.Equal(renderAt) {
		return lat, long
	}
	turned := gmst(renderAt) - gmst(sampledAt)
	turned = math.Mod(turned, 2*math.Pi)
	if turned < 0 {
		turned += 2 * math.Pi
	}
	return lat, wrapLongitude(long - degrees(turned))
}

// wrapLongitude maps long into [-180, 180).
func wrapLongitude(long float64) float64 {
	long = math.Mod(long+180, 360)
	if long < 0 {
		long += 360
	}
	return long - 180
}

// gmst returns Greenwich mean sidereal time in radians.
func gmst(t time.Time) float64 {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	jd += float64(t.Nanosecond()) / 1e9 / 86400.0
	return satellite.ThetaG_JD(jd)
}

func radians(deg float64) float64 { return deg * (math.Pi / 180) }
func degrees(rad float64) float64 { return rad * (180 / math.Pi) }
