// Package mercator converts between WGS-84 geographic coordinates and
// spherical Web Mercator meters (EPSG:3857), the coordinate space
// geometry is stored and indexed in.
//
// This is first-party rather than imported: it is a handful of
// closed-form lines, not an ambient concern worth a dependency (see
// DESIGN.md).
package mercator

import "math"

// EarthRadius is the sphere radius (meters) used by the Web Mercator
// projection, per the EPSG:3857 definition.
const EarthRadius = 6378137.0

// HalfCircumference is half the projected world's side length in meters;
// valid x/y both lie in [-HalfCircumference, HalfCircumference].
const HalfCircumference = math.Pi * EarthRadius

// maxLat is the Web Mercator latitude clamp (~85.0511 degrees).
var maxLat = 85.05112877980659

// Point is a position in one of the two coordinate spaces; callers track
// which space it's in by context.
type Point struct {
	X, Y float64
}

// FromWGS84 projects a WGS-84 (lat, lon) position forward into Web
// Mercator meters.
func FromWGS84(lat, lon float64) Point {
	if lat > maxLat {
		lat = maxLat
	}
	if lat < -maxLat {
		lat = -maxLat
	}
	x := EarthRadius * lon * math.Pi / 180
	y := EarthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return Point{X: x, Y: y}
}

// ToWGS84 inverts FromWGS84, returning (lat, lon) in degrees.
func ToWGS84(p Point) (lat, lon float64) {
	lon = p.X * 180 / (math.Pi * EarthRadius)
	lat = (2*math.Atan(math.Exp(p.Y/EarthRadius)) - math.Pi/2) * 180 / math.Pi
	return lat, lon
}
