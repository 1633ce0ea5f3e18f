package core

import (
	"math"

	"github.com/jyothishs/rf-outdoor-link-planner/model"
)

// EarthRadiusM is the mean Earth radius used for all distance
// calculations (metres).
const EarthRadiusM = 6371e3

// LatLng is a position in decimal degrees.
type LatLng struct {
	Lat, Lng float64
}

// PositionOf returns the tower's map position.
func PositionOf(t model.Tower) LatLng {
	return LatLng{Lat: t.Lat, Lng: t.Lng}
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// Distance returns the haversine great-circle distance in metres between
// two points given in decimal degrees.
func Distance(latA, lngA, latB, lngB float64) float64 {
	phiA := toRadians(latA)
	phiB := toRadians(latB)
	dPhi := toRadians(latB - latA)
	dLambda := toRadians(lngB - lngA)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phiA)*math.Cos(phiB)*sinLambda*sinLambda

	// Rounding can push a slightly outside [0, 1] near antipodes.
	if a < 0 {
		a = 0
	} else if a > 1 {
		a = 1
	}

	return EarthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DistanceBetween is Distance for LatLng values.
func DistanceBetween(a, b LatLng) float64 {
	return Distance(a.Lat, a.Lng, b.Lat, b.Lng)
}

// BearingAngle returns atan2(Δlat, Δlng) in degrees, in (-180, 180].
//
// This is a planar angle measured counter-clockwise from east on the raw
// coordinate grid, not a compass bearing. It is only meant for rotating the
// clearance overlay and must not be used for navigation.
func BearingAngle(a, b LatLng) float64 {
	deg := toDegrees(math.Atan2(b.Lat-a.Lat, b.Lng-a.Lng))
	if deg <= -180 {
		deg += 360
	}
	return deg
}

// Midpoint returns the arithmetic mean of the two positions. It is a planar
// approximation, adequate at the overlay's visual scale but not a geodesic
// midpoint.
func Midpoint(a, b LatLng) LatLng {
	return LatLng{
		Lat: (a.Lat + b.Lat) / 2,
		Lng: (a.Lng + b.Lng) / 2,
	}
}
