package core

import "github.com/jyothishs/rf-outdoor-link-planner/model"

// OverlayHalfExtentDeg is the fixed half-size of the overlay box around the
// link midpoint. A fixed box is a known scale limitation: the ellipse is
// visually meaningless for links much longer or shorter than a few km.
const OverlayHalfExtentDeg = 0.01

// Bounds is a lat/lng box, south-west to north-east corner.
type Bounds struct {
	SouthWest LatLng
	NorthEast LatLng
}

// Ellipse describes the clearance ellipse inside the overlay box.
//
// Centre and semi-major axis are fractions of the box (0.5 = half the box
// width). SemiMinor is the Fresnel radius divided by 1000, which the
// rendering surface draws in map-scale units. RotationDeg rotates the ellipse
// about the box centre.
type Ellipse struct {
	CenterX     float64
	CenterY     float64
	SemiMajor   float64
	SemiMinor   float64
	RotationDeg float64
}

// OverlayGeometry is everything the rendering surface needs to draw the
// Fresnel clearance overlay for one link.
type OverlayGeometry struct {
	Center      LatLng
	RadiusM     float64
	RotationDeg float64
	Bounds      Bounds
	Ellipse     Ellipse
}

// BuildOverlay derives the overlay geometry for the link a -> b. It fails
// with model.ErrDomain when the Fresnel radius is undefined.
func BuildOverlay(a, b model.Tower) (OverlayGeometry, error) {
	radius, err := FirstFresnelRadius(a, b)
	if err != nil {
		return OverlayGeometry{}, err
	}

	pa, pb := PositionOf(a), PositionOf(b)
	center := Midpoint(pa, pb)
	rotation := BearingAngle(pa, pb)

	return OverlayGeometry{
		Center:      center,
		RadiusM:     radius,
		RotationDeg: rotation,
		Bounds: Bounds{
			SouthWest: LatLng{Lat: center.Lat - OverlayHalfExtentDeg, Lng: center.Lng - OverlayHalfExtentDeg},
			NorthEast: LatLng{Lat: center.Lat + OverlayHalfExtentDeg, Lng: center.Lng + OverlayHalfExtentDeg},
		},
		Ellipse: Ellipse{
			CenterX:     0.5,
			CenterY:     0.5,
			SemiMajor:   0.5,
			SemiMinor:   radius / 1000,
			RotationDeg: rotation,
		},
	}, nil
}
