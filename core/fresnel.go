package core

import (
	"fmt"
	"math"

	"github.com/jyothishs/rf-outdoor-link-planner/model"
)

// SpeedOfLight in metres per second.
const SpeedOfLight = 3e8

// Wavelength returns the wavelength in metres for a frequency in GHz.
func Wavelength(freqGHz float64) (float64, error) {
	if math.IsNaN(freqGHz) || math.IsInf(freqGHz, 0) || freqGHz <= 0 {
		return 0, fmt.Errorf("%w: frequency %v GHz must be positive", model.ErrDomain, freqGHz)
	}
	return SpeedOfLight / (freqGHz * 1e9), nil
}

// FresnelRadius returns sqrt(λ·d/4) in metres for a link of total length
// distanceM operating at freqGHz.
//
// The formula is the first Fresnel-zone radius at the exact midpoint of the
// path. It is not interpolated along the link.
func FresnelRadius(freqGHz, distanceM float64) (float64, error) {
	lambda, err := Wavelength(freqGHz)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(distanceM) || math.IsInf(distanceM, 0) || distanceM <= 0 {
		return 0, fmt.Errorf("%w: link distance %v m must be positive", model.ErrDomain, distanceM)
	}
	return math.Sqrt(lambda * distanceM / 4), nil
}

// FirstFresnelRadius returns the first Fresnel-zone radius in metres at the
// midpoint of the link between a and b, using a's frequency as the channel.
// Coincident towers yield model.ErrDomain.
func FirstFresnelRadius(a, b model.Tower) (float64, error) {
	d := Distance(a.Lat, a.Lng, b.Lat, b.Lng)
	if d == 0 {
		return 0, fmt.Errorf("%w: towers %q and %q are coincident", model.ErrDomain, a.ID, b.ID)
	}
	return FresnelRadius(a.FreqGHz, d)
}
