package model

import (
	"fmt"
	"math"
)

// DefaultFrequencyGHz is the channel assigned to towers placed by a map click.
const DefaultFrequencyGHz = 2.4

// Tower is a radio site placed on the map.
type Tower struct {
	ID  string
	Lat float64 // decimal degrees, [-90, 90]
	Lng float64 // decimal degrees, [-180, 180]

	// FreqGHz is the operating channel. It may be edited after the tower
	// has been linked; existing links are not re-validated.
	FreqGHz float64
}

// ValidateCoordinates reports ErrInvalidValue for NaN, infinite or
// out-of-range latitude/longitude values.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidValue, lat)
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidValue, lng)
	}
	return nil
}

// ValidateFrequency reports ErrInvalidValue unless freqGHz is a finite,
// strictly positive number.
func ValidateFrequency(freqGHz float64) error {
	if math.IsNaN(freqGHz) || math.IsInf(freqGHz, 0) || freqGHz <= 0 {
		return fmt.Errorf("%w: frequency %v GHz must be positive", ErrInvalidValue, freqGHz)
	}
	return nil
}
