package planner

import (
	"fmt"

	"github.com/jyothishs/rf-outdoor-link-planner/core"
	"github.com/jyothishs/rf-outdoor-link-planner/model"
)

// HighlightRadiusM is the radius of the circles drawn around the pending
// tower and around the endpoints of the highlighted link.
const HighlightRadiusM = 500

// MapView is the initial camera for the rendering surface.
type MapView struct {
	Center core.LatLng
	Zoom   int
}

// DefaultMapView centres the map on India at zoom 5.
var DefaultMapView = MapView{
	Center: core.LatLng{Lat: 20.5937, Lng: 78.9629},
	Zoom:   5,
}

// Config holds per-session settings.
type Config struct {
	// DefaultFreqGHz is assigned to towers created from a map click.
	// Default: 2.4 GHz
	DefaultFreqGHz float64

	// View is handed to the rendering surface unchanged.
	View MapView
}

// DefaultConfig returns the reference planner settings.
func DefaultConfig() Config {
	return Config{
		DefaultFreqGHz: model.DefaultFrequencyGHz,
		View:           DefaultMapView,
	}
}

// ApplyDefaults fills zero-valued fields from DefaultConfig.
func (c Config) ApplyDefaults() Config {
	def := DefaultConfig()
	if c.DefaultFreqGHz == 0 {
		c.DefaultFreqGHz = def.DefaultFreqGHz
	}
	if c.View == (MapView{}) {
		c.View = def.View
	}
	return c
}

// Validate reports model.ErrInvalidValue for unusable settings.
func (c Config) Validate() error {
	if err := model.ValidateFrequency(c.DefaultFreqGHz); err != nil {
		return fmt.Errorf("default frequency: %w", err)
	}
	if err := model.ValidateCoordinates(c.View.Center.Lat, c.View.Center.Lng); err != nil {
		return fmt.Errorf("map view: %w", err)
	}
	return nil
}
