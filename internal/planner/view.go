package planner

import (
	"fmt"

	"github.com/jyothishs/rf-outdoor-link-planner/core"
	"github.com/jyothishs/rf-outdoor-link-planner/model"
)

// Highlight is presentational selection state. It drives overlay rendering
// only and has no bearing on domain correctness.
type Highlight struct {
	TowerID string // the pending tower, if any
	LinkID  string // the link last clicked, if any
}

// MarkerRole distinguishes the two kinds of highlight circle.
type MarkerRole string

const (
	MarkerPending      MarkerRole = "pending"
	MarkerLinkEndpoint MarkerRole = "link-endpoint"
)

// Marker is a highlight circle for the rendering surface.
type Marker struct {
	Role    MarkerRole
	TowerID string
	Center  core.LatLng
	RadiusM float64
}

// LinkReport bundles everything the rendering surface shows for one link.
type LinkReport struct {
	Link           model.Link
	TowerA, TowerB model.Tower
	DistanceKm     float64
	Label          string

	// FresnelRadiusM and Overlay are zero and GeometryErr is set when the
	// link geometry is degenerate.
	FresnelRadiusM float64
	Overlay        core.OverlayGeometry
	GeometryErr    error
}

// Snapshot is a read-only copy of a session for rendering.
type Snapshot struct {
	SessionID string
	View      MapView
	Towers    []model.Tower
	Links     []model.Link
	Pending   *model.Tower
	Highlight Highlight
	Markers   []Marker

	// Overlay is the clearance overlay of the highlighted link, nil when no
	// link is highlighted or its geometry is degenerate.
	Overlay *core.OverlayGeometry
}

// FormatLinkLabel renders the link tooltip text.
func FormatLinkLabel(distanceKm, freqGHz float64) string {
	return fmt.Sprintf("Distance: %.2f km, Channel: %g", distanceKm, freqGHz)
}
