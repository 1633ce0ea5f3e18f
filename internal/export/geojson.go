// Package export renders planner state as GeoJSON for map clients.
package export

import (
	"github.com/jyothishs/rf-outdoor-link-planner/core"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/planner"
	"github.com/jyothishs/rf-outdoor-link-planner/model"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature kinds, stored under the "kind" property.
const (
	KindTower   = "tower"
	KindLink    = "link"
	KindMarker  = "marker"
	KindOverlay = "overlay"
)

func point(p core.LatLng) orb.Point { return orb.Point{p.Lng, p.Lat} }

// FeatureCollection renders a snapshot. reports supplies per-link labels and
// Fresnel radii; links without a report are drawn without them.
func FeatureCollection(snap planner.Snapshot, reports []planner.LinkReport) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	towers := make(map[string]model.Tower, len(snap.Towers))
	for _, t := range snap.Towers {
		towers[t.ID] = t
		f := geojson.NewFeature(point(core.PositionOf(t)))
		f.ID = t.ID
		f.Properties["kind"] = KindTower
		f.Properties["freq_ghz"] = t.FreqGHz
		if snap.Pending != nil && snap.Pending.ID == t.ID {
			f.Properties["pending"] = true
		}
		fc.Append(f)
	}

	byLink := make(map[string]planner.LinkReport, len(reports))
	for _, r := range reports {
		byLink[r.Link.ID] = r
	}
	for _, l := range snap.Links {
		a, okA := towers[l.TowerA]
		b, okB := towers[l.TowerB]
		if !okA || !okB {
			continue
		}
		f := geojson.NewFeature(orb.LineString{point(core.PositionOf(a)), point(core.PositionOf(b))})
		f.ID = l.ID
		f.Properties["kind"] = KindLink
		f.Properties["tower_a"] = l.TowerA
		f.Properties["tower_b"] = l.TowerB
		if r, ok := byLink[l.ID]; ok {
			f.Properties["label"] = r.Label
			f.Properties["distance_km"] = r.DistanceKm
			if r.GeometryErr == nil {
				f.Properties["fresnel_radius_m"] = r.FresnelRadiusM
			}
		}
		if snap.Highlight.LinkID == l.ID {
			f.Properties["highlighted"] = true
		}
		fc.Append(f)
	}

	for _, m := range snap.Markers {
		f := geojson.NewFeature(point(m.Center))
		f.Properties["kind"] = KindMarker
		f.Properties["role"] = string(m.Role)
		f.Properties["tower_id"] = m.TowerID
		f.Properties["radius_m"] = m.RadiusM
		fc.Append(f)
	}

	if snap.Overlay != nil {
		fc.Append(OverlayFeature(*snap.Overlay))
	}
	return fc
}

// OverlayFeature draws the overlay's bounding box as a polygon and carries
// the ellipse parameters as properties.
func OverlayFeature(g core.OverlayGeometry) *geojson.Feature {
	sw, ne := g.Bounds.SouthWest, g.Bounds.NorthEast
	ring := orb.Ring{
		{sw.Lng, sw.Lat},
		{ne.Lng, sw.Lat},
		{ne.Lng, ne.Lat},
		{sw.Lng, ne.Lat},
		{sw.Lng, sw.Lat},
	}
	f := geojson.NewFeature(orb.Polygon{ring})
	f.Properties["kind"] = KindOverlay
	f.Properties["center"] = []float64{g.Center.Lng, g.Center.Lat}
	f.Properties["radius_m"] = g.RadiusM
	f.Properties["rotation_deg"] = g.RotationDeg
	f.Properties["ellipse_rx"] = g.Ellipse.SemiMajor
	f.Properties["ellipse_ry"] = g.Ellipse.SemiMinor
	return f
}
