package api

import (
	"fmt"

	"github.com/jyothishs/rf-outdoor-link-planner/core"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/planner"
	"github.com/jyothishs/rf-outdoor-link-planner/model"
	"github.com/mitchellh/mapstructure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Request payloads. Keys are the snake_case fields of the structpb.Struct.

type CreateSessionRequest struct {
	DefaultFreqGHz float64 `mapstructure:"default_freq_ghz"`
}

type SessionRequest struct {
	SessionID string `mapstructure:"session_id"`
}

type AddTowerRequest struct {
	SessionID string   `mapstructure:"session_id"`
	Lat       *float64 `mapstructure:"lat"`
	Lng       *float64 `mapstructure:"lng"`
	FreqGHz   *float64 `mapstructure:"freq_ghz"` // optional; session default when absent
}

type UpdateFrequencyRequest struct {
	SessionID string   `mapstructure:"session_id"`
	TowerID   string   `mapstructure:"tower_id"`
	FreqGHz   *float64 `mapstructure:"freq_ghz"`
}

type TowerRequest struct {
	SessionID string `mapstructure:"session_id"`
	TowerID   string `mapstructure:"tower_id"`
}

type LinkRequest struct {
	SessionID string `mapstructure:"session_id"`
	LinkID    string `mapstructure:"link_id"`
}

// Response payloads, shared by the server encoder and the client decoder.

type TowerMsg struct {
	ID      string  `mapstructure:"id"`
	Lat     float64 `mapstructure:"lat"`
	Lng     float64 `mapstructure:"lng"`
	FreqGHz float64 `mapstructure:"freq_ghz"`
}

type LinkMsg struct {
	ID     string `mapstructure:"id"`
	TowerA string `mapstructure:"tower_a"`
	TowerB string `mapstructure:"tower_b"`
}

type LatLngMsg struct {
	Lat float64 `mapstructure:"lat"`
	Lng float64 `mapstructure:"lng"`
}

type EllipseMsg struct {
	CenterX     float64 `mapstructure:"cx"`
	CenterY     float64 `mapstructure:"cy"`
	SemiMajor   float64 `mapstructure:"rx"`
	SemiMinor   float64 `mapstructure:"ry"`
	RotationDeg float64 `mapstructure:"rotation_deg"`
}

type OverlayMsg struct {
	Center      LatLngMsg  `mapstructure:"center"`
	RadiusM     float64    `mapstructure:"radius_m"`
	RotationDeg float64    `mapstructure:"rotation_deg"`
	SouthWest   LatLngMsg  `mapstructure:"south_west"`
	NorthEast   LatLngMsg  `mapstructure:"north_east"`
	Ellipse     EllipseMsg `mapstructure:"ellipse"`
}

type MarkerMsg struct {
	Role    string    `mapstructure:"role"`
	TowerID string    `mapstructure:"tower_id"`
	Center  LatLngMsg `mapstructure:"center"`
	RadiusM float64   `mapstructure:"radius_m"`
}

type SessionMsg struct {
	SessionID      string  `mapstructure:"session_id"`
	DefaultFreqGHz float64 `mapstructure:"default_freq_ghz"`
}

type RemovalMsg struct {
	Tower          TowerMsg `mapstructure:"tower"`
	RemovedLinkIDs []string `mapstructure:"removed_link_ids"`
	PendingCleared bool     `mapstructure:"pending_cleared"`
}

type PairingMsg struct {
	Outcome        string   `mapstructure:"outcome"`
	Phase          string   `mapstructure:"phase"`
	PendingTowerID string   `mapstructure:"pending_tower_id"`
	Link           *LinkMsg `mapstructure:"link"`
	Notice         string   `mapstructure:"notice"` // set when the pairing was rejected
}

type LinkGeometryMsg struct {
	Link           LinkMsg     `mapstructure:"link"`
	DistanceKm     float64     `mapstructure:"distance_km"`
	Label          string      `mapstructure:"label"`
	FresnelRadiusM float64     `mapstructure:"fresnel_radius_m"`
	Overlay        *OverlayMsg `mapstructure:"overlay"`
	GeometryError  string      `mapstructure:"geometry_error"`
}

type SnapshotMsg struct {
	SessionID       string      `mapstructure:"session_id"`
	ViewCenter      LatLngMsg   `mapstructure:"view_center"`
	Zoom            int         `mapstructure:"zoom"`
	Towers          []TowerMsg  `mapstructure:"towers"`
	Links           []LinkMsg   `mapstructure:"links"`
	PendingTowerID  string      `mapstructure:"pending_tower_id"`
	HighlightLinkID string      `mapstructure:"highlight_link_id"`
	Markers         []MarkerMsg `mapstructure:"markers"`
	Overlay         *OverlayMsg `mapstructure:"overlay"`
}

//
// ---------- Decoding ----------
//

// decodeStrict decodes a request payload, rejecting unknown keys.
func decodeStrict(in *structpb.Struct, out any) error {
	var src map[string]any
	if in != nil {
		src = in.AsMap()
	}
	if err := decodeMap(src, out, true); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// decodeLenient decodes a response payload, ignoring unknown keys.
func decodeLenient(in *structpb.Struct, out any) error {
	var src map[string]any
	if in != nil {
		src = in.AsMap()
	}
	return decodeMap(src, out, false)
}

func decodeMap(src map[string]any, out any, strict bool) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: strict,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(src)
}

//
// ---------- Model conversion ----------
//

func towerMsg(t model.Tower) TowerMsg {
	return TowerMsg{ID: t.ID, Lat: t.Lat, Lng: t.Lng, FreqGHz: t.FreqGHz}
}

// Tower converts the message back to a model value.
func (m TowerMsg) Tower() model.Tower {
	return model.Tower{ID: m.ID, Lat: m.Lat, Lng: m.Lng, FreqGHz: m.FreqGHz}
}

func linkMsg(l model.Link) LinkMsg {
	return LinkMsg{ID: l.ID, TowerA: l.TowerA, TowerB: l.TowerB}
}

// Link converts the message back to a model value.
func (m LinkMsg) Link() model.Link {
	return model.Link{ID: m.ID, TowerA: m.TowerA, TowerB: m.TowerB}
}

func latLngMsg(p core.LatLng) LatLngMsg { return LatLngMsg{Lat: p.Lat, Lng: p.Lng} }

func overlayMsg(g core.OverlayGeometry) *OverlayMsg {
	return &OverlayMsg{
		Center:      latLngMsg(g.Center),
		RadiusM:     g.RadiusM,
		RotationDeg: g.RotationDeg,
		SouthWest:   latLngMsg(g.Bounds.SouthWest),
		NorthEast:   latLngMsg(g.Bounds.NorthEast),
		Ellipse: EllipseMsg{
			CenterX:     g.Ellipse.CenterX,
			CenterY:     g.Ellipse.CenterY,
			SemiMajor:   g.Ellipse.SemiMajor,
			SemiMinor:   g.Ellipse.SemiMinor,
			RotationDeg: g.Ellipse.RotationDeg,
		},
	}
}

func snapshotMsg(s planner.Snapshot) SnapshotMsg {
	out := SnapshotMsg{
		SessionID:       s.SessionID,
		ViewCenter:      latLngMsg(s.View.Center),
		Zoom:            s.View.Zoom,
		Towers:          make([]TowerMsg, 0, len(s.Towers)),
		Links:           make([]LinkMsg, 0, len(s.Links)),
		HighlightLinkID: s.Highlight.LinkID,
	}
	for _, t := range s.Towers {
		out.Towers = append(out.Towers, towerMsg(t))
	}
	for _, l := range s.Links {
		out.Links = append(out.Links, linkMsg(l))
	}
	if s.Pending != nil {
		out.PendingTowerID = s.Pending.ID
	}
	for _, m := range s.Markers {
		out.Markers = append(out.Markers, MarkerMsg{
			Role:    string(m.Role),
			TowerID: m.TowerID,
			Center:  latLngMsg(m.Center),
			RadiusM: m.RadiusM,
		})
	}
	if s.Overlay != nil {
		out.Overlay = overlayMsg(*s.Overlay)
	}
	return out
}

//
// ---------- Encoding ----------
//
// structpb.NewValue only understands map[string]any and []any, so every
// message renders itself into those shapes.

func (m TowerMsg) toMap() map[string]any {
	return map[string]any{"id": m.ID, "lat": m.Lat, "lng": m.Lng, "freq_ghz": m.FreqGHz}
}

func (m LinkMsg) toMap() map[string]any {
	return map[string]any{"id": m.ID, "tower_a": m.TowerA, "tower_b": m.TowerB}
}

func (m LatLngMsg) toMap() map[string]any {
	return map[string]any{"lat": m.Lat, "lng": m.Lng}
}

func (m OverlayMsg) toMap() map[string]any {
	return map[string]any{
		"center":       m.Center.toMap(),
		"radius_m":     m.RadiusM,
		"rotation_deg": m.RotationDeg,
		"south_west":   m.SouthWest.toMap(),
		"north_east":   m.NorthEast.toMap(),
		"ellipse": map[string]any{
			"cx":           m.Ellipse.CenterX,
			"cy":           m.Ellipse.CenterY,
			"rx":           m.Ellipse.SemiMajor,
			"ry":           m.Ellipse.SemiMinor,
			"rotation_deg": m.Ellipse.RotationDeg,
		},
	}
}

func (m MarkerMsg) toMap() map[string]any {
	return map[string]any{
		"role":     m.Role,
		"tower_id": m.TowerID,
		"center":   m.Center.toMap(),
		"radius_m": m.RadiusM,
	}
}

func (m SessionMsg) toMap() map[string]any {
	return map[string]any{"session_id": m.SessionID, "default_freq_ghz": m.DefaultFreqGHz}
}

func (m RemovalMsg) toMap() map[string]any {
	ids := make([]any, 0, len(m.RemovedLinkIDs))
	for _, id := range m.RemovedLinkIDs {
		ids = append(ids, id)
	}
	return map[string]any{
		"tower":            m.Tower.toMap(),
		"removed_link_ids": ids,
		"pending_cleared":  m.PendingCleared,
	}
}

func (m PairingMsg) toMap() map[string]any {
	out := map[string]any{
		"outcome":          m.Outcome,
		"phase":            m.Phase,
		"pending_tower_id": m.PendingTowerID,
	}
	if m.Link != nil {
		out["link"] = m.Link.toMap()
	}
	if m.Notice != "" {
		out["notice"] = m.Notice
	}
	return out
}

func (m LinkGeometryMsg) toMap() map[string]any {
	out := map[string]any{
		"link":             m.Link.toMap(),
		"distance_km":      m.DistanceKm,
		"label":            m.Label,
		"fresnel_radius_m": m.FresnelRadiusM,
	}
	if m.Overlay != nil {
		out["overlay"] = m.Overlay.toMap()
	}
	if m.GeometryError != "" {
		out["geometry_error"] = m.GeometryError
	}
	return out
}

func (m SnapshotMsg) toMap() map[string]any {
	towers := make([]any, 0, len(m.Towers))
	for _, t := range m.Towers {
		towers = append(towers, t.toMap())
	}
	links := make([]any, 0, len(m.Links))
	for _, l := range m.Links {
		links = append(links, l.toMap())
	}
	markers := make([]any, 0, len(m.Markers))
	for _, mk := range m.Markers {
		markers = append(markers, mk.toMap())
	}
	out := map[string]any{
		"session_id":        m.SessionID,
		"view_center":       m.ViewCenter.toMap(),
		"zoom":              m.Zoom,
		"towers":            towers,
		"links":             links,
		"pending_tower_id":  m.PendingTowerID,
		"highlight_link_id": m.HighlightLinkID,
		"markers":           markers,
	}
	if m.Overlay != nil {
		out["overlay"] = m.Overlay.toMap()
	}
	return out
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return s, nil
}
