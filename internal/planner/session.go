// Package planner implements the link-planning session: tower and link
// registries, the two-click pairing workflow and the geometry queries the
// rendering surface needs.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jyothishs/rf-outdoor-link-planner/core"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/logging"
	"github.com/jyothishs/rf-outdoor-link-planner/kb"
	"github.com/jyothishs/rf-outdoor-link-planner/model"
)

// MetricsRecorder receives entity-count deltas and pairing outcomes. Deltas
// let several sessions share one set of gauges.
type MetricsRecorder interface {
	AdjustCounts(towersDelta, linksDelta int)
	RecordPairing(outcome string)
}

// Session owns one operator's towers, links, pairing state and highlight.
// Sessions never share state; construct one per rendered view.
//
// All mutators take the session lock, so events arriving from concurrent
// goroutines are applied one at a time.
type Session struct {
	mu sync.Mutex

	id  string
	cfg Config

	towers *kb.TowerRegistry
	links  *kb.LinkRegistry

	pairing       PairingState
	highlightLink string

	log     logging.Logger
	metrics MetricsRecorder

	// counts last reported to metrics
	reportedTowers int
	reportedLinks  int
	closed         bool
}

// SessionOption customises Session construction.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	id       string
	log      logging.Logger
	metrics  MetricsRecorder
	registry []kb.Option
}

// WithSessionID fixes the session identifier instead of generating one.
func WithSessionID(id string) SessionOption {
	return func(o *sessionOptions) { o.id = id }
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) SessionOption {
	return func(o *sessionOptions) { o.log = l }
}

// WithMetricsRecorder attaches an optional metrics sink.
func WithMetricsRecorder(m MetricsRecorder) SessionOption {
	return func(o *sessionOptions) { o.metrics = m }
}

// WithRegistryOptions passes options through to both registries.
func WithRegistryOptions(opts ...kb.Option) SessionOption {
	return func(o *sessionOptions) { o.registry = append(o.registry, opts...) }
}

// NewSession constructs an empty session in the Idle pairing state.
func NewSession(cfg Config, opts ...SessionOption) (*Session, error) {
	cfg = cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o sessionOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	if o.log == nil {
		o.log = logging.Noop()
	}

	return &Session{
		id:      o.id,
		cfg:     cfg,
		towers:  kb.NewTowerRegistry(o.registry...),
		links:   kb.NewLinkRegistry(o.registry...),
		pairing: Idle(),
		log:     o.log.With(logging.String("session_id", o.id)),
		metrics: o.metrics,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Config returns the session's effective configuration.
func (s *Session) Config() Config { return s.cfg }

//
// ---------- Towers ----------
//

// AddTower places a tower at (lat, lng) on the session's default channel.
// This is the map-click handler.
func (s *Session) AddTower(ctx context.Context, lat, lng float64) (model.Tower, error) {
	return s.AddTowerWithFrequency(ctx, lat, lng, s.cfg.DefaultFreqGHz)
}

// AddTowerWithFrequency places a tower with an explicit channel.
func (s *Session) AddTowerWithFrequency(ctx context.Context, lat, lng, freqGHz float64) (model.Tower, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.towers.Add(lat, lng, freqGHz)
	if err != nil {
		return model.Tower{}, err
	}
	s.updateMetricsLocked()

	s.log.Debug(ctx, "tower added",
		logging.String("tower_id", t.ID),
		logging.Float64("lat", t.Lat),
		logging.Float64("lng", t.Lng),
		logging.Float64("freq_ghz", t.FreqGHz),
	)
	return t, nil
}

// UpdateFrequency changes a tower's channel. Existing links that reference
// the tower are left as they are, even if the channels now differ.
func (s *Session) UpdateFrequency(ctx context.Context, towerID string, freqGHz float64) (model.Tower, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.towers.UpdateFrequency(towerID, freqGHz)
	if err != nil {
		return model.Tower{}, err
	}

	s.log.Debug(ctx, "tower frequency updated",
		logging.String("tower_id", t.ID),
		logging.Float64("freq_ghz", t.FreqGHz),
	)
	return t, nil
}

// TowerRemoval reports what a RemoveTower call took with it.
type TowerRemoval struct {
	Tower          model.Tower
	Links          []model.Link
	PendingCleared bool
}

// RemoveTower deletes a tower and cascades: every link referencing it is
// removed, and a pending selection or link highlight pointing at it is
// cleared.
func (s *Session) RemoveTower(ctx context.Context, towerID string) (TowerRemoval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.towers.Remove(towerID)
	if err != nil {
		return TowerRemoval{}, err
	}
	res := TowerRemoval{Tower: t, Links: s.links.RemoveForTower(towerID)}

	if s.pairing.IsPending() && s.pairing.TowerID == towerID {
		s.pairing = Idle()
		res.PendingCleared = true
	}
	for _, l := range res.Links {
		if l.ID == s.highlightLink {
			s.highlightLink = ""
		}
	}
	s.updateMetricsLocked()

	s.log.Debug(ctx, "tower removed",
		logging.String("tower_id", t.ID),
		logging.Int("links_removed", len(res.Links)),
	)
	return res, nil
}

// Towers returns a snapshot of all towers.
func (s *Session) Towers() []model.Tower {
	return s.towers.List()
}

// Tower returns a single tower by ID.
func (s *Session) Tower(id string) (model.Tower, error) {
	return s.towers.Get(id)
}

//
// ---------- Pairing ----------
//

// PairingResult is the observable effect of one SelectTower call.
type PairingResult struct {
	Outcome PairingOutcome
	State   PairingState

	// Link is set when Outcome is OutcomeLinked.
	Link *model.Link
}

// SelectTower feeds a marker click into the pairing workflow.
//
// A rejected pairing returns the machine to Idle and yields a
// *model.FrequencyMismatchError (errors.Is ErrFrequencyMismatch) alongside
// a result whose Outcome is OutcomeRejected. An unknown tower yields
// model.ErrNotFound and leaves the state unchanged.
func (s *Session) SelectTower(ctx context.Context, towerID string) (PairingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	selected, err := s.towers.Get(towerID)
	if err != nil {
		return PairingResult{State: s.pairing}, err
	}

	var pending model.Tower
	if s.pairing.IsPending() {
		pending, err = s.towers.Get(s.pairing.TowerID)
		if err != nil {
			// Cascade keeps this from happening; recover to Idle rather
			// than wedging the session.
			s.log.Warn(ctx, "pending tower vanished; resetting pairing",
				logging.String("tower_id", s.pairing.TowerID),
			)
			s.pairing = Idle()
		}
	}

	tr := Step(s.pairing, pending, selected)
	res := PairingResult{Outcome: tr.Outcome, State: tr.Next}

	switch tr.Outcome {
	case OutcomeLinked:
		link, err := s.links.Add(tr.From.ID, tr.To.ID)
		if err != nil {
			s.pairing = Idle()
			return PairingResult{State: s.pairing}, err
		}
		res.Link = &link
		s.updateMetricsLocked()
		s.log.Debug(ctx, "link created",
			logging.String("link_id", link.ID),
			logging.String("tower_a", link.TowerA),
			logging.String("tower_b", link.TowerB),
		)
	case OutcomeRejected:
		s.log.Info(ctx, "pairing rejected",
			logging.String("tower_a", tr.From.ID),
			logging.String("tower_b", tr.To.ID),
			logging.Float64("freq_a_ghz", tr.From.FreqGHz),
			logging.Float64("freq_b_ghz", tr.To.FreqGHz),
		)
	}

	s.pairing = tr.Next
	if s.metrics != nil {
		s.metrics.RecordPairing(tr.Outcome.String())
	}
	return res, tr.Err
}

// PendingSelection returns the tower awaiting a partner, if any.
func (s *Session) PendingSelection() (model.Tower, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

// PairingState returns the current pairing state.
func (s *Session) PairingState() PairingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairing
}

func (s *Session) pendingLocked() (model.Tower, bool) {
	if !s.pairing.IsPending() {
		return model.Tower{}, false
	}
	t, err := s.towers.Get(s.pairing.TowerID)
	if err != nil {
		return model.Tower{}, false
	}
	return t, true
}

//
// ---------- Links ----------
//

// Links returns a snapshot of all links.
func (s *Session) Links() []model.Link {
	return s.links.List()
}

// Link returns a single link by ID.
func (s *Session) Link(id string) (model.Link, error) {
	return s.links.Get(id)
}

// RemoveLink deletes a link at the operator's request.
func (s *Session) RemoveLink(ctx context.Context, linkID string) (model.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.links.Remove(linkID)
	if err != nil {
		return model.Link{}, err
	}
	if s.highlightLink == linkID {
		s.highlightLink = ""
	}
	s.updateMetricsLocked()

	s.log.Debug(ctx, "link removed", logging.String("link_id", linkID))
	return l, nil
}

// HighlightLink records a link click. It is not a domain mutation.
func (s *Session) HighlightLink(ctx context.Context, linkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.links.Get(linkID); err != nil {
		return err
	}
	s.highlightLink = linkID
	return nil
}

// ClearHighlight drops the link highlight.
func (s *Session) ClearHighlight() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.highlightLink = ""
}

// Highlight returns the current presentational selection.
func (s *Session) Highlight() Highlight {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highlightLocked()
}

func (s *Session) highlightLocked() Highlight {
	h := Highlight{LinkID: s.highlightLink}
	if s.pairing.IsPending() {
		h.TowerID = s.pairing.TowerID
	}
	return h
}

//
// ---------- Geometry queries ----------
//

// endpoints resolves a link's towers through the registry. Caller must
// hold s.mu.
func (s *Session) endpoints(linkID string) (model.Link, model.Tower, model.Tower, error) {
	l, err := s.links.Get(linkID)
	if err != nil {
		return model.Link{}, model.Tower{}, model.Tower{}, err
	}
	a, err := s.towers.Get(l.TowerA)
	if err != nil {
		return model.Link{}, model.Tower{}, model.Tower{}, fmt.Errorf("link %q endpoint A: %w", linkID, err)
	}
	b, err := s.towers.Get(l.TowerB)
	if err != nil {
		return model.Link{}, model.Tower{}, model.Tower{}, fmt.Errorf("link %q endpoint B: %w", linkID, err)
	}
	return l, a, b, nil
}

// DistanceKm returns the great-circle length of a link in kilometres.
func (s *Session) DistanceKm(linkID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, a, b, err := s.endpoints(linkID)
	if err != nil {
		return 0, err
	}
	return core.DistanceBetween(core.PositionOf(a), core.PositionOf(b)) / 1000, nil
}

// FresnelRadiusM returns the first Fresnel-zone radius of a link in metres.
func (s *Session) FresnelRadiusM(linkID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, a, b, err := s.endpoints(linkID)
	if err != nil {
		return 0, err
	}
	return core.FirstFresnelRadius(a, b)
}

// OverlayGeometry returns the clearance overlay for a link.
func (s *Session) OverlayGeometry(linkID string) (core.OverlayGeometry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, a, b, err := s.endpoints(linkID)
	if err != nil {
		return core.OverlayGeometry{}, err
	}
	return core.BuildOverlay(a, b)
}

// LinkLabel returns the tooltip text for a link, using tower A's current
// channel.
func (s *Session) LinkLabel(linkID string) (string, error) {
	r, err := s.LinkReport(linkID)
	if err != nil {
		return "", err
	}
	return r.Label, nil
}

// LinkReport computes distance, label and overlay for a link. Degenerate
// geometry is reported in GeometryErr rather than failing the call, so the
// label is always available for an existing link.
func (s *Session) LinkReport(linkID string) (LinkReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, a, b, err := s.endpoints(linkID)
	if err != nil {
		return LinkReport{}, err
	}

	km := core.DistanceBetween(core.PositionOf(a), core.PositionOf(b)) / 1000
	r := LinkReport{
		Link:       l,
		TowerA:     a,
		TowerB:     b,
		DistanceKm: km,
		Label:      FormatLinkLabel(km, a.FreqGHz),
	}

	overlay, err := core.BuildOverlay(a, b)
	if err != nil {
		if !errors.Is(err, model.ErrDomain) {
			return LinkReport{}, err
		}
		r.GeometryErr = err
		return r, nil
	}
	r.FresnelRadiusM = overlay.RadiusM
	r.Overlay = overlay
	return r, nil
}

//
// ---------- Snapshot / lifecycle ----------
//

// Snapshot returns a consistent read-only view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID: s.id,
		View:      s.cfg.View,
		Towers:    s.towers.List(),
		Links:     s.links.List(),
		Highlight: s.highlightLocked(),
	}

	if t, ok := s.pendingLocked(); ok {
		snap.Pending = &t
		snap.Markers = append(snap.Markers, Marker{
			Role:    MarkerPending,
			TowerID: t.ID,
			Center:  core.PositionOf(t),
			RadiusM: HighlightRadiusM,
		})
	}

	if s.highlightLink != "" {
		if _, a, b, err := s.endpoints(s.highlightLink); err == nil {
			for _, t := range []model.Tower{a, b} {
				snap.Markers = append(snap.Markers, Marker{
					Role:    MarkerLinkEndpoint,
					TowerID: t.ID,
					Center:  core.PositionOf(t),
					RadiusM: HighlightRadiusM,
				})
			}
			if overlay, err := core.BuildOverlay(a, b); err == nil {
				snap.Overlay = &overlay
			}
		}
	}
	return snap
}

// Close releases the session's contribution to shared metrics. The session
// remains readable but should not be mutated afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.metrics != nil {
		s.metrics.AdjustCounts(-s.reportedTowers, -s.reportedLinks)
	}
	s.reportedTowers, s.reportedLinks = 0, 0
}

// updateMetricsLocked pushes count deltas since the last report. Caller must
// hold s.mu.
func (s *Session) updateMetricsLocked() {
	if s.metrics == nil || s.closed {
		return
	}
	towers, links := s.towers.Len(), s.links.Len()
	dt, dl := towers-s.reportedTowers, links-s.reportedLinks
	if dt == 0 && dl == 0 {
		return
	}
	s.metrics.AdjustCounts(dt, dl)
	s.reportedTowers, s.reportedLinks = towers, links
}
