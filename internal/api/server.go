// Package api exposes planner sessions over gRPC.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jyothishs/rf-outdoor-link-planner/internal/export"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/logging"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/planner"
	"github.com/jyothishs/rf-outdoor-link-planner/model"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server implements LinkPlannerServer on top of a SessionStore.
type Server struct {
	store *SessionStore
	log   logging.Logger
}

var _ LinkPlannerServer = (*Server)(nil)

// NewServer constructs a Server bound to store.
func NewServer(store *SessionStore, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{store: store, log: log}
}

func (s *Server) ensureReady() error {
	if s == nil || s.store == nil {
		return ToStatusError(errors.New("planner server not initialised"))
	}
	return nil
}

// CreateSession opens a new planner session.
func (s *Server) CreateSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var req CreateSessionRequest
	if err := decodeStrict(in, &req); err != nil {
		return nil, ToStatusError(err)
	}

	sess, err := s.store.Create(ctx, req.DefaultFreqGHz)
	if err != nil {
		logging.FromContext(ctx, s.log).Warn(ctx, "CreateSession failed", logging.Err(err))
		return nil, ToStatusError(err)
	}
	return toStruct(SessionMsg{
		SessionID:      sess.ID(),
		DefaultFreqGHz: sess.Config().DefaultFreqGHz,
	}.toMap())
}

// CloseSession discards a session and everything in it.
func (s *Server) CloseSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var req SessionRequest
	if err := decodeStrict(in, &req); err != nil {
		return nil, ToStatusError(err)
	}
	if err := s.store.Close(ctx, req.SessionID); err != nil {
		return nil, ToStatusError(err)
	}
	return toStruct(map[string]any{"session_id": req.SessionID})
}

// AddTower places a tower. Without freq_ghz the session default is used,
// as for a map click.
func (s *Server) AddTower(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req AddTowerRequest
	sess, err := s.decodeWithSession(in, &req, func() string { return req.SessionID })
	if err != nil {
		return nil, err
	}
	if req.Lat == nil || req.Lng == nil {
		return nil, ToStatusError(fmt.Errorf("%w: lat and lng are required", ErrInvalidRequest))
	}

	var t model.Tower
	if req.FreqGHz != nil {
		t, err = sess.AddTowerWithFrequency(ctx, *req.Lat, *req.Lng, *req.FreqGHz)
	} else {
		t, err = sess.AddTower(ctx, *req.Lat, *req.Lng)
	}
	if err != nil {
		return nil, s.fail(ctx, "AddTower", err)
	}
	annotate(ctx, attribute.String("planner.tower_id", t.ID))
	return toStruct(towerMsg(t).toMap())
}

// UpdateFrequency changes a tower's channel.
func (s *Server) UpdateFrequency(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req UpdateFrequencyRequest
	sess, err := s.decodeWithSession(in, &req, func() string { return req.SessionID })
	if err != nil {
		return nil, err
	}
	if req.TowerID == "" || req.FreqGHz == nil {
		return nil, ToStatusError(fmt.Errorf("%w: tower_id and freq_ghz are required", ErrInvalidRequest))
	}

	annotate(ctx, attribute.String("planner.tower_id", req.TowerID))

	t, err := sess.UpdateFrequency(ctx, req.TowerID, *req.FreqGHz)
	if err != nil {
		return nil, s.fail(ctx, "UpdateFrequency", err)
	}
	return toStruct(towerMsg(t).toMap())
}

// RemoveTower deletes a tower and its links.
func (s *Server) RemoveTower(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req TowerRequest
	sess, err := s.decodeWithSession(in, &req, func() string { return req.SessionID })
	if err != nil {
		return nil, err
	}
	if req.TowerID == "" {
		return nil, ToStatusError(fmt.Errorf("%w: tower_id is required", ErrInvalidRequest))
	}

	annotate(ctx, attribute.String("planner.tower_id", req.TowerID))

	res, err := sess.RemoveTower(ctx, req.TowerID)
	if err != nil {
		return nil, s.fail(ctx, "RemoveTower", err)
	}
	annotate(ctx, attribute.Int("planner.links_removed", len(res.Links)))

	msg := RemovalMsg{
		Tower:          towerMsg(res.Tower),
		RemovedLinkIDs: make([]string, 0, len(res.Links)),
		PendingCleared: res.PendingCleared,
	}
	for _, l := range res.Links {
		msg.RemovedLinkIDs = append(msg.RemovedLinkIDs, l.ID)
	}
	return toStruct(msg.toMap())
}

// SelectTower feeds a marker click into the pairing workflow. A frequency
// mismatch is a normal outcome: the reply carries outcome "rejected" and a
// notice for the operator instead of an error status.
func (s *Server) SelectTower(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req TowerRequest
	sess, err := s.decodeWithSession(in, &req, func() string { return req.SessionID })
	if err != nil {
		return nil, err
	}
	if req.TowerID == "" {
		return nil, ToStatusError(fmt.Errorf("%w: tower_id is required", ErrInvalidRequest))
	}

	annotate(ctx, attribute.String("planner.tower_id", req.TowerID))

	res, err := sess.SelectTower(ctx, req.TowerID)
	msg := PairingMsg{
		Outcome:        res.Outcome.String(),
		Phase:          res.State.Phase.String(),
		PendingTowerID: res.State.TowerID,
	}
	switch {
	case err == nil:
	case errors.Is(err, model.ErrFrequencyMismatch):
		msg.Notice = err.Error()
	default:
		return nil, s.fail(ctx, "SelectTower", err)
	}
	if res.Link != nil {
		lm := linkMsg(*res.Link)
		msg.Link = &lm
	}
	annotate(ctx, attribute.String("planner.pairing_outcome", msg.Outcome))
	return toStruct(msg.toMap())
}

// RemoveLink deletes a link at the operator's request.
func (s *Server) RemoveLink(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req LinkRequest
	sess, err := s.decodeWithSession(in, &req, func() string { return req.SessionID })
	if err != nil {
		return nil, err
	}
	if req.LinkID == "" {
		return nil, ToStatusError(fmt.Errorf("%w: link_id is required", ErrInvalidRequest))
	}

	annotate(ctx, attribute.String("planner.link_id", req.LinkID))

	l, err := sess.RemoveLink(ctx, req.LinkID)
	if err != nil {
		return nil, s.fail(ctx, "RemoveLink", err)
	}
	return toStruct(linkMsg(l).toMap())
}

// HighlightLink records a link click and returns the updated snapshot. An
// empty link_id clears the highlight.
func (s *Server) HighlightLink(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req LinkRequest
	sess, err := s.decodeWithSession(in, &req, func() string { return req.SessionID })
	if err != nil {
		return nil, err
	}

	if req.LinkID == "" {
		sess.ClearHighlight()
	} else if err := sess.HighlightLink(ctx, req.LinkID); err != nil {
		return nil, s.fail(ctx, "HighlightLink", err)
	}
	return toStruct(snapshotMsg(sess.Snapshot()).toMap())
}

// GetSnapshot returns everything the rendering surface draws.
func (s *Server) GetSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SessionRequest
	sess, err := s.decodeWithSession(in, &req, func() string { return req.SessionID })
	if err != nil {
		return nil, err
	}
	return toStruct(snapshotMsg(sess.Snapshot()).toMap())
}

// GetLinkGeometry returns distance, label, Fresnel radius and overlay for a
// link. Degenerate geometry is reported in geometry_error.
func (s *Server) GetLinkGeometry(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req LinkRequest
	sess, err := s.decodeWithSession(in, &req, func() string { return req.SessionID })
	if err != nil {
		return nil, err
	}
	if req.LinkID == "" {
		return nil, ToStatusError(fmt.Errorf("%w: link_id is required", ErrInvalidRequest))
	}

	r, err := sess.LinkReport(req.LinkID)
	if err != nil {
		return nil, s.fail(ctx, "GetLinkGeometry", err)
	}
	return toStruct(linkGeometryMsg(r).toMap())
}

func linkGeometryMsg(r planner.LinkReport) LinkGeometryMsg {
	msg := LinkGeometryMsg{
		Link:           linkMsg(r.Link),
		DistanceKm:     r.DistanceKm,
		Label:          r.Label,
		FresnelRadiusM: r.FresnelRadiusM,
	}
	if r.GeometryErr != nil {
		msg.GeometryError = r.GeometryErr.Error()
	} else {
		msg.Overlay = overlayMsg(r.Overlay)
	}
	return msg
}

// ExportGeoJSON renders the session as a GeoJSON FeatureCollection. The
// reply struct is the collection document itself.
func (s *Server) ExportGeoJSON(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SessionRequest
	sess, err := s.decodeWithSession(in, &req, func() string { return req.SessionID })
	if err != nil {
		return nil, err
	}

	snap := sess.Snapshot()
	reports := make([]planner.LinkReport, 0, len(snap.Links))
	for _, l := range snap.Links {
		r, err := sess.LinkReport(l.ID)
		if err != nil {
			// removed after the snapshot was taken
			continue
		}
		reports = append(reports, r)
	}

	raw, err := json.Marshal(export.FeatureCollection(snap, reports))
	if err != nil {
		return nil, s.fail(ctx, "ExportGeoJSON", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, s.fail(ctx, "ExportGeoJSON", err)
	}
	return out, nil
}

// decodeWithSession decodes a request and resolves its session. sessionID is
// evaluated after decoding.
func (s *Server) decodeWithSession(in *structpb.Struct, req any, sessionID func() string) (*planner.Session, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if err := decodeStrict(in, req); err != nil {
		return nil, ToStatusError(err)
	}
	sess, err := s.store.Get(sessionID())
	if err != nil {
		return nil, ToStatusError(err)
	}
	return sess, nil
}

func (s *Server) fail(ctx context.Context, op string, err error) error {
	logging.FromContext(ctx, s.log).Warn(ctx, op+" failed", logging.Err(err))
	return ToStatusError(err)
}
