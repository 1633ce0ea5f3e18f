package api

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a typed wrapper over a LinkPlannerService connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, req map[string]any, out any, opts ...grpc.CallOption) error {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	reply := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, reply, opts...); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := decodeLenient(reply, out); err != nil {
		return fmt.Errorf("decode %s reply: %w", method, err)
	}
	return nil
}

// CreateSession opens a session. Zero defaultFreqGHz keeps the server default.
func (c *Client) CreateSession(ctx context.Context, defaultFreqGHz float64, opts ...grpc.CallOption) (SessionMsg, error) {
	req := map[string]any{}
	if defaultFreqGHz != 0 {
		req["default_freq_ghz"] = defaultFreqGHz
	}
	var out SessionMsg
	err := c.invoke(ctx, MethodCreateSession, req, &out, opts...)
	return out, err
}

// CloseSession discards a session.
func (c *Client) CloseSession(ctx context.Context, sessionID string, opts ...grpc.CallOption) error {
	return c.invoke(ctx, MethodCloseSession, map[string]any{"session_id": sessionID}, nil, opts...)
}

// AddTower places a tower on the session's default channel.
func (c *Client) AddTower(ctx context.Context, sessionID string, lat, lng float64, opts ...grpc.CallOption) (TowerMsg, error) {
	var out TowerMsg
	err := c.invoke(ctx, MethodAddTower, map[string]any{
		"session_id": sessionID,
		"lat":        lat,
		"lng":        lng,
	}, &out, opts...)
	return out, err
}

// AddTowerWithFrequency places a tower on an explicit channel.
func (c *Client) AddTowerWithFrequency(ctx context.Context, sessionID string, lat, lng, freqGHz float64, opts ...grpc.CallOption) (TowerMsg, error) {
	var out TowerMsg
	err := c.invoke(ctx, MethodAddTower, map[string]any{
		"session_id": sessionID,
		"lat":        lat,
		"lng":        lng,
		"freq_ghz":   freqGHz,
	}, &out, opts...)
	return out, err
}

// UpdateFrequency changes a tower's channel.
func (c *Client) UpdateFrequency(ctx context.Context, sessionID, towerID string, freqGHz float64, opts ...grpc.CallOption) (TowerMsg, error) {
	var out TowerMsg
	err := c.invoke(ctx, MethodUpdateFrequency, map[string]any{
		"session_id": sessionID,
		"tower_id":   towerID,
		"freq_ghz":   freqGHz,
	}, &out, opts...)
	return out, err
}

// RemoveTower deletes a tower and its links.
func (c *Client) RemoveTower(ctx context.Context, sessionID, towerID string, opts ...grpc.CallOption) (RemovalMsg, error) {
	var out RemovalMsg
	err := c.invoke(ctx, MethodRemoveTower, map[string]any{
		"session_id": sessionID,
		"tower_id":   towerID,
	}, &out, opts...)
	return out, err
}

// SelectTower clicks a tower marker.
func (c *Client) SelectTower(ctx context.Context, sessionID, towerID string, opts ...grpc.CallOption) (PairingMsg, error) {
	var out PairingMsg
	err := c.invoke(ctx, MethodSelectTower, map[string]any{
		"session_id": sessionID,
		"tower_id":   towerID,
	}, &out, opts...)
	return out, err
}

// RemoveLink deletes a link.
func (c *Client) RemoveLink(ctx context.Context, sessionID, linkID string, opts ...grpc.CallOption) (LinkMsg, error) {
	var out LinkMsg
	err := c.invoke(ctx, MethodRemoveLink, map[string]any{
		"session_id": sessionID,
		"link_id":    linkID,
	}, &out, opts...)
	return out, err
}

// HighlightLink clicks a link. An empty linkID clears the highlight.
func (c *Client) HighlightLink(ctx context.Context, sessionID, linkID string, opts ...grpc.CallOption) (SnapshotMsg, error) {
	var out SnapshotMsg
	err := c.invoke(ctx, MethodHighlightLink, map[string]any{
		"session_id": sessionID,
		"link_id":    linkID,
	}, &out, opts...)
	return out, err
}

// GetSnapshot fetches the session's rendering state.
func (c *Client) GetSnapshot(ctx context.Context, sessionID string, opts ...grpc.CallOption) (SnapshotMsg, error) {
	var out SnapshotMsg
	err := c.invoke(ctx, MethodGetSnapshot, map[string]any{"session_id": sessionID}, &out, opts...)
	return out, err
}

// GetLinkGeometry fetches distance, label and overlay for a link.
func (c *Client) GetLinkGeometry(ctx context.Context, sessionID, linkID string, opts ...grpc.CallOption) (LinkGeometryMsg, error) {
	var out LinkGeometryMsg
	err := c.invoke(ctx, MethodGetLinkGeometry, map[string]any{
		"session_id": sessionID,
		"link_id":    linkID,
	}, &out, opts...)
	return out, err
}

// ExportGeoJSON fetches the session as a GeoJSON FeatureCollection.
func (c *Client) ExportGeoJSON(ctx context.Context, sessionID string, opts ...grpc.CallOption) (*geojson.FeatureCollection, error) {
	in, err := structpb.NewStruct(map[string]any{"session_id": sessionID})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", MethodExportGeoJSON, err)
	}
	reply := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(MethodExportGeoJSON), in, reply, opts...); err != nil {
		return nil, err
	}
	raw, err := protojson.Marshal(reply)
	if err != nil {
		return nil, fmt.Errorf("decode %s reply: %w", MethodExportGeoJSON, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s reply: %w", MethodExportGeoJSON, err)
	}
	return fc, nil
}
