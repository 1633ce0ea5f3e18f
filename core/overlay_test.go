package core

import (
	"errors"
	"math"
	"testing"

	"github.com/jyothishs/rf-outdoor-link-planner/model"
)

func TestBuildOverlay(t *testing.T) {
	a := model.Tower{ID: "a", Lat: 28.6, Lng: 77.2, FreqGHz: 2.4}
	b := model.Tower{ID: "b", Lat: 19.0, Lng: 72.8, FreqGHz: 2.4}

	g, err := BuildOverlay(a, b)
	if err != nil {
		t.Fatalf("BuildOverlay error: %v", err)
	}

	if math.Abs(g.Center.Lat-23.8) > 1e-9 || math.Abs(g.Center.Lng-75.0) > 1e-9 {
		t.Errorf("center = %+v, want {23.8 75}", g.Center)
	}
	if math.Abs(g.Bounds.SouthWest.Lat-(g.Center.Lat-0.01)) > 1e-12 ||
		math.Abs(g.Bounds.NorthEast.Lng-(g.Center.Lng+0.01)) > 1e-12 {
		t.Errorf("bounds = %+v, want ±0.01° around %+v", g.Bounds, g.Center)
	}

	wantRotation := BearingAngle(PositionOf(a), PositionOf(b))
	if g.RotationDeg != wantRotation || g.Ellipse.RotationDeg != wantRotation {
		t.Errorf("rotation = %v/%v, want %v", g.RotationDeg, g.Ellipse.RotationDeg, wantRotation)
	}
	if g.Ellipse.SemiMajor != 0.5 || g.Ellipse.CenterX != 0.5 || g.Ellipse.CenterY != 0.5 {
		t.Errorf("ellipse = %+v, want centred with semi-major 0.5", g.Ellipse)
	}
	if math.Abs(g.Ellipse.SemiMinor-g.RadiusM/1000) > 1e-12 {
		t.Errorf("semi-minor = %v, want radius/1000 = %v", g.Ellipse.SemiMinor, g.RadiusM/1000)
	}
}

func TestBuildOverlay_CoincidentTowers(t *testing.T) {
	a := model.Tower{ID: "a", Lat: 1, Lng: 1, FreqGHz: 2.4}
	if _, err := BuildOverlay(a, a); !errors.Is(err, model.ErrDomain) {
		t.Fatalf("err = %v, want ErrDomain", err)
	}
}
