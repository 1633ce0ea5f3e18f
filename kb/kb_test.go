package kb

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jyothishs/rf-outdoor-link-planner/model"
)

func sequentialIDs(prefix string) Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	})
}

func TestTowerRegistry_AddAndGet(t *testing.T) {
	reg := NewTowerRegistry()
	tw, err := reg.Add(28.6, 77.2, 2.4)
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if tw.ID == "" {
		t.Fatalf("Add returned empty ID")
	}

	got, err := reg.Get(tw.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != tw {
		t.Fatalf("Get = %+v, want %+v", got, tw)
	}
}

func TestTowerRegistry_AddValidation(t *testing.T) {
	reg := NewTowerRegistry()
	cases := []struct {
		name          string
		lat, lng, frq float64
	}{
		{"lat too high", 90.5, 0, 2.4},
		{"lat too low", -91, 0, 2.4},
		{"lng too high", 0, 181, 2.4},
		{"lng too low", 0, -180.01, 2.4},
		{"zero freq", 0, 0, 0},
		{"negative freq", 0, 0, -5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := reg.Add(tc.lat, tc.lng, tc.frq); !errors.Is(err, model.ErrInvalidValue) {
				t.Fatalf("Add err = %v, want ErrInvalidValue", err)
			}
		})
	}
	if reg.Len() != 0 {
		t.Fatalf("Len = %d after rejected adds, want 0", reg.Len())
	}
}

func TestTowerRegistry_IDsNeverReused(t *testing.T) {
	reg := NewTowerRegistry()
	seen := make(map[string]bool)
	for i := range 50 {
		tw, err := reg.Add(float64(i%90), 0, 2.4)
		if err != nil {
			t.Fatalf("Add error: %v", err)
		}
		if seen[tw.ID] {
			t.Fatalf("ID %q issued twice", tw.ID)
		}
		seen[tw.ID] = true
		if i%2 == 0 {
			if _, err := reg.Remove(tw.ID); err != nil {
				t.Fatalf("Remove error: %v", err)
			}
		}
	}
}

func TestTowerRegistry_RejectsRepeatedGeneratorID(t *testing.T) {
	reg := NewTowerRegistry(WithIDGenerator(func() string { return "same" }))
	if _, err := reg.Add(0, 0, 2.4); err != nil {
		t.Fatalf("first Add error: %v", err)
	}
	if _, err := reg.Add(1, 1, 2.4); err == nil {
		t.Fatalf("expected repeated ID to be rejected")
	}
}

func TestTowerRegistry_UpdateFrequency(t *testing.T) {
	reg := NewTowerRegistry()
	tw, _ := reg.Add(0, 0, 2.4)

	updated, err := reg.UpdateFrequency(tw.ID, 5.8)
	if err != nil {
		t.Fatalf("UpdateFrequency error: %v", err)
	}
	if updated.FreqGHz != 5.8 {
		t.Fatalf("FreqGHz = %v, want 5.8", updated.FreqGHz)
	}

	if _, err := reg.UpdateFrequency(tw.ID, 0); !errors.Is(err, model.ErrInvalidValue) {
		t.Fatalf("zero frequency err = %v, want ErrInvalidValue", err)
	}
	if _, err := reg.UpdateFrequency("missing", 5); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown id err = %v, want ErrNotFound", err)
	}
	if got, _ := reg.Get(tw.ID); got.FreqGHz != 5.8 {
		t.Fatalf("frequency changed by failed update: %v", got.FreqGHz)
	}
}

func TestTowerRegistry_RemoveAndListOrder(t *testing.T) {
	reg := NewTowerRegistry(sequentialIDs("t"))
	for i := range 3 {
		if _, err := reg.Add(float64(i), float64(i), 2.4); err != nil {
			t.Fatalf("Add error: %v", err)
		}
	}
	if _, err := reg.Remove("t-2"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := reg.Remove("t-2"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("second Remove err = %v, want ErrNotFound", err)
	}

	list := reg.List()
	if len(list) != 2 || list[0].ID != "t-1" || list[1].ID != "t-3" {
		t.Fatalf("List = %+v, want t-1, t-3", list)
	}
}

func TestLinkRegistry_AddValidation(t *testing.T) {
	reg := NewLinkRegistry()
	if _, err := reg.Add("a", "a"); !errors.Is(err, model.ErrInvalidValue) {
		t.Fatalf("self link err = %v, want ErrInvalidValue", err)
	}
	if _, err := reg.Add("", "b"); !errors.Is(err, model.ErrInvalidValue) {
		t.Fatalf("empty endpoint err = %v, want ErrInvalidValue", err)
	}
}

func TestLinkRegistry_AddPreservesOrder(t *testing.T) {
	reg := NewLinkRegistry()
	l, err := reg.Add("a", "b")
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if l.TowerA != "a" || l.TowerB != "b" {
		t.Fatalf("link endpoints = %q,%q want a,b", l.TowerA, l.TowerB)
	}
	got, err := reg.Get(l.ID)
	if err != nil || got != l {
		t.Fatalf("Get = %+v, %v", got, err)
	}
}

func TestLinkRegistry_RemoveForTower(t *testing.T) {
	reg := NewLinkRegistry(sequentialIDs("l"))
	mustAdd := func(a, b string) {
		t.Helper()
		if _, err := reg.Add(a, b); err != nil {
			t.Fatalf("Add(%s,%s) error: %v", a, b, err)
		}
	}
	mustAdd("a", "b") // l-1
	mustAdd("c", "a") // l-2
	mustAdd("b", "c") // l-3
	mustAdd("a", "d") // l-4

	if n := len(reg.ForTower("a")); n != 3 {
		t.Fatalf("ForTower(a) = %d links, want 3", n)
	}

	removed := reg.RemoveForTower("a")
	if len(removed) != 3 {
		t.Fatalf("RemoveForTower removed %d, want 3", len(removed))
	}
	for i, want := range []string{"l-1", "l-2", "l-4"} {
		if removed[i].ID != want {
			t.Fatalf("removed[%d] = %q, want %q", i, removed[i].ID, want)
		}
	}
	for _, l := range reg.List() {
		if l.References("a") {
			t.Fatalf("link %q still references removed tower", l.ID)
		}
	}
	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want 1", reg.Len())
	}
	if got := reg.ForTower("d"); len(got) != 0 {
		t.Fatalf("ForTower(d) = %+v, want none", got)
	}
	if got := reg.RemoveForTower("a"); got != nil {
		t.Fatalf("second RemoveForTower = %+v, want nil", got)
	}
}

func TestLinkRegistry_Remove(t *testing.T) {
	reg := NewLinkRegistry()
	l, _ := reg.Add("a", "b")
	if _, err := reg.Remove(l.ID); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := reg.Remove(l.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("second Remove err = %v, want ErrNotFound", err)
	}
	if len(reg.ForTower("a")) != 0 || len(reg.ForTower("b")) != 0 {
		t.Fatalf("adjacency not cleaned up")
	}
}

func TestTowerRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewTowerRegistry()
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tw, err := reg.Add(float64(i), float64(i), 2.4)
			if err != nil {
				t.Errorf("Add error: %v", err)
				return
			}
			_ = reg.List()
			if _, err := reg.UpdateFrequency(tw.ID, 5); err != nil {
				t.Errorf("UpdateFrequency error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if reg.Len() != 16 {
		t.Fatalf("Len = %d, want 16", reg.Len())
	}
}
