package kb

import (
	"fmt"
	"sync"

	"github.com/jyothishs/rf-outdoor-link-planner/model"
)

// TowerRegistry owns tower identity and lifetime.
//
// It is safe for concurrent use, but cascades that span towers and links are
// coordinated by the caller (see planner.Session).
type TowerRegistry struct {
	mu sync.RWMutex

	towers map[string]*model.Tower
	order  []string
	newID  func() string
}

// NewTowerRegistry constructs an empty registry.
func NewTowerRegistry(opts ...Option) *TowerRegistry {
	o := buildOptions(opts)
	return &TowerRegistry{
		towers: make(map[string]*model.Tower),
		newID:  o.newID,
	}
}

// Add creates a tower at (lat, lng) operating at freqGHz and assigns it a
// fresh ID.
func (r *TowerRegistry) Add(lat, lng, freqGHz float64) (model.Tower, error) {
	if err := model.ValidateCoordinates(lat, lng); err != nil {
		return model.Tower{}, err
	}
	if err := model.ValidateFrequency(freqGHz); err != nil {
		return model.Tower{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	if _, exists := r.towers[id]; exists {
		return model.Tower{}, fmt.Errorf("tower ID %q already issued", id)
	}
	t := &model.Tower{ID: id, Lat: lat, Lng: lng, FreqGHz: freqGHz}
	r.towers[id] = t
	r.order = append(r.order, id)
	return *t, nil
}

// Get returns the tower with the given ID.
func (r *TowerRegistry) Get(id string) (model.Tower, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.towers[id]
	if !ok {
		return model.Tower{}, fmt.Errorf("%w: tower %q", model.ErrNotFound, id)
	}
	return *t, nil
}

// List returns a snapshot of all towers in creation order.
func (r *TowerRegistry) List() []model.Tower {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Tower, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.towers[id])
	}
	return out
}

// Len returns the number of towers.
func (r *TowerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.towers)
}

// UpdateFrequency changes a tower's channel and returns the updated tower.
func (r *TowerRegistry) UpdateFrequency(id string, freqGHz float64) (model.Tower, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.towers[id]
	if !ok {
		return model.Tower{}, fmt.Errorf("%w: tower %q", model.ErrNotFound, id)
	}
	if err := model.ValidateFrequency(freqGHz); err != nil {
		return model.Tower{}, err
	}
	t.FreqGHz = freqGHz
	return *t, nil
}

// Remove deletes a tower and returns it. Links are not touched here.
func (r *TowerRegistry) Remove(id string) (model.Tower, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.towers[id]
	if !ok {
		return model.Tower{}, fmt.Errorf("%w: tower %q", model.ErrNotFound, id)
	}
	delete(r.towers, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *t, nil
}
