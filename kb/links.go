package kb

import (
	"fmt"
	"sync"

	"github.com/jyothishs/rf-outdoor-link-planner/model"
)

// LinkRegistry owns link identity and keeps a per-tower adjacency index so
// cascades are a single lookup.
type LinkRegistry struct {
	mu sync.RWMutex

	links        map[string]*model.Link
	linksByTower map[string]map[string]*model.Link
	order        []string
	newID        func() string
}

// NewLinkRegistry constructs an empty registry.
func NewLinkRegistry(opts ...Option) *LinkRegistry {
	o := buildOptions(opts)
	return &LinkRegistry{
		links:        make(map[string]*model.Link),
		linksByTower: make(map[string]map[string]*model.Link),
		newID:        o.newID,
	}
}

// Add creates a link from towerA to towerB. The registry does not check
// that the towers exist or share a channel; that is the pairing workflow's
// job.
func (r *LinkRegistry) Add(towerA, towerB string) (model.Link, error) {
	if towerA == "" || towerB == "" {
		return model.Link{}, fmt.Errorf("%w: link endpoints must be set", model.ErrInvalidValue)
	}
	if towerA == towerB {
		return model.Link{}, fmt.Errorf("%w: link endpoints must differ, got %q twice", model.ErrInvalidValue, towerA)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	if _, exists := r.links[id]; exists {
		return model.Link{}, fmt.Errorf("link ID %q already issued", id)
	}
	l := &model.Link{ID: id, TowerA: towerA, TowerB: towerB}
	r.links[id] = l
	r.order = append(r.order, id)
	r.indexLocked(towerA, l)
	r.indexLocked(towerB, l)
	return *l, nil
}

// Get returns the link with the given ID.
func (r *LinkRegistry) Get(id string) (model.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.links[id]
	if !ok {
		return model.Link{}, fmt.Errorf("%w: link %q", model.ErrNotFound, id)
	}
	return *l, nil
}

// List returns a snapshot of all links in creation order.
func (r *LinkRegistry) List() []model.Link {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Link, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.links[id])
	}
	return out
}

// Len returns the number of links.
func (r *LinkRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.links)
}

// ForTower returns the links that reference towerID, in creation order.
func (r *LinkRegistry) ForTower(towerID string) []model.Link {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adj := r.linksByTower[towerID]
	if len(adj) == 0 {
		return nil
	}
	out := make([]model.Link, 0, len(adj))
	for _, id := range r.order {
		if l, ok := adj[id]; ok {
			out = append(out, *l)
		}
	}
	return out
}

// Remove deletes a single link and returns it.
func (r *LinkRegistry) Remove(id string) (model.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.links[id]
	if !ok {
		return model.Link{}, fmt.Errorf("%w: link %q", model.ErrNotFound, id)
	}
	r.deleteLocked(l)
	return *l, nil
}

// RemoveForTower deletes every link that references towerID and returns
// the removed links in creation order.
func (r *LinkRegistry) RemoveForTower(towerID string) []model.Link {
	r.mu.Lock()
	defer r.mu.Unlock()

	adj := r.linksByTower[towerID]
	if len(adj) == 0 {
		return nil
	}
	var removed []model.Link
	for _, id := range append([]string(nil), r.order...) {
		if l, ok := adj[id]; ok {
			removed = append(removed, *l)
			r.deleteLocked(l)
		}
	}
	return removed
}

func (r *LinkRegistry) indexLocked(towerID string, l *model.Link) {
	adj := r.linksByTower[towerID]
	if adj == nil {
		adj = make(map[string]*model.Link)
		r.linksByTower[towerID] = adj
	}
	adj[l.ID] = l
}

func (r *LinkRegistry) unindexLocked(towerID, linkID string) {
	adj := r.linksByTower[towerID]
	if adj == nil {
		return
	}
	delete(adj, linkID)
	if len(adj) == 0 {
		delete(r.linksByTower, towerID)
	}
}

// deleteLocked removes l from all indexes. Caller must hold r.mu.
func (r *LinkRegistry) deleteLocked(l *model.Link) {
	delete(r.links, l.ID)
	r.unindexLocked(l.TowerA, l.ID)
	r.unindexLocked(l.TowerB, l.ID)
	for i, id := range r.order {
		if id == l.ID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
