// Package replay drives a planner session from a recorded JSON event script.
// It stands in for the rendering surface: each event is the map click,
// frequency edit, marker click, delete or link click the operator made.
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jyothishs/rf-outdoor-link-planner/internal/planner"
	"github.com/jyothishs/rf-outdoor-link-planner/model"
	"github.com/jyothishs/rf-outdoor-link-planner/timectrl"
)

// Event operations.
const (
	OpAddTower       = "add_tower"
	OpSetFrequency   = "set_frequency"
	OpSelect         = "select"
	OpRemoveTower    = "remove_tower"
	OpRemoveLink     = "remove_link"
	OpHighlightLink  = "highlight_link"
	OpClearHighlight = "clear_highlight"
)

// Script is a decoded event script.
type Script struct {
	DefaultFreqGHz float64 `json:"default_freq_ghz"`
	Events         []Event `json:"events"`
}

// Event is one operator action. Towers are named by the ref given when they
// were added; links by the refs of their two endpoints.
type Event struct {
	Op      string   `json:"op"`
	Ref     string   `json:"ref"`      // add_tower: name for later events
	Lat     float64  `json:"lat"`      // add_tower
	Lng     float64  `json:"lng"`      // add_tower
	FreqGHz *float64 `json:"freq_ghz"` // add_tower (optional), set_frequency
	Tower   string   `json:"tower"`    // set_frequency, select, remove_tower
	A       string   `json:"a"`        // remove_link, highlight_link
	B       string   `json:"b"`        // remove_link, highlight_link
}

// Load decodes a script from r.
func Load(r io.Reader) (*Script, error) {
	var s Script
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("replay: decode failed: %w", err)
	}
	for i, ev := range s.Events {
		if err := ev.validate(); err != nil {
			return nil, fmt.Errorf("replay: event %d: %w", i, err)
		}
	}
	return &s, nil
}

func (e Event) validate() error {
	switch e.Op {
	case OpAddTower:
		if e.Ref == "" {
			return errors.New("add_tower needs ref")
		}
	case OpSetFrequency:
		if e.Tower == "" || e.FreqGHz == nil {
			return errors.New("set_frequency needs tower and freq_ghz")
		}
	case OpSelect, OpRemoveTower:
		if e.Tower == "" {
			return fmt.Errorf("%s needs tower", e.Op)
		}
	case OpRemoveLink, OpHighlightLink:
		if e.A == "" || e.B == "" {
			return fmt.Errorf("%s needs a and b", e.Op)
		}
	case OpClearHighlight:
	default:
		return fmt.Errorf("unknown op %q", e.Op)
	}
	return nil
}

// Step records what one event did. Err holds rejected operations such as a
// frequency mismatch or an out-of-range coordinate; replay continues past
// them the way the operator would after dismissing the alert.
type Step struct {
	Index  int
	At     time.Time // logical time; zero without a pacer
	Event  Event
	Detail string
	Err    error
}

// Result is the outcome of a full replay.
type Result struct {
	Steps   []Step
	Reports []planner.LinkReport
	Final   planner.Snapshot
}

// Runner applies scripts to a session, tracking ref names to tower IDs.
type Runner struct {
	sess  *planner.Session
	refs  map[string]string
	pacer *timectrl.TimeController
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithPacer steps tc once before every event, so a RealTime controller
// replays at one event per tick.
func WithPacer(tc *timectrl.TimeController) RunnerOption {
	return func(r *Runner) { r.pacer = tc }
}

// NewRunner binds a runner to sess.
func NewRunner(sess *planner.Session, opts ...RunnerOption) *Runner {
	r := &Runner{sess: sess, refs: make(map[string]string)}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Run applies every event in order and reports the resulting links. It
// fails only when an event names a ref that was never added.
func (r *Runner) Run(ctx context.Context, s *Script) (*Result, error) {
	res := &Result{Steps: make([]Step, 0, len(s.Events))}
	for i, ev := range s.Events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var at time.Time
		if r.pacer != nil {
			var err error
			if at, err = r.pacer.Step(ctx); err != nil {
				return nil, err
			}
		}
		step, err := r.apply(ctx, i, ev)
		if err != nil {
			return nil, fmt.Errorf("replay: event %d (%s): %w", i, ev.Op, err)
		}
		step.At = at
		res.Steps = append(res.Steps, step)
	}

	for _, l := range r.sess.Links() {
		rep, err := r.sess.LinkReport(l.ID)
		if err != nil {
			return nil, err
		}
		res.Reports = append(res.Reports, rep)
	}
	res.Final = r.sess.Snapshot()
	return res, nil
}

func (r *Runner) apply(ctx context.Context, i int, ev Event) (Step, error) {
	step := Step{Index: i, Event: ev}

	switch ev.Op {
	case OpAddTower:
		if _, dup := r.refs[ev.Ref]; dup {
			return step, fmt.Errorf("ref %q already used", ev.Ref)
		}
		var (
			t   model.Tower
			err error
		)
		if ev.FreqGHz != nil {
			t, err = r.sess.AddTowerWithFrequency(ctx, ev.Lat, ev.Lng, *ev.FreqGHz)
		} else {
			t, err = r.sess.AddTower(ctx, ev.Lat, ev.Lng)
		}
		if err != nil {
			step.Err = err
			return step, nil
		}
		r.refs[ev.Ref] = t.ID
		step.Detail = fmt.Sprintf("tower %s at (%g, %g) on %g GHz", ev.Ref, t.Lat, t.Lng, t.FreqGHz)

	case OpSetFrequency:
		id, err := r.tower(ev.Tower)
		if err != nil {
			return step, err
		}
		t, err := r.sess.UpdateFrequency(ctx, id, *ev.FreqGHz)
		if err != nil {
			step.Err = err
			return step, nil
		}
		step.Detail = fmt.Sprintf("tower %s now on %g GHz", ev.Tower, t.FreqGHz)

	case OpSelect:
		id, err := r.tower(ev.Tower)
		if err != nil {
			return step, err
		}
		pr, err := r.sess.SelectTower(ctx, id)
		step.Err = err
		if err != nil && !errors.Is(err, model.ErrFrequencyMismatch) {
			return step, nil
		}
		step.Detail = fmt.Sprintf("select %s: %s", ev.Tower, pr.Outcome)
		if pr.Link != nil {
			step.Detail += fmt.Sprintf(" %s-%s", r.Name(pr.Link.TowerA), r.Name(pr.Link.TowerB))
		}

	case OpRemoveTower:
		id, err := r.tower(ev.Tower)
		if err != nil {
			return step, err
		}
		rm, err := r.sess.RemoveTower(ctx, id)
		if err != nil {
			step.Err = err
			return step, nil
		}
		step.Detail = fmt.Sprintf("removed tower %s and %d link(s)", ev.Tower, len(rm.Links))

	case OpRemoveLink, OpHighlightLink:
		linkID, err := r.link(ev.A, ev.B)
		if err != nil {
			return step, err
		}
		if linkID == "" {
			step.Err = fmt.Errorf("%w: no link between %s and %s", model.ErrNotFound, ev.A, ev.B)
			return step, nil
		}
		if ev.Op == OpRemoveLink {
			if _, err := r.sess.RemoveLink(ctx, linkID); err != nil {
				step.Err = err
				return step, nil
			}
			step.Detail = fmt.Sprintf("removed link %s-%s", ev.A, ev.B)
		} else {
			if err := r.sess.HighlightLink(ctx, linkID); err != nil {
				step.Err = err
				return step, nil
			}
			step.Detail = fmt.Sprintf("highlighted link %s-%s", ev.A, ev.B)
		}

	case OpClearHighlight:
		r.sess.ClearHighlight()
		step.Detail = "highlight cleared"
	}
	return step, nil
}

func (r *Runner) tower(ref string) (string, error) {
	id, ok := r.refs[ref]
	if !ok {
		return "", fmt.Errorf("unknown tower ref %q", ref)
	}
	return id, nil
}

// link finds the link joining two refs in either direction. An empty ID
// with nil error means both refs exist but no link joins them.
func (r *Runner) link(a, b string) (string, error) {
	idA, err := r.tower(a)
	if err != nil {
		return "", err
	}
	idB, err := r.tower(b)
	if err != nil {
		return "", err
	}
	for _, l := range r.sess.Links() {
		if (l.TowerA == idA && l.TowerB == idB) || (l.TowerA == idB && l.TowerB == idA) {
			return l.ID, nil
		}
	}
	return "", nil
}

// Name returns the script ref for a tower ID, or the ID when it has none.
func (r *Runner) Name(towerID string) string {
	for ref, id := range r.refs {
		if id == towerID {
			return ref
		}
	}
	return towerID
}
