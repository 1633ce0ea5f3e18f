// Package timectrl paces replayed operator events on a logical clock.
package timectrl

import (
	"context"
	"sync"
	"time"
)

// Mode describes how the TimeController advances between events.
type Mode int

const (
	// RealTime waits one Tick of wall-clock time per step.
	RealTime Mode = iota
	// Accelerated advances logical time by Tick without waiting.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// TimeController steps logical time forward and notifies registered
// listeners after each step.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	steps       int

	listeners []func(time.Time)
}

// NewTimeController constructs a controller positioned at start.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current logical time.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Steps reports how many times Step has advanced the clock.
func (tc *TimeController) Steps() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.steps
}

// AddListener registers a callback invoked after every step.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Step advances logical time by one Tick. In RealTime mode it first waits
// one Tick of wall-clock time, returning ctx.Err() if ctx ends sooner.
func (tc *TimeController) Step(ctx context.Context) (time.Time, error) {
	if tc.Mode == RealTime && tc.Tick > 0 {
		timer := time.NewTimer(tc.Tick)
		select {
		case <-ctx.Done():
			timer.Stop()
			return tc.Now(), ctx.Err()
		case <-timer.C:
		}
	}

	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(tc.Tick)
	tc.steps++
	now := tc.currentTime
	listeners := append([]func(time.Time){}, tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(now)
	}
	return now, nil
}
