package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidValue indicates a non-positive frequency or out-of-range
	// coordinates.
	ErrInvalidValue = errors.New("invalid value")
	// ErrNotFound indicates an operation on an unknown tower or link ID.
	ErrNotFound = errors.New("not found")
	// ErrFrequencyMismatch indicates a rejected pairing. It is an expected,
	// user-visible outcome rather than a fault.
	ErrFrequencyMismatch = errors.New("towers must have same channel")
	// ErrDomain indicates degenerate geometry, such as coincident towers
	// feeding the Fresnel formula.
	ErrDomain = errors.New("degenerate link geometry")
)

// FrequencyMismatchError describes a pairing that was rejected because the
// two towers operate on different channels.
type FrequencyMismatchError struct {
	Pending  Tower
	Selected Tower
}

func (e *FrequencyMismatchError) Error() string {
	return fmt.Sprintf("%v: tower %q at %g GHz, tower %q at %g GHz",
		ErrFrequencyMismatch,
		e.Pending.ID, e.Pending.FreqGHz,
		e.Selected.ID, e.Selected.FreqGHz,
	)
}

// Is lets errors.Is(err, ErrFrequencyMismatch) match.
func (e *FrequencyMismatchError) Is(target error) bool {
	return target == ErrFrequencyMismatch
}
