package planner

import "github.com/jyothishs/rf-outdoor-link-planner/model"

// PairingPhase tags the pairing state.
type PairingPhase int

const (
	PairingIdle    PairingPhase = iota // no tower awaiting a partner
	PairingPending                     // one tower selected, waiting for the second
)

func (p PairingPhase) String() string {
	switch p {
	case PairingIdle:
		return "idle"
	case PairingPending:
		return "pending"
	default:
		return "unknown"
	}
}

// PairingState is Idle or Pending(towerID). The zero value is Idle.
type PairingState struct {
	Phase   PairingPhase
	TowerID string // set only when Phase == PairingPending
}

// Idle returns the idle pairing state.
func Idle() PairingState { return PairingState{} }

// Pending returns the state waiting for a partner for towerID.
func Pending(towerID string) PairingState {
	return PairingState{Phase: PairingPending, TowerID: towerID}
}

// IsPending reports whether a tower is awaiting a partner.
func (s PairingState) IsPending() bool { return s.Phase == PairingPending }

// PairingOutcome classifies a single selectTower event.
type PairingOutcome int

const (
	OutcomeStarted   PairingOutcome = iota // Idle -> Pending(T)
	OutcomeCancelled                       // Pending(T) + T -> Idle
	OutcomeLinked                          // Pending(T) + U, same channel -> Idle, link created
	OutcomeRejected                        // Pending(T) + U, channels differ -> Idle, no link
)

func (o PairingOutcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeLinked:
		return "linked"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Transition is the result of feeding one selection into the pairing
// machine.
type Transition struct {
	Next    PairingState
	Outcome PairingOutcome

	// From and To are the link endpoints, in selection order, when
	// Outcome is OutcomeLinked or OutcomeRejected.
	From, To model.Tower

	// Err is a *model.FrequencyMismatchError when Outcome is OutcomeRejected.
	Err error
}

// Step computes the transition for selecting `selected` while in state s.
// When s is pending, pending must be the tower named by s.TowerID. Step has
// no side effects; creating the link is the caller's job.
func Step(s PairingState, pending, selected model.Tower) Transition {
	if !s.IsPending() {
		return Transition{Next: Pending(selected.ID), Outcome: OutcomeStarted}
	}
	if selected.ID == s.TowerID {
		return Transition{Next: Idle(), Outcome: OutcomeCancelled}
	}
	if selected.FreqGHz != pending.FreqGHz {
		return Transition{
			Next:    Idle(),
			Outcome: OutcomeRejected,
			From:    pending,
			To:      selected,
			Err:     &model.FrequencyMismatchError{Pending: pending, Selected: selected},
		}
	}
	return Transition{Next: Idle(), Outcome: OutcomeLinked, From: pending, To: selected}
}
