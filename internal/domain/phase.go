// Package domain contains core domain types for the CurioLoop application.
package domain

import (
	"fmt"
)

// Phase is one of the six fixed stages in the experimentation cycle.
type Phase string

const (
	PhaseObserve     Phase = "observe"
	PhaseHypothesize Phase = "hypothesize"
	PhaseCommit      Phase = "commit"
	PhaseRun         Phase = "run"
	PhaseReflect     Phase = "reflect"
	PhaseRemix       Phase = "remix"
)

// Phases lists all phases in cycle order. The order matters only for
// display and progress; transitions are driven by the bot, not by index.
var Phases = []Phase{
	PhaseObserve,
	PhaseHypothesize,
	PhaseCommit,
	PhaseRun,
	PhaseReflect,
	PhaseRemix,
}

// ParsePhase validates a phase string from an external source.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}

// Valid reports whether p is one of the six enumerated phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseObserve, PhaseHypothesize, PhaseCommit, PhaseRun, PhaseReflect, PhaseRemix:
		return true
	}
	return false
}

// Index returns the zero-based position of p in the cycle, or -1 if p
// is not a valid phase.
func (p Phase) Index() int {
	for i, phase := range Phases {
		if phase == p {
			return i
		}
	}
	return -1
}

func (p Phase) String() string {
	return string(p)
}
