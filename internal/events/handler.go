// Package events drives a multibody state through time and dispatches
// triggered and periodic handlers at the instants they are due.
package events

import (
	"github.com/san-kum/jointlock/internal/multibody"
)

// Direction selects which sign transitions of a trigger value fire it.
type Direction int

const (
	// Rising fires on a transition from negative to non-negative.
	Rising Direction = 1 << iota
	// Falling fires on a transition from positive to non-positive.
	Falling

	Both = Rising | Falling
)

func (d Direction) String() string {
	switch d {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	case Both:
		return "both"
	}
	return "none"
}

// Fires reports whether the transition prev -> curr matches d. A previous
// value of exactly zero never fires.
func (d Direction) Fires(prev, curr float64) bool {
	switch {
	case prev < 0 && curr >= 0:
		return d&Rising != 0
	case prev > 0 && curr <= 0:
		return d&Falling != 0
	}
	return false
}

// Triggered is a handler that runs when its scalar value crosses zero.
// Value is called with the state realized through Stage. Handle may modify
// the state and returns the lowest stage it invalidated. Neither method may
// retain s after returning.
type Triggered interface {
	Name() string
	Stage() multibody.Stage
	Direction() Direction
	Value(s *multibody.State) float64
	Handle(s *multibody.State) (multibody.Stage, error)
}

// Periodic is a handler that runs at every multiple of Interval.
type Periodic interface {
	Name() string
	Interval() float64
	Handle(s *multibody.State) error
}

// Observer receives notifications from the stepper. Implementations must be
// cheap; they run inside the integration loop.
type Observer interface {
	OnStep(t, dt float64, accepted bool)
	OnEvent(name string, t float64)
	OnReport(name string, t float64)
}

// InvariantChecker is called after every handler. A non-nil error aborts
// the run.
type InvariantChecker func(s *multibody.State) error

// Stats are the integrator counters for one stepper.
type Stats struct {
	StepsTaken        int
	StepsAttempted    int
	ErrorTestFailures int
	Realizations      int
	Projections       int
	Events            int
	Reports           int
}
