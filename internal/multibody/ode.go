package multibody

import (
	"fmt"

	"github.com/san-kum/jointlock/internal/dynamo"
)

// ODE exposes a State's continuous variables as a first-order system
// x = [q; u], xdot = [u; udot] for the generic integrators. Discrete
// variables (constraint flags, prescribed accelerations) are taken from the
// state passed to NewODE or Reset.
type ODE struct {
	sys   *System
	work  *State
	evals int
}

var _ dynamo.System = (*ODE)(nil)

func NewODE(sys *System, s *State) *ODE {
	return &ODE{sys: sys, work: s.Clone()}
}

// Reset picks up the discrete variables of s after an event changed them.
func (o *ODE) Reset(s *State) {
	o.work = s.Clone()
}

func (o *ODE) StateDim() int { return 2 * o.sys.NumBodies() }

// Evaluations counts successful Derive calls.
func (o *ODE) Evaluations() int { return o.evals }

func (o *ODE) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	if err := Unpack(o.work, x); err != nil {
		return nil, err
	}
	o.work.SetTime(t)
	if err := o.sys.Realize(o.work, StageAcceleration); err != nil {
		return nil, err
	}
	o.evals++
	n := o.work.NQ()
	dx := make(dynamo.State, 2*n)
	copy(dx[:n], o.work.u)
	copy(dx[n:], o.work.udot)
	return dx, nil
}

// Pack returns the continuous variables of s as [q; u].
func Pack(s *State) dynamo.State {
	n := s.NQ()
	x := make(dynamo.State, 2*n)
	copy(x[:n], s.q)
	copy(x[n:], s.u)
	return x
}

// Unpack writes x = [q; u] into s and invalidates Position.
func Unpack(s *State, x dynamo.State) error {
	n := s.NQ()
	if len(x) != 2*n {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(x), 2*n)
	}
	copy(s.q, x[:n])
	copy(s.u, x[n:])
	s.invalidate(StagePosition)
	return nil
}
