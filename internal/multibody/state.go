package multibody

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// State holds every variable of a System together with the cached results of
// the stages realized so far. It is owned by one goroutine at a time.
type State struct {
	sys   *System
	stage Stage

	t        float64
	q, u     []float64
	disabled []bool
	accel    []float64
	triggers []float64

	// Position
	angle []float64
	down  []mgl64.Vec3
	perp  []mgl64.Vec3
	pins  []mgl64.Vec3
	com   []mgl64.Vec3
	jac   [][]mgl64.Vec3 // jac[i][j]: d(com_i)/d(u_j), j <= i
	mass  *mat.SymDense
	chol  *mat.Cholesky

	// Velocity
	omega []float64
	vcom  []mgl64.Vec3
	bias  []mgl64.Vec3

	// Dynamics
	mobilityForces []float64
	bodyForces     []SpatialVec

	// Acceleration
	udot []float64
	mult []float64
}

func newState(sys *System) *State {
	n := len(sys.bodies)
	m := len(sys.cons)
	s := &State{
		sys:            sys,
		q:              make([]float64, n),
		u:              make([]float64, n),
		disabled:       make([]bool, m),
		accel:          make([]float64, m),
		angle:          make([]float64, n),
		down:           make([]mgl64.Vec3, n),
		perp:           make([]mgl64.Vec3, n),
		pins:           make([]mgl64.Vec3, n+1),
		com:            make([]mgl64.Vec3, n),
		jac:            make([][]mgl64.Vec3, n),
		omega:          make([]float64, n),
		vcom:           make([]mgl64.Vec3, n),
		bias:           make([]mgl64.Vec3, n),
		mobilityForces: make([]float64, n),
		bodyForces:     make([]SpatialVec, n),
		udot:           make([]float64, n),
		mult:           make([]float64, m),
	}
	for i := range s.jac {
		s.jac[i] = make([]mgl64.Vec3, i+1)
	}
	if n > 0 {
		s.mass = mat.NewSymDense(n, nil)
	}
	return s
}

// invalidate drops every cached stage at or above stage.
func (s *State) invalidate(stage Stage) {
	if s.stage >= stage {
		s.stage = stage.Prev()
	}
}

// Clone returns a deep copy of s, including its cached stage results.
func (s *State) Clone() *State {
	c := newState(s.sys)
	c.stage = s.stage
	c.t = s.t
	copy(c.q, s.q)
	copy(c.u, s.u)
	copy(c.disabled, s.disabled)
	copy(c.accel, s.accel)
	c.triggers = append([]float64(nil), s.triggers...)
	copy(c.angle, s.angle)
	copy(c.down, s.down)
	copy(c.perp, s.perp)
	copy(c.pins, s.pins)
	copy(c.com, s.com)
	for i := range s.jac {
		copy(c.jac[i], s.jac[i])
	}
	if s.mass != nil {
		c.mass.CopySym(s.mass)
	}
	if s.chol != nil {
		c.chol = new(mat.Cholesky)
		c.chol.Clone(s.chol)
	}
	copy(c.omega, s.omega)
	copy(c.vcom, s.vcom)
	copy(c.bias, s.bias)
	copy(c.mobilityForces, s.mobilityForces)
	copy(c.bodyForces, s.bodyForces)
	copy(c.udot, s.udot)
	copy(c.mult, s.mult)
	return c
}

// Stage is the highest stage whose cache is valid.
func (s *State) Stage() Stage { return s.stage }

func (s *State) NQ() int { return len(s.q) }

func (s *State) Time() float64 { return s.t }

// SetTime sets the time and invalidates Time.
func (s *State) SetTime(t float64) {
	s.t = t
	s.invalidate(StageTime)
}

// Q returns a copy of the joint angles.
func (s *State) Q() []float64 { return append([]float64(nil), s.q...) }

// U returns a copy of the joint rates.
func (s *State) U() []float64 { return append([]float64(nil), s.u...) }

// SetQ overwrites the joint angles and invalidates Position.
func (s *State) SetQ(q []float64) error {
	if len(q) != len(s.q) {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(q), len(s.q))
	}
	copy(s.q, q)
	s.invalidate(StagePosition)
	return nil
}

// SetU overwrites the joint rates and invalidates Velocity.
func (s *State) SetU(u []float64) error {
	if len(u) != len(s.u) {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(u), len(s.u))
	}
	copy(s.u, u)
	s.invalidate(StageVelocity)
	return nil
}

// QDot returns the angle derivatives. For pin joints these equal U.
func (s *State) QDot() []float64 { return s.U() }

// UDot returns a copy of the accelerations from the last Acceleration
// realization.
func (s *State) UDot() []float64 { return append([]float64(nil), s.udot...) }

// Multipliers returns every constraint multiplier indexed by constraint ID.
func (s *State) Multipliers() []float64 { return append([]float64(nil), s.mult...) }

// MobilityForces returns a copy of the applied generalized forces.
func (s *State) MobilityForces() []float64 {
	return append([]float64(nil), s.mobilityForces...)
}

// BodyForces returns a copy of the applied body forces.
func (s *State) BodyForces() []SpatialVec {
	return append([]SpatialVec(nil), s.bodyForces...)
}

// UpdMobilityForces returns the cached applied generalized forces for
// in-place modification. The state drops back to Dynamics so the modified
// forces are used by the next Acceleration realization.
func (s *State) UpdMobilityForces() []float64 {
	s.invalidate(StageAcceleration)
	return s.mobilityForces
}

// UpdBodyForces is the body-force counterpart of UpdMobilityForces.
func (s *State) UpdBodyForces() []SpatialVec {
	s.invalidate(StageAcceleration)
	return s.bodyForces
}

// EventTriggers returns a copy of the trigger values last stored by the
// time stepper.
func (s *State) EventTriggers() []float64 { return append([]float64(nil), s.triggers...) }

// SetEventTriggers stores trigger values. It does not invalidate anything.
func (s *State) SetEventTriggers(v []float64) {
	s.triggers = append(s.triggers[:0], v...)
}

// PinLocations returns the ground pivot and each outboard pin as of the
// last Position realization.
func (s *State) PinLocations() []mgl64.Vec3 {
	return append([]mgl64.Vec3(nil), s.pins...)
}

// MassCenters returns each body's mass center as of the last Position
// realization.
func (s *State) MassCenters() []mgl64.Vec3 {
	return append([]mgl64.Vec3(nil), s.com...)
}
