package multibody

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// System is a serial chain of pin joints hanging from a fixed ground pivot.
// Bodies and constraints are added before RealizeTopology; afterwards the
// topology is sealed and all variable data lives in a State.
type System struct {
	bodies  []Body
	gravity mgl64.Vec3
	cons    []*constraint
	sealed  bool
}

// Mobilizer identifies the pin joint that connects a body to its parent. The
// ground mobilizer has no coordinate.
type Mobilizer struct {
	sys   *System
	index int
}

// NewSystem creates an empty chain under a uniform gravity field.
func NewSystem(gravity mgl64.Vec3) *System {
	return &System{gravity: gravity}
}

// Ground returns the fixed pivot that the first pin hangs from.
func (sys *System) Ground() Mobilizer {
	return Mobilizer{sys: sys, index: -1}
}

// AddPin appends body b to the chain, pinned to parent. Parent must be the
// current tip of the chain.
func (sys *System) AddPin(parent Mobilizer, b Body) (Mobilizer, error) {
	if sys.sealed {
		return Mobilizer{}, ErrTopologySealed
	}
	if parent.sys != sys {
		return Mobilizer{}, ErrForeignMobilizer
	}
	if parent.index != len(sys.bodies)-1 {
		return Mobilizer{}, fmt.Errorf("%w: parent %d, tip %d", ErrNotSerialChain, parent.index, len(sys.bodies)-1)
	}
	if err := b.validate(); err != nil {
		return Mobilizer{}, err
	}
	sys.bodies = append(sys.bodies, b)
	return Mobilizer{sys: sys, index: len(sys.bodies) - 1}, nil
}

func (sys *System) NumBodies() int         { return len(sys.bodies) }
func (sys *System) Body(i int) Body        { return sys.bodies[i] }
func (sys *System) Gravity() mgl64.Vec3    { return sys.gravity }
func (sys *System) NumConstraints() int    { return len(sys.cons) }
func (sys *System) IsTopologySealed() bool { return sys.sealed }

// Lengths returns the pin-to-pin length of every body in chain order.
func (sys *System) Lengths() []float64 {
	out := make([]float64, len(sys.bodies))
	for i, b := range sys.bodies {
		out[i] = b.Length
	}
	return out
}

// RealizeTopology seals the system and returns a default state realized
// through Model: all coordinates zero, constraints at their default enable
// flags, time zero.
func (sys *System) RealizeTopology() *State {
	sys.sealed = true
	s := newState(sys)
	for _, c := range sys.cons {
		s.disabled[c.id] = c.disabledByDefault
		s.accel[c.id] = c.defaultAccel
	}
	s.stage = StageModel
	return s
}

// Index is the coordinate slot of the mobilizer, or -1 for ground.
func (m Mobilizer) Index() int      { return m.index }
func (m Mobilizer) IsGround() bool  { return m.index < 0 }
func (m Mobilizer) System() *System { return m.sys }

// OneQ returns the joint angle of a non-ground mobilizer.
func (m Mobilizer) OneQ(s *State) float64 { return s.q[m.index] }

// OneU returns the joint rate of a non-ground mobilizer.
func (m Mobilizer) OneU(s *State) float64 { return s.u[m.index] }

// SetOneQ sets the joint angle and invalidates Position.
func (m Mobilizer) SetOneQ(s *State, v float64) {
	s.q[m.index] = v
	s.invalidate(StagePosition)
}

// SetOneU sets the joint rate and invalidates Velocity.
func (m Mobilizer) SetOneU(s *State, v float64) {
	s.u[m.index] = v
	s.invalidate(StageVelocity)
}
