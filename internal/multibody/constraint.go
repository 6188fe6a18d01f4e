package multibody

import "fmt"

type constraintKind int

const (
	kindConstantSpeed constraintKind = iota
	kindConstantAcceleration
)

// constraint is a single-coordinate velocity or acceleration constraint. Its
// enable flag and target acceleration live in the State.
type constraint struct {
	sys               *System
	id                int
	mob               Mobilizer
	kind              constraintKind
	speed             float64
	defaultAccel      float64
	disabledByDefault bool
}

func (c *constraint) ID() int { return c.id }

func (c *constraint) Mobilizer() Mobilizer { return c.mob }

// SetDisabledByDefault sets the enable flag a freshly realized topology
// starts with. It has no effect once the topology is sealed.
func (c *constraint) SetDisabledByDefault(disabled bool) {
	if c.sys.sealed {
		return
	}
	c.disabledByDefault = disabled
}

func (c *constraint) IsDisabledByDefault() bool { return c.disabledByDefault }

// Enable turns the constraint on in s and invalidates Instance.
func (c *constraint) Enable(s *State) {
	s.disabled[c.id] = false
	s.invalidate(StageInstance)
}

// Disable turns the constraint off in s and invalidates Instance.
func (c *constraint) Disable(s *State) {
	s.disabled[c.id] = true
	s.invalidate(StageInstance)
}

func (c *constraint) IsDisabled(s *State) bool { return s.disabled[c.id] }

// Multiplier returns the constraint's Lagrange multiplier from the last
// Acceleration realization. It is the generalized reaction the constraint
// applies against its coordinate, or zero when disabled.
func (c *constraint) Multiplier(s *State) float64 { return s.mult[c.id] }

// targetAccel is the acceleration the constraint imposes on its coordinate.
func (c *constraint) targetAccel(s *State) float64 {
	if c.kind == kindConstantAcceleration {
		return s.accel[c.id]
	}
	return 0
}

// ConstantSpeed holds one coordinate's rate at a fixed value.
type ConstantSpeed struct {
	*constraint
}

// Speed is the prescribed rate.
func (c *ConstantSpeed) Speed() float64 { return c.speed }

// ConstantAcceleration prescribes one coordinate's acceleration. The target
// is a State variable so it can change without touching the topology.
type ConstantAcceleration struct {
	*constraint
}

// SetAcceleration changes the prescribed acceleration in s and invalidates
// Acceleration.
func (c *ConstantAcceleration) SetAcceleration(s *State, a float64) {
	s.accel[c.id] = a
	s.invalidate(StageAcceleration)
}

func (c *ConstantAcceleration) Acceleration(s *State) float64 { return s.accel[c.id] }

func (c *ConstantAcceleration) DefaultAcceleration() float64 { return c.defaultAccel }

// AddConstantSpeed constrains the coordinate of mob to the given rate.
func (sys *System) AddConstantSpeed(mob Mobilizer, speed float64) (*ConstantSpeed, error) {
	c, err := sys.addConstraint(mob, kindConstantSpeed)
	if err != nil {
		return nil, err
	}
	c.speed = speed
	return &ConstantSpeed{c}, nil
}

// AddConstantAcceleration constrains the coordinate of mob to the given
// default acceleration.
func (sys *System) AddConstantAcceleration(mob Mobilizer, accel float64) (*ConstantAcceleration, error) {
	c, err := sys.addConstraint(mob, kindConstantAcceleration)
	if err != nil {
		return nil, err
	}
	c.defaultAccel = accel
	return &ConstantAcceleration{c}, nil
}

func (sys *System) addConstraint(mob Mobilizer, kind constraintKind) (*constraint, error) {
	if sys.sealed {
		return nil, ErrTopologySealed
	}
	if mob.sys != sys {
		return nil, ErrForeignMobilizer
	}
	if mob.IsGround() {
		return nil, fmt.Errorf("multibody: ground has no coordinate to constrain")
	}
	c := &constraint{sys: sys, id: len(sys.cons), mob: mob, kind: kind}
	sys.cons = append(sys.cons, c)
	return c, nil
}
