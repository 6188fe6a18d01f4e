package multibody

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// CalcKineticEnergy realizes Velocity and returns the kinetic energy.
func (sys *System) CalcKineticEnergy(s *State) (float64, error) {
	if err := sys.Realize(s, StageVelocity); err != nil {
		return 0, err
	}
	ke := 0.0
	for i, b := range sys.bodies {
		ke += 0.5 * (b.Mass*s.vcom[i].Dot(s.vcom[i]) + b.Inertia*s.omega[i]*s.omega[i])
	}
	return ke, nil
}

// CalcPotentialEnergy realizes Position and returns the gravitational
// potential energy relative to the ground origin.
func (sys *System) CalcPotentialEnergy(s *State) (float64, error) {
	if err := sys.Realize(s, StagePosition); err != nil {
		return 0, err
	}
	pe := 0.0
	for i, b := range sys.bodies {
		pe -= b.Mass * sys.gravity.Dot(s.com[i])
	}
	return pe, nil
}

// CalcEnergy returns total mechanical energy.
func (sys *System) CalcEnergy(s *State) (float64, error) {
	ke, err := sys.CalcKineticEnergy(s)
	if err != nil {
		return 0, err
	}
	pe, err := sys.CalcPotentialEnergy(s)
	if err != nil {
		return 0, err
	}
	return ke + pe, nil
}

// CalcSystemMomentumAboutGroundOrigin realizes Velocity and returns the
// angular and linear momentum of the whole chain about the ground origin.
func (sys *System) CalcSystemMomentumAboutGroundOrigin(s *State) (Momentum, error) {
	if err := sys.Realize(s, StageVelocity); err != nil {
		return Momentum{}, err
	}
	var mom Momentum
	for i, b := range sys.bodies {
		p := s.vcom[i].Mul(b.Mass)
		mom.Linear = mom.Linear.Add(p)
		mom.Angular = mom.Angular.Add(s.com[i].Cross(p)).Add(mgl64.Vec3{0, 0, b.Inertia * s.omega[i]})
	}
	return mom, nil
}

// UErr returns the velocity error of each enabled speed constraint, in
// constraint order.
func (sys *System) UErr(s *State) []float64 {
	var out []float64
	for _, c := range sys.cons {
		if c.kind == kindConstantSpeed && !s.disabled[c.id] {
			out = append(out, s.u[c.mob.index]-c.speed)
		}
	}
	return out
}

// UDotErr returns the acceleration error of each enabled constraint as of
// the last Acceleration realization.
func (sys *System) UDotErr(s *State) []float64 {
	var out []float64
	for _, c := range sys.cons {
		if !s.disabled[c.id] {
			out = append(out, s.udot[c.mob.index]-c.targetAccel(s))
		}
	}
	return out
}

// Project moves U onto the enabled speed constraints with the smallest
// mass-weighted change. It reports whether U was modified.
func (sys *System) Project(s *State) (bool, error) {
	if err := sys.Realize(s, StagePosition); err != nil {
		return false, err
	}
	rows := sys.activeRows(s, true)
	if len(rows) == 0 {
		return false, nil
	}
	resid := mat.NewVecDense(len(rows), nil)
	dirty := false
	for a, r := range rows {
		e := s.u[r.coord] - sys.cons[r.id].speed
		resid.SetVec(a, e)
		if e != 0 {
			dirty = true
		}
	}
	if !dirty {
		return false, nil
	}
	cols, gmg, err := sys.solveRows(s, rows)
	if err != nil {
		return false, &RealizeError{Stage: StageVelocity, Err: err}
	}
	var mu mat.VecDense
	if err := mu.SolveVec(gmg, resid); err != nil {
		return false, &RealizeError{Stage: StageVelocity, Err: err}
	}
	for a := range rows {
		for i := range s.u {
			s.u[i] -= mu.AtVec(a) * cols[a].AtVec(i)
		}
	}
	for _, r := range rows {
		s.u[r.coord] = sys.cons[r.id].speed
	}
	s.invalidate(StageVelocity)
	return true, nil
}

// MaxAbs returns the largest magnitude in v, or zero for an empty slice.
func MaxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}
