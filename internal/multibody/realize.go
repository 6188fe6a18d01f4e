package multibody

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// Realize brings the cache of s up to stage, recomputing only stale stages.
// A failure leaves s at the last stage that completed.
func (sys *System) Realize(s *State, stage Stage) error {
	if s.sys != sys {
		return ErrForeignState
	}
	for s.stage < stage {
		next := s.stage + 1
		var err error
		switch next {
		case StageInstance:
			err = sys.realizeInstance(s)
		case StagePosition:
			err = sys.realizePosition(s)
		case StageVelocity:
			sys.realizeVelocity(s)
		case StageDynamics:
			sys.realizeDynamics(s)
		case StageAcceleration:
			err = sys.realizeAcceleration(s)
		}
		if err != nil {
			return &RealizeError{Stage: next, Err: err}
		}
		s.stage = next
	}
	return nil
}

func (sys *System) realizeInstance(s *State) error {
	owner := make(map[int]int, len(sys.cons))
	for _, c := range sys.cons {
		if s.disabled[c.id] {
			continue
		}
		k := c.mob.index
		if other, ok := owner[k]; ok {
			return fmt.Errorf("%w: constraints %d and %d on coordinate %d", ErrConflictingConstraints, other, c.id, k)
		}
		owner[k] = c.id
	}
	return nil
}

func (sys *System) realizePosition(s *State) error {
	n := len(sys.bodies)
	phi := 0.0
	for i, b := range sys.bodies {
		phi += s.q[i]
		s.angle[i] = phi
		s.down[i], s.perp[i] = axes(phi)
		s.com[i] = s.pins[i].Add(s.down[i].Mul(b.COM))
		s.pins[i+1] = s.pins[i].Add(s.down[i].Mul(b.Length))
	}

	// Mass center of body i moves with every joint at or inboard of it.
	for i, b := range sys.bodies {
		col := s.perp[i].Mul(b.COM)
		s.jac[i][i] = col
		for j := i - 1; j >= 0; j-- {
			col = col.Add(s.perp[j].Mul(sys.bodies[j].Length))
			s.jac[i][j] = col
		}
	}
	if n == 0 {
		return nil
	}

	for a := 0; a < n; a++ {
		for c := a; c < n; c++ {
			m := 0.0
			for i := c; i < n; i++ {
				b := sys.bodies[i]
				m += b.Mass*s.jac[i][a].Dot(s.jac[i][c]) + b.Inertia
			}
			s.mass.SetSym(a, c, m)
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(s.mass); !ok {
		s.chol = nil
		return ErrSingularMassMatrix
	}
	s.chol = &chol
	return nil
}

func (sys *System) realizeVelocity(s *State) {
	w := 0.0
	var pinAcc mgl64.Vec3
	for i, b := range sys.bodies {
		w += s.u[i]
		s.omega[i] = w
		var v mgl64.Vec3
		for j := 0; j <= i; j++ {
			v = v.Add(s.jac[i][j].Mul(s.u[j]))
		}
		s.vcom[i] = v
		// Centripetal acceleration of the mass center at zero udot.
		s.bias[i] = pinAcc.Sub(s.down[i].Mul(b.COM * w * w))
		pinAcc = pinAcc.Sub(s.down[i].Mul(b.Length * w * w))
	}
}

func (sys *System) realizeDynamics(s *State) {
	for i, b := range sys.bodies {
		s.mobilityForces[i] = 0
		s.bodyForces[i] = SpatialVec{Force: sys.gravity.Mul(b.Mass)}
	}
}

// generalizedForce projects applied and inertial forces onto the joint
// coordinates.
func (sys *System) generalizedForce(s *State) []float64 {
	f := append([]float64(nil), s.mobilityForces...)
	for i, b := range sys.bodies {
		force := s.bodyForces[i].Force.Sub(s.bias[i].Mul(b.Mass))
		torque := s.bodyForces[i].Torque.Z()
		for j := 0; j <= i; j++ {
			f[j] += s.jac[i][j].Dot(force) + torque
		}
	}
	return f
}

type activeRow struct {
	id     int
	coord  int
	target float64
}

func (sys *System) activeRows(s *State, speedOnly bool) []activeRow {
	var rows []activeRow
	for _, c := range sys.cons {
		if s.disabled[c.id] || (speedOnly && c.kind != kindConstantSpeed) {
			continue
		}
		rows = append(rows, activeRow{id: c.id, coord: c.mob.index, target: c.targetAccel(s)})
	}
	return rows
}

// solveRows returns M^-1 * G^T for the given rows, one column per row, and
// the row-space matrix G * M^-1 * G^T.
func (sys *System) solveRows(s *State, rows []activeRow) ([]*mat.VecDense, *mat.Dense, error) {
	n := len(sys.bodies)
	cols := make([]*mat.VecDense, len(rows))
	for a, r := range rows {
		e := mat.NewVecDense(n, nil)
		e.SetVec(r.coord, 1)
		cols[a] = mat.NewVecDense(n, nil)
		if err := s.chol.SolveVecTo(cols[a], e); err != nil {
			return nil, nil, err
		}
	}
	gmg := mat.NewDense(len(rows), len(rows), nil)
	for a, r := range rows {
		for b := range rows {
			gmg.Set(a, b, cols[b].AtVec(r.coord))
		}
	}
	return cols, gmg, nil
}

func (sys *System) realizeAcceleration(s *State) error {
	n := len(sys.bodies)
	for i := range s.mult {
		s.mult[i] = 0
	}
	if n == 0 {
		return nil
	}
	f := mat.NewVecDense(n, sys.generalizedForce(s))
	free := mat.NewVecDense(n, nil)
	if err := s.chol.SolveVecTo(free, f); err != nil {
		return err
	}
	rows := sys.activeRows(s, false)
	if len(rows) > 0 {
		cols, gmg, err := sys.solveRows(s, rows)
		if err != nil {
			return err
		}
		rhs := mat.NewVecDense(len(rows), nil)
		for a, r := range rows {
			rhs.SetVec(a, free.AtVec(r.coord)-r.target)
		}
		var lambda mat.VecDense
		if err := lambda.SolveVec(gmg, rhs); err != nil {
			return fmt.Errorf("constraint solve: %w", err)
		}
		for a, r := range rows {
			free.AddScaledVec(free, -lambda.AtVec(a), cols[a])
			s.mult[r.id] = lambda.AtVec(a)
		}
		for _, r := range rows {
			free.SetVec(r.coord, r.target)
		}
	}
	for i := 0; i < n; i++ {
		s.udot[i] = free.AtVec(i)
	}
	return nil
}
