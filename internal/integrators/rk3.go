package integrators

import (
	"math"

	"github.com/san-kum/jointlock/internal/dynamo"
)

// RK3 is the Bogacki-Shampine 3(2) pair: third-order solution with an
// embedded second-order estimate.
type RK3 struct {
	controller stepController
	scratch    dynamo.State
}

func NewRK3() *RK3 {
	return &RK3{controller: newStepController(3)}
}

func (r *RK3) Name() string { return "RungeKutta3" }

func (r *RK3) Step(sys dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, error) {
	newX, _, _, err := r.StepAdaptive(sys, x, t, dt, 1e-6)
	return newX, err
}

func (r *RK3) StepAdaptive(sys dynamo.System, x dynamo.State, t, dt, tol float64) (dynamo.State, float64, float64, error) {
	n := len(x)
	if len(r.scratch) != n {
		r.scratch = make(dynamo.State, n)
	}

	k1, err := sys.Derive(x, t)
	if err != nil {
		return nil, 0, 0, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + 0.5*dt*k1[i]
	}
	k2, err := sys.Derive(r.scratch, t+0.5*dt)
	if err != nil {
		return nil, 0, 0, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + 0.75*dt*k2[i]
	}
	k3, err := sys.Derive(r.scratch, t+0.75*dt)
	if err != nil {
		return nil, 0, 0, err
	}

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + dt*(2.0/9.0*k1[i]+1.0/3.0*k2[i]+4.0/9.0*k3[i])
	}

	k4, err := sys.Derive(xNew, t+dt)
	if err != nil {
		return nil, 0, 0, err
	}

	errMax := 0.0
	for i := 0; i < n; i++ {
		errEst := dt * ((2.0/9.0-7.0/24.0)*k1[i] + (1.0/3.0-1.0/4.0)*k2[i] + (4.0/9.0-1.0/3.0)*k3[i] - 1.0/8.0*k4[i])
		scale := math.Abs(x[i]) + math.Abs(dt*k1[i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(errEst)/scale)
	}

	errRatio := errMax / tol
	return xNew, errRatio, r.controller.next(dt, errRatio), nil
}
