package dynamo

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// System is a first-order ODE. Derive may fail when the underlying model
// cannot evaluate the state (for example an inconsistent constraint set).
type System interface {
	Derive(x State, t float64) (State, error)
	StateDim() int
}

type Integrator interface {
	Name() string
	Step(sys System, x State, t, dt float64) (State, error)
}

// AdaptiveIntegrator returns, besides the new state, the ratio of the
// estimated local error to the tolerance (accept when <= 1) and a suggested
// next step size.
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(sys System, x State, t, dt, tol float64) (State, float64, float64, error)
}

type Config struct {
	InitialStep       float64
	MaxStep           float64
	MinStep           float64
	Accuracy          float64
	LocalizeTolerance float64
	ValidateState     bool
}

func DefaultConfig() Config {
	return Config{
		InitialStep:       1e-3,
		MaxStep:           0.05,
		MinStep:           1e-12,
		Accuracy:          1e-1,
		LocalizeTolerance: 1e-10,
		ValidateState:     true,
	}
}

func (c Config) Validate() error {
	switch {
	case c.InitialStep <= 0:
		return fmt.Errorf("%w: initial step must be positive, got %g", ErrInvalidConfig, c.InitialStep)
	case c.MaxStep < c.InitialStep:
		return fmt.Errorf("%w: max step %g below initial step %g", ErrInvalidConfig, c.MaxStep, c.InitialStep)
	case c.MinStep <= 0 || c.MinStep > c.InitialStep:
		return fmt.Errorf("%w: min step must be in (0, initial step], got %g", ErrInvalidConfig, c.MinStep)
	case c.Accuracy <= 0:
		return fmt.Errorf("%w: accuracy must be positive, got %g", ErrInvalidConfig, c.Accuracy)
	case c.LocalizeTolerance <= 0:
		return fmt.Errorf("%w: localize tolerance must be positive, got %g", ErrInvalidConfig, c.LocalizeTolerance)
	}
	return nil
}
