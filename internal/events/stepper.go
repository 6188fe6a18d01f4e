package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/san-kum/jointlock/internal/dynamo"
	"github.com/san-kum/jointlock/internal/multibody"
)

var (
	ErrNotInitialized  = errors.New("events: stepper not initialized")
	ErrInvalidInterval = errors.New("events: periodic interval must be positive")
	ErrInvalidState    = errors.New("events: state is not finite")
)

// maxBisections bounds event localization independently of the tolerance.
const maxBisections = 64

// Options configures a TimeStepper. Zero values are replaced by defaults.
type Options struct {
	Config    dynamo.Config
	Logger    *slog.Logger
	Observer  Observer
	Invariant InvariantChecker
}

type periodicEntry struct {
	h Periodic
	k int
}

func (p *periodicEntry) next() float64 { return float64(p.k) * p.h.Interval() }

// TimeStepper advances a multibody state with a generic integrator, halting
// at every trigger zero-crossing and every periodic report time to run the
// due handlers. It is single-threaded and owns the state between calls.
type TimeStepper struct {
	sys       *multibody.System
	integ     dynamo.Integrator
	adaptive  dynamo.AdaptiveIntegrator
	cfg       dynamo.Config
	log       *slog.Logger
	observer  Observer
	invariant InvariantChecker

	triggered []Triggered
	periodic  []*periodicEntry

	state *multibody.State
	ode   *multibody.ODE
	prev  []float64
	dt    float64
	stats Stats
	evals int
}

// NewTimeStepper returns a stepper for sys that integrates with integ.
func NewTimeStepper(sys *multibody.System, integ dynamo.Integrator, opts Options) (*TimeStepper, error) {
	cfg := opts.Config
	if cfg == (dynamo.Config{}) {
		cfg = dynamo.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ts := &TimeStepper{
		sys:       sys,
		integ:     integ,
		cfg:       cfg,
		log:       logger,
		observer:  opts.Observer,
		invariant: opts.Invariant,
		dt:        cfg.InitialStep,
	}
	ts.adaptive, _ = integ.(dynamo.AdaptiveIntegrator)
	return ts, nil
}

// AddTriggered registers h. Handlers that fire together run in registration
// order.
func (ts *TimeStepper) AddTriggered(h Triggered) {
	ts.triggered = append(ts.triggered, h)
}

// AddPeriodic registers h to run at every multiple of its interval,
// including the start time when it is one.
func (ts *TimeStepper) AddPeriodic(h Periodic) error {
	if !(h.Interval() > 0) {
		return fmt.Errorf("%w: %s has interval %g", ErrInvalidInterval, h.Name(), h.Interval())
	}
	ts.periodic = append(ts.periodic, &periodicEntry{h: h})
	return nil
}

func (ts *TimeStepper) MethodName() string    { return ts.integ.Name() }
func (ts *TimeStepper) Accuracy() float64     { return ts.cfg.Accuracy }
func (ts *TimeStepper) Config() dynamo.Config { return ts.cfg }

// Stats returns a copy of the counters.
func (ts *TimeStepper) Stats() Stats {
	st := ts.stats
	st.Realizations = ts.evals
	if ts.ode != nil {
		st.Realizations += ts.ode.Evaluations()
	}
	return st
}

// State returns the stepper's current state. It stays owned by the stepper.
func (ts *TimeStepper) State() *multibody.State { return ts.state }

func (ts *TimeStepper) Time() float64 {
	if ts.state == nil {
		return 0
	}
	return ts.state.Time()
}

// Initialize takes ownership of s, projects it onto the enabled
// constraints, records baseline trigger values and runs periodic handlers
// due at the start time.
func (ts *TimeStepper) Initialize(s *multibody.State) error {
	ts.state = s
	if err := ts.sys.Realize(s, multibody.StageAcceleration); err != nil {
		return err
	}
	if err := ts.project(s); err != nil {
		return err
	}
	ts.ode = multibody.NewODE(ts.sys, s)
	for _, p := range ts.periodic {
		p.k = int(math.Ceil(s.Time()/p.h.Interval() - 1e-9))
	}
	if err := ts.rebaseline(); err != nil {
		return err
	}
	ts.log.Debug("stepper initialized",
		"method", ts.integ.Name(),
		"t", s.Time(),
		"triggers", len(ts.triggered),
		"periodic", len(ts.periodic))
	return ts.runPeriodic()
}

// StepTo advances until tFinal, running handlers along the way. Errors are
// wrapped in a *dynamo.SimulationError carrying the step count and time.
func (ts *TimeStepper) StepTo(ctx context.Context, tFinal float64) error {
	if ts.state == nil {
		return ErrNotInitialized
	}
	eps := 1e-12 * math.Max(1, math.Abs(tFinal))
	for ts.state.Time() < tFinal-eps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		target := tFinal
		if next, ok := ts.nextReport(); ok && next < target {
			target = next
		}
		if err := ts.advance(target, eps); err != nil {
			return &dynamo.SimulationError{Step: ts.stats.StepsTaken, Time: ts.state.Time(), Wrapped: err}
		}
	}
	return nil
}

func (ts *TimeStepper) nextReport() (float64, bool) {
	if len(ts.periodic) == 0 {
		return 0, false
	}
	next := math.Inf(1)
	for _, p := range ts.periodic {
		next = math.Min(next, p.next())
	}
	return next, true
}

// advance takes one accepted step toward target and handles whatever falls
// due at its end.
func (ts *TimeStepper) advance(target, eps float64) error {
	t0 := ts.state.Time()
	x0 := multibody.Pack(ts.state)

	h := math.Min(ts.dt, ts.cfg.MaxStep)
	remaining := target - t0
	if h >= remaining-eps {
		h = remaining
	}

	x1, taken, err := ts.attempt(x0, t0, h)
	if err != nil {
		return err
	}
	t1 := t0 + taken
	if taken == remaining {
		t1 = target
	}
	cand, vals, err := ts.candidate(x1, t1)
	if err != nil {
		return err
	}

	if fired := ts.fired(vals); len(fired) > 0 {
		cand, vals, err = ts.localize(x0, t0, taken, cand, vals)
		if err != nil {
			return err
		}
		fired = ts.fired(vals)
		ts.commit(cand, vals)
		return ts.dispatch(fired)
	}

	ts.commit(cand, vals)
	if next, ok := ts.nextReport(); ok && ts.state.Time() >= next-eps {
		return ts.runPeriodic()
	}
	return nil
}

// attempt integrates one step from x0, shrinking it until the error test
// passes. It returns the accepted step size.
func (ts *TimeStepper) attempt(x0 dynamo.State, t0, h float64) (dynamo.State, float64, error) {
	for {
		ts.stats.StepsAttempted++
		if ts.adaptive == nil {
			x1, err := ts.integ.Step(ts.ode, x0, t0, h)
			if err != nil {
				return nil, 0, err
			}
			if ts.observer != nil {
				ts.observer.OnStep(t0+h, h, true)
			}
			return x1, h, nil
		}

		x1, ratio, hNext, err := ts.adaptive.StepAdaptive(ts.ode, x0, t0, h, ts.cfg.Accuracy)
		if err != nil {
			return nil, 0, err
		}
		accepted := ratio <= 1
		if ts.observer != nil {
			ts.observer.OnStep(t0+h, h, accepted)
		}
		if accepted {
			ts.dt = math.Min(math.Max(hNext, ts.cfg.MinStep), ts.cfg.MaxStep)
			return x1, h, nil
		}
		ts.stats.ErrorTestFailures++
		h = math.Min(hNext, 0.5*h)
		if h < ts.cfg.MinStep {
			return nil, 0, fmt.Errorf("%w: %g at t=%g", dynamo.ErrStepTooSmall, h, t0)
		}
	}
}

// candidate builds the state at t from continuous variables x, projected
// onto the constraints, and evaluates the triggers on it.
func (ts *TimeStepper) candidate(x dynamo.State, t float64) (*multibody.State, []float64, error) {
	if ts.cfg.ValidateState && !x.IsValid() {
		return nil, nil, fmt.Errorf("%w at t=%g", ErrInvalidState, t)
	}
	cand := ts.state.Clone()
	if err := multibody.Unpack(cand, x); err != nil {
		return nil, nil, err
	}
	cand.SetTime(t)
	if err := ts.project(cand); err != nil {
		return nil, nil, err
	}
	vals, err := ts.evaluate(cand)
	if err != nil {
		return nil, nil, err
	}
	return cand, vals, nil
}

// localize bisects the step [t0, t0+h] down to the localization tolerance
// and returns the earliest state past the first crossing.
func (ts *TimeStepper) localize(x0 dynamo.State, t0, h float64, hiState *multibody.State, hiVals []float64) (*multibody.State, []float64, error) {
	lo, hi := 0.0, h
	for i := 0; i < maxBisections && hi-lo > ts.cfg.LocalizeTolerance; i++ {
		mid := 0.5 * (lo + hi)
		x, err := ts.integ.Step(ts.ode, x0, t0, mid)
		if err != nil {
			return nil, nil, err
		}
		cand, vals, err := ts.candidate(x, t0+mid)
		if err != nil {
			return nil, nil, err
		}
		if len(ts.fired(vals)) > 0 {
			hi, hiState, hiVals = mid, cand, vals
		} else {
			lo = mid
		}
	}
	ts.log.Debug("event localized", "t", hiState.Time(), "window", hi-lo)
	return hiState, hiVals, nil
}

func (ts *TimeStepper) commit(s *multibody.State, vals []float64) {
	ts.state = s
	ts.prev = vals
	s.SetEventTriggers(vals)
	ts.stats.StepsTaken++
}

func (ts *TimeStepper) fired(vals []float64) []Triggered {
	var out []Triggered
	for i, h := range ts.triggered {
		if h.Direction().Fires(ts.prev[i], vals[i]) {
			out = append(out, h)
		}
	}
	return out
}

func (ts *TimeStepper) evaluate(s *multibody.State) ([]float64, error) {
	vals := make([]float64, len(ts.triggered))
	for i, h := range ts.triggered {
		if err := ts.sys.Realize(s, h.Stage()); err != nil {
			return nil, err
		}
		ts.evals++
		vals[i] = h.Value(s)
	}
	return vals, nil
}

func (ts *TimeStepper) project(s *multibody.State) error {
	changed, err := ts.sys.Project(s)
	if err != nil {
		return err
	}
	if changed {
		ts.stats.Projections++
	}
	return nil
}

// rebaseline re-realizes the state after a discrete change and records the
// trigger values the next step is compared against.
func (ts *TimeStepper) rebaseline() error {
	if err := ts.sys.Realize(ts.state, multibody.StageAcceleration); err != nil {
		return err
	}
	ts.ode.Reset(ts.state)
	vals, err := ts.evaluate(ts.state)
	if err != nil {
		return err
	}
	ts.prev = vals
	ts.state.SetEventTriggers(vals)
	return nil
}

func (ts *TimeStepper) dispatch(fired []Triggered) error {
	t := ts.state.Time()
	for _, h := range fired {
		ts.stats.Events++
		if ts.observer != nil {
			ts.observer.OnEvent(h.Name(), t)
		}
		stage, err := h.Handle(ts.state)
		if err != nil {
			return fmt.Errorf("%s handler: %w", h.Name(), err)
		}
		ts.log.Debug("event handled", "name", h.Name(), "t", t, "lowest_stage", stage.String())
		if err := ts.check(); err != nil {
			return err
		}
	}
	if err := ts.project(ts.state); err != nil {
		return err
	}
	if err := ts.rebaseline(); err != nil {
		return err
	}
	eps := 1e-12 * math.Max(1, math.Abs(t))
	if next, ok := ts.nextReport(); ok && t >= next-eps {
		return ts.runPeriodic()
	}
	return nil
}

func (ts *TimeStepper) runPeriodic() error {
	t := ts.state.Time()
	eps := 1e-12 * math.Max(1, math.Abs(t))
	ran := false
	for _, p := range ts.periodic {
		for p.next() <= t+eps {
			if err := ts.sys.Realize(ts.state, multibody.StageAcceleration); err != nil {
				return err
			}
			ts.stats.Reports++
			if ts.observer != nil {
				ts.observer.OnReport(p.h.Name(), t)
			}
			if err := p.h.Handle(ts.state); err != nil {
				return fmt.Errorf("%s handler: %w", p.h.Name(), err)
			}
			if err := ts.check(); err != nil {
				return err
			}
			p.k++
			ran = true
		}
	}
	if ran {
		return ts.rebaseline()
	}
	return nil
}

func (ts *TimeStepper) check() error {
	if ts.invariant == nil {
		return nil
	}
	return ts.invariant(ts.state)
}
