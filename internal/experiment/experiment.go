// Package experiment wires a configured leg, its knee lock and a recorder
// into a time stepper and runs it to the configured horizon.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/san-kum/jointlock/internal/config"
	"github.com/san-kum/jointlock/internal/events"
	"github.com/san-kum/jointlock/internal/integrators"
	"github.com/san-kum/jointlock/internal/lock"
	"github.com/san-kum/jointlock/internal/metrics"
	"github.com/san-kum/jointlock/internal/multibody"
	"github.com/san-kum/jointlock/internal/recorder"
)

var ErrAlreadyRun = errors.New("experiment: already run")

type Options struct {
	// Output receives the recorder's diagnostic lines. Nil discards.
	Output io.Writer

	Logger   *slog.Logger
	Observer events.Observer
}

type Experiment struct {
	cfg     *config.Config
	leg     *Leg
	machine *lock.Machine
	rec     *recorder.Recorder
	stepper *events.TimeStepper
	state   *multibody.State
	log     *slog.Logger

	invariantChecks int
	ran             bool
}

// New validates cfg and builds everything needed for Run. The initial state
// is realized through Acceleration but not yet projected.
func New(cfg *config.Config, opts Options) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg = cfg.Clone()

	leg, err := BuildLeg(cfg)
	if err != nil {
		return nil, fmt.Errorf("build leg: %w", err)
	}
	integ, err := integrators.New(cfg.Integrator.Method)
	if err != nil {
		return nil, err
	}
	machine, err := lock.New(leg.System, leg.Calf, leg.Lock, leg.Impulse, lock.Config{
		Restitution: cfg.Lock.Restitution,
		LockAngle:   cfg.LockAngle(),
		Low:         cfg.Lock.Low,
		High:        cfg.Lock.High,
	}, logger)
	if err != nil {
		return nil, err
	}

	e := &Experiment{
		cfg:     cfg,
		leg:     leg,
		machine: machine,
		log:     logger.With("run", cfg.Name),
	}
	e.stepper, err = events.NewTimeStepper(leg.System, integ, events.Options{
		Config:    cfg.StepConfig(),
		Logger:    logger,
		Observer:  opts.Observer,
		Invariant: e.checkInvariant,
	})
	if err != nil {
		return nil, err
	}
	e.rec, err = recorder.New(leg.System, machine, recorder.Options{
		Interval: cfg.ReportInterval,
		Output:   opts.Output,
		Steps:    func() int { return e.stepper.Stats().StepsTaken },
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	e.stepper.AddTriggered(machine.LockOn())
	e.stepper.AddTriggered(machine.LockOff())
	if err := e.stepper.AddPeriodic(e.rec); err != nil {
		return nil, err
	}

	if e.state, err = e.initialState(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Experiment) initialState() (*multibody.State, error) {
	s := e.leg.System.RealizeTopology()
	if err := s.SetQ(e.cfg.InitialQ()); err != nil {
		return nil, err
	}
	if err := s.SetU(e.cfg.InitialU()); err != nil {
		return nil, err
	}
	if e.cfg.Lock.StartLocked {
		if err := e.machine.ForceLock(s); err != nil {
			return nil, err
		}
	}
	if err := e.leg.System.Realize(s, multibody.StageAcceleration); err != nil {
		return nil, err
	}
	return s, nil
}

func (e *Experiment) checkInvariant(s *multibody.State) error {
	e.invariantChecks++
	return e.machine.CheckInvariant(s)
}

func (e *Experiment) Config() *config.Config       { return e.cfg }
func (e *Experiment) Leg() *Leg                    { return e.leg }
func (e *Experiment) Machine() *lock.Machine       { return e.machine }
func (e *Experiment) Recorder() *recorder.Recorder { return e.rec }

// Run projects the initial state, steps to the configured run time and
// collects the result. An Experiment runs once.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.ran {
		return nil, ErrAlreadyRun
	}
	e.ran = true

	e.log.Info("run started",
		"method", e.stepper.MethodName(),
		"accuracy", e.stepper.Accuracy(),
		"run_time", e.cfg.RunTime,
		"locked", e.machine.IsLocked(e.state))

	start := time.Now()
	if err := e.stepper.Initialize(e.state); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	if err := e.stepper.StepTo(ctx, e.cfg.RunTime); err != nil {
		return nil, err
	}
	wall := time.Since(start)

	snaps := e.rec.Snapshots()
	res := &Result{
		Name:            e.cfg.Name,
		Method:          e.stepper.MethodName(),
		Accuracy:        e.stepper.Accuracy(),
		SimTime:         e.stepper.Time(),
		Wall:            wall,
		Stats:           e.stepper.Stats(),
		Snapshots:       snaps,
		Transitions:     e.machine.History(),
		Metrics:         metrics.Evaluate(metrics.Standard(e.leg.Calf.Index()), snaps),
		Lengths:         e.leg.System.Lengths(),
		InvariantChecks: e.invariantChecks,
	}
	e.log.Info("run finished",
		"steps", res.Stats.StepsTaken,
		"transitions", len(res.Transitions),
		"snapshots", len(snaps),
		"wall", wall)
	return res, nil
}
