// Package recorder captures periodic snapshots of a running simulation for
// later replay, printing a one-line diagnostic per sample.
package recorder

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/jointlock/internal/events"
	"github.com/san-kum/jointlock/internal/multibody"
)

var ErrInvalidInterval = errors.New("recorder: interval must be positive")

// Snapshot is a copied view of the simulation at one report time. Q, U,
// Time and Locked are the whole restartable state: the impulse constraint is
// only enabled inside the lock handler and applied forces come from gravity.
// The remaining fields are derived diagnostics.
type Snapshot struct {
	Step       int          `json:"step"`
	Time       float64      `json:"time"`
	Q          []float64    `json:"q"`
	U          []float64    `json:"u"`
	Locked     bool         `json:"locked"`
	Multiplier float64      `json:"multiplier"`
	Energy     float64      `json:"energy"`
	Angular    mgl64.Vec3   `json:"angular_momentum"`
	Linear     mgl64.Vec3   `json:"linear_momentum"`
	Triggers   []float64    `json:"triggers,omitempty"`
	Pins       []mgl64.Vec3 `json:"pins"`
}

// Clone returns a copy that shares no memory with s.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Q = append([]float64(nil), s.Q...)
	c.U = append([]float64(nil), s.U...)
	c.Triggers = append([]float64(nil), s.Triggers...)
	c.Pins = append([]mgl64.Vec3(nil), s.Pins...)
	return c
}

// LockStatus is the view of the lock the recorder reports on.
type LockStatus interface {
	IsLocked(s *multibody.State) bool
	Multiplier(s *multibody.State) float64
}

type Options struct {
	Interval float64

	// Output receives one diagnostic line per snapshot. Nil discards.
	Output io.Writer

	// Steps reports the integrator's step count for the diagnostic line.
	Steps func() int

	Logger *slog.Logger
}

// Recorder is a periodic handler that appends time-ordered snapshots.
type Recorder struct {
	sys      *multibody.System
	status   LockStatus
	interval float64
	out      io.Writer
	steps    func() int
	log      *slog.Logger
	snaps    []Snapshot
}

var _ events.Periodic = (*Recorder)(nil)

func New(sys *multibody.System, status LockStatus, opts Options) (*Recorder, error) {
	if !(opts.Interval > 0) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidInterval, opts.Interval)
	}
	r := &Recorder{
		sys:      sys,
		status:   status,
		interval: opts.Interval,
		out:      opts.Output,
		steps:    opts.Steps,
		log:      opts.Logger,
	}
	if r.out == nil {
		r.out = io.Discard
	}
	if r.steps == nil {
		r.steps = func() int { return 0 }
	}
	if r.log == nil {
		r.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r, nil
}

func (r *Recorder) Name() string      { return "recorder" }
func (r *Recorder) Interval() float64 { return r.interval }

// Handle records s. Diagnostic failures are written into the line rather
// than returned, so recording never aborts a run.
func (r *Recorder) Handle(s *multibody.State) error {
	r.Record(s)
	return nil
}

// Record captures s and prints its diagnostic line. A sample that is not
// strictly later than the last one is dropped.
func (r *Recorder) Record(s *multibody.State) {
	t := s.Time()
	if n := len(r.snaps); n > 0 && !(t > r.snaps[n-1].Time) {
		r.log.Warn("dropping out-of-order snapshot", "t", t, "last", r.snaps[n-1].Time)
		return
	}

	snap := Snapshot{
		Step:     r.steps(),
		Time:     t,
		Q:        s.Q(),
		U:        s.U(),
		Locked:   r.status.IsLocked(s),
		Triggers: s.EventTriggers(),
	}

	var line strings.Builder
	fmt.Fprintf(&line, "%3d: %5g", snap.Step, t)
	mom, err := r.sys.CalcSystemMomentumAboutGroundOrigin(s)
	if err != nil {
		line.WriteString(" mom=?")
	} else {
		snap.Angular, snap.Linear = mom.Angular, mom.Linear
		fmt.Fprintf(&line, " mom=%g,%g", mom.Angular.Len(), mom.Linear.Len())
	}
	if e, err := r.sys.CalcEnergy(s); err != nil {
		line.WriteString(" E=?")
	} else {
		snap.Energy = e
		fmt.Fprintf(&line, " E=%g", e)
	}
	snap.Pins = s.PinLocations()

	if snap.Locked {
		line.WriteString(" LOCKED")
		if err := r.sys.Realize(s, multibody.StageAcceleration); err != nil {
			line.WriteString(" lambda=?")
		} else {
			snap.Multiplier = r.status.Multiplier(s)
			fmt.Fprintf(&line, " lambda=%g", snap.Multiplier)
		}
		fmt.Fprintf(&line, " Triggers=%s", formatVector(snap.Triggers))
	} else {
		line.WriteString(" FREE")
	}
	line.WriteByte('\n')
	io.WriteString(r.out, line.String())

	r.snaps = append(r.snaps, snap)
}

func (r *Recorder) Count() int { return len(r.snaps) }

// Get returns a copy of snapshot i.
func (r *Recorder) Get(i int) (Snapshot, error) {
	if i < 0 || i >= len(r.snaps) {
		return Snapshot{}, fmt.Errorf("recorder: index %d out of range [0, %d)", i, len(r.snaps))
	}
	return r.snaps[i].Clone(), nil
}

// Snapshots returns copies of every snapshot in time order.
func (r *Recorder) Snapshots() []Snapshot {
	out := make([]Snapshot, len(r.snaps))
	for i, s := range r.snaps {
		out[i] = s.Clone()
	}
	return out
}

func (r *Recorder) Clear() { r.snaps = nil }

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%g", x)
	}
	return "~[" + strings.Join(parts, " ") + "]"
}
