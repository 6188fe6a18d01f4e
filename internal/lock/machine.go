// Package lock implements a one-degree-of-freedom joint lock that engages
// with an impulsive, restitution-governed velocity jump when the joint
// reaches its lock angle, and releases when the lock's reaction leaves a
// force band.
package lock

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/san-kum/jointlock/internal/multibody"
)

var (
	ErrAlreadyLocked = errors.New("lock: engage requested while lock or impulse is enabled")
	ErrNotLocked     = errors.New("lock: release requested while lock is disabled")
	ErrInvariant     = errors.New("lock: lock and impulse constraints enabled together")
	ErrInvalidConfig = errors.New("lock: invalid config")
)

// Phase is the externally visible lock state. Engaging only exists inside
// the engage handler.
type Phase int

const (
	Free Phase = iota
	Engaging
	Locked
)

func (p Phase) String() string {
	switch p {
	case Free:
		return "FREE"
	case Engaging:
		return "ENGAGING"
	case Locked:
		return "LOCKED"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Config is fixed for the lifetime of a Machine.
type Config struct {
	Restitution float64 // post/pre impact speed ratio, in [0, 1]
	LockAngle   float64 // radians
	Low         float64 // lower edge of the allowed reaction band
	High        float64 // upper edge of the allowed reaction band
}

func (c Config) Validate() error {
	if c.Restitution < 0 || c.Restitution > 1 {
		return fmt.Errorf("%w: restitution %g outside [0, 1]", ErrInvalidConfig, c.Restitution)
	}
	if !(c.Low < c.High) {
		return fmt.Errorf("%w: band low %g must be below high %g", ErrInvalidConfig, c.Low, c.High)
	}
	return nil
}

// BandDistance is the signed distance of f to the nearest band edge,
// positive inside the band.
func (c Config) BandDistance(f float64) float64 {
	mid := (c.High + c.Low) / 2
	if f > mid {
		return c.High - f
	}
	return f - c.Low
}

// Transition records one phase change. UImpact is the joint rate the
// impulse leaves behind, -e times UBefore. UAfter is the rate the joint
// carries on with: once the lock holds it at its speed, the stepper's
// projection removes any rebound, so every engagement ends plastic.
type Transition struct {
	Time       float64
	From, To   Phase
	Q          float64
	UBefore    float64
	UImpact    float64
	UAfter     float64
	Multiplier float64
}

// Machine owns the lock and impulse constraints of one joint. It holds no
// reference to any State between handler calls.
type Machine struct {
	sys     *multibody.System
	joint   multibody.Mobilizer
	lock    *multibody.ConstantSpeed
	impulse *multibody.ConstantAcceleration
	cfg     Config
	log     *slog.Logger

	phase   Phase
	history []Transition
}

// New builds a Machine. Both constraints must act on joint.
func New(sys *multibody.System, joint multibody.Mobilizer, lock *multibody.ConstantSpeed,
	impulse *multibody.ConstantAcceleration, cfg Config, logger *slog.Logger) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lock.Mobilizer().Index() != joint.Index() || impulse.Mobilizer().Index() != joint.Index() {
		return nil, fmt.Errorf("%w: constraints must act on joint %d", ErrInvalidConfig, joint.Index())
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Machine{
		sys:     sys,
		joint:   joint,
		lock:    lock,
		impulse: impulse,
		cfg:     cfg,
		log:     logger.With("component", "lock", "joint", joint.Index()),
	}, nil
}

func (m *Machine) Phase() Phase   { return m.phase }
func (m *Machine) Config() Config { return m.cfg }

// History returns a copy of all transitions so far.
func (m *Machine) History() []Transition {
	return append([]Transition(nil), m.history...)
}

// IsLocked reports whether the lock constraint is enabled in s.
func (m *Machine) IsLocked(s *multibody.State) bool { return !m.lock.IsDisabled(s) }

// Multiplier is the lock reaction as of the last Acceleration realization.
func (m *Machine) Multiplier(s *multibody.State) float64 { return m.lock.Multiplier(s) }

// CheckInvariant fails when both constraints are enabled in s.
func (m *Machine) CheckInvariant(s *multibody.State) error {
	if !m.lock.IsDisabled(s) && !m.impulse.IsDisabled(s) {
		return fmt.Errorf("%w at t=%g", ErrInvariant, s.Time())
	}
	return nil
}

// Sync sets the phase from the constraint flags in s, for states that
// start out locked.
func (m *Machine) Sync(s *multibody.State) {
	if m.IsLocked(s) {
		m.phase = Locked
	} else {
		m.phase = Free
	}
}

// ForceLock enables the lock on s without an impact, holding the joint at
// its current angle. It is meant for initial conditions.
func (m *Machine) ForceLock(s *multibody.State) error {
	if m.IsLocked(s) || !m.impulse.IsDisabled(s) {
		return ErrAlreadyLocked
	}
	m.lock.Enable(s)
	m.phase = Locked
	return nil
}

// Engage performs the impulsive lock at the current instant: the joint's
// rate becomes -e times its incoming rate and the lock is enabled.
func (m *Machine) Engage(s *multibody.State) (multibody.Stage, error) {
	if !m.lock.IsDisabled(s) || !m.impulse.IsDisabled(s) {
		return multibody.StageReport, fmt.Errorf("%w at t=%g", ErrAlreadyLocked, s.Time())
	}
	k := m.joint.Index()
	m.phase = Engaging

	uin := s.U()
	before, err := m.snapshot(s)
	if err != nil {
		return multibody.StageReport, err
	}
	m.log.Info("locking: before", before.attrs(s.Time())...)

	// Rates are zeroed so velocity-dependent terms drop out of the impulse.
	if err := s.SetU(make([]float64, len(uin))); err != nil {
		return multibody.StageReport, err
	}
	m.impulse.Enable(s)
	m.impulse.SetAcceleration(s, -(1+m.cfg.Restitution)*uin[k])

	if err := m.sys.Realize(s, multibody.StageDynamics); err != nil {
		return multibody.StageReport, err
	}
	m.log.Debug("non-impulsive forces",
		"mobility", s.MobilityForces(),
		"body", fmt.Sprint(s.BodyForces()))
	mob := s.UpdMobilityForces()
	for i := range mob {
		mob[i] = 0
	}
	body := s.UpdBodyForces()
	for i := range body {
		body[i] = multibody.SpatialVec{}
	}

	if err := m.sys.Realize(s, multibody.StageAcceleration); err != nil {
		return multibody.StageReport, err
	}
	deltaU := s.UDot()
	uout := make([]float64, len(uin))
	for i := range uin {
		uout[i] = uin[i] + deltaU[i]
	}
	if err := s.SetU(uout); err != nil {
		return multibody.StageReport, err
	}
	m.impulse.Disable(s)
	m.lock.Enable(s)
	if err := m.sys.Realize(s, multibody.StageVelocity); err != nil {
		return multibody.StageReport, err
	}

	after, err := m.snapshot(s)
	if err != nil {
		return multibody.StageReport, err
	}
	m.log.Info("locking: after", append(after.attrs(s.Time()),
		"delta_u", deltaU,
		"uerr", m.sys.UErr(s))...)

	m.phase = Locked
	m.history = append(m.history, Transition{
		Time:    s.Time(),
		From:    Free,
		To:      Locked,
		Q:       m.joint.OneQ(s),
		UBefore: uin[k],
		UImpact: uout[k],
		UAfter:  m.lock.Speed(),
	})
	return multibody.StageInstance, nil
}

// Release disables the lock. There is no impulsive phase.
func (m *Machine) Release(s *multibody.State) (multibody.Stage, error) {
	if m.lock.IsDisabled(s) {
		return multibody.StageReport, fmt.Errorf("%w at t=%g", ErrNotLocked, s.Time())
	}
	if err := m.sys.Realize(s, multibody.StageAcceleration); err != nil {
		return multibody.StageReport, err
	}
	f := m.lock.Multiplier(s)
	m.log.Info("unlocking",
		"t", s.Time(),
		"lambda", f,
		"triggers", s.EventTriggers())

	u := m.joint.OneU(s)
	m.lock.Disable(s)
	m.phase = Free
	m.history = append(m.history, Transition{
		Time:       s.Time(),
		From:       Locked,
		To:         Free,
		Q:          m.joint.OneQ(s),
		UBefore:    u,
		UImpact:    u,
		UAfter:     u,
		Multiplier: f,
	})
	return multibody.StageInstance, nil
}

type diagnostics struct {
	q, u    []float64
	angular float64
	linear  float64
	energy  float64
}

func (m *Machine) snapshot(s *multibody.State) (diagnostics, error) {
	mom, err := m.sys.CalcSystemMomentumAboutGroundOrigin(s)
	if err != nil {
		return diagnostics{}, err
	}
	e, err := m.sys.CalcEnergy(s)
	if err != nil {
		return diagnostics{}, err
	}
	return diagnostics{
		q:       s.Q(),
		u:       s.U(),
		angular: mom.Angular.Len(),
		linear:  mom.Linear.Len(),
		energy:  e,
	}, nil
}

func (d diagnostics) attrs(t float64) []any {
	return []any{"t", t, "q", d.q, "u", d.u, "mom_angular", d.angular, "mom_linear", d.linear, "energy", d.energy}
}
