package lock

import (
	"github.com/san-kum/jointlock/internal/events"
	"github.com/san-kum/jointlock/internal/multibody"
)

// LockOn fires when the joint angle crosses the lock angle in either
// direction.
type LockOn struct {
	m *Machine
}

// LockOff fires when the lock reaction leaves the band. Its value is the
// band distance while locked and zero while free, so it only falls through
// zero once per excursion.
type LockOff struct {
	m *Machine
}

var (
	_ events.Triggered = (*LockOn)(nil)
	_ events.Triggered = (*LockOff)(nil)
)

func (m *Machine) LockOn() *LockOn   { return &LockOn{m: m} }
func (m *Machine) LockOff() *LockOff { return &LockOff{m: m} }

func (h *LockOn) Name() string                { return "lock-on" }
func (h *LockOn) Stage() multibody.Stage      { return multibody.StagePosition }
func (h *LockOn) Direction() events.Direction { return events.Both }

func (h *LockOn) Value(s *multibody.State) float64 {
	return h.m.joint.OneQ(s) - h.m.cfg.LockAngle
}

func (h *LockOn) Handle(s *multibody.State) (multibody.Stage, error) {
	return h.m.Engage(s)
}

func (h *LockOff) Name() string                { return "lock-off" }
func (h *LockOff) Stage() multibody.Stage      { return multibody.StageAcceleration }
func (h *LockOff) Direction() events.Direction { return events.Falling }

func (h *LockOff) Value(s *multibody.State) float64 {
	if h.m.lock.IsDisabled(s) {
		return 0
	}
	return h.m.cfg.BandDistance(h.m.lock.Multiplier(s))
}

func (h *LockOff) Handle(s *multibody.State) (multibody.Stage, error) {
	return h.m.Release(s)
}
