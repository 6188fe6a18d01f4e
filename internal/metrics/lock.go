package metrics

import (
	"math"

	"github.com/san-kum/jointlock/internal/recorder"
)

// LockedFraction is the share of samples taken while locked.
type LockedFraction struct {
	locked, samples int
}

func NewLockedFraction() *LockedFraction { return &LockedFraction{} }

func (l *LockedFraction) Name() string { return "locked_fraction" }

func (l *LockedFraction) Observe(s recorder.Snapshot) {
	if s.Locked {
		l.locked++
	}
	l.samples++
}

func (l *LockedFraction) Value() float64 {
	if l.samples == 0 {
		return 0
	}
	return float64(l.locked) / float64(l.samples)
}

func (l *LockedFraction) Reset() { *l = LockedFraction{} }

// LockChanges counts lock status flips between consecutive samples. Flips
// that happen and revert within one report interval are not seen.
type LockChanges struct {
	prev    bool
	changes int
	samples int
}

func NewLockChanges() *LockChanges { return &LockChanges{} }

func (l *LockChanges) Name() string { return "lock_changes" }

func (l *LockChanges) Observe(s recorder.Snapshot) {
	if l.samples > 0 && s.Locked != l.prev {
		l.changes++
	}
	l.prev = s.Locked
	l.samples++
}

func (l *LockChanges) Value() float64 { return float64(l.changes) }

func (l *LockChanges) Reset() { *l = LockChanges{} }

// PeakMultiplier is the largest lock reaction magnitude seen while locked.
type PeakMultiplier struct {
	peak float64
}

func NewPeakMultiplier() *PeakMultiplier { return &PeakMultiplier{} }

func (p *PeakMultiplier) Name() string { return "peak_multiplier" }

func (p *PeakMultiplier) Observe(s recorder.Snapshot) {
	if s.Locked {
		p.peak = math.Max(p.peak, math.Abs(s.Multiplier))
	}
}

func (p *PeakMultiplier) Value() float64 { return p.peak }

func (p *PeakMultiplier) Reset() { p.peak = 0 }
