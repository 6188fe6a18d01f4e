// Package metrics summarises a recorded run.
package metrics

import "github.com/san-kum/jointlock/internal/recorder"

// Metric accumulates one scalar over a time-ordered snapshot sequence.
type Metric interface {
	Name() string
	Observe(s recorder.Snapshot)
	Value() float64
	Reset()
}

// Standard returns the metrics stored with every run. joint is the index of
// the locked coordinate.
func Standard(joint int) []Metric {
	return []Metric{
		NewEnergyDrift(),
		NewEnergyLoss(),
		NewLockedFraction(),
		NewLockChanges(),
		NewPeakMultiplier(),
		NewJointRange(joint),
	}
}

// Evaluate resets ms, feeds them every snapshot and collects the values.
func Evaluate(ms []Metric, snaps []recorder.Snapshot) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		m.Reset()
		for _, s := range snaps {
			m.Observe(s)
		}
		out[m.Name()] = m.Value()
	}
	return out
}
