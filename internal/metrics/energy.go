package metrics

import (
	"math"

	"github.com/san-kum/jointlock/internal/recorder"
)

// EnergyDrift is the largest relative deviation from the first sample's
// energy.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(s recorder.Snapshot) {
	if e.samples == 0 {
		e.initialEnergy = s.Energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(s.Energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

// EnergyLoss is first minus last sampled energy. Plastic impacts at the
// lock make it positive.
type EnergyLoss struct {
	first, last float64
	samples     int
}

func NewEnergyLoss() *EnergyLoss { return &EnergyLoss{} }

func (e *EnergyLoss) Name() string { return "energy_loss" }

func (e *EnergyLoss) Observe(s recorder.Snapshot) {
	if e.samples == 0 {
		e.first = s.Energy
	}
	e.last = s.Energy
	e.samples++
}

func (e *EnergyLoss) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.first - e.last
}

func (e *EnergyLoss) Reset() { *e = EnergyLoss{} }
