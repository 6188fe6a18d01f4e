package multibody

import "fmt"

// Stage is an ordered level of cached computation validity.
type Stage int

const (
	StageEmpty Stage = iota
	StageTopology
	StageModel
	StageInstance
	StageTime
	StagePosition
	StageVelocity
	StageDynamics
	StageAcceleration
	StageReport
)

var stageNames = [...]string{
	"Empty", "Topology", "Model", "Instance", "Time",
	"Position", "Velocity", "Dynamics", "Acceleration", "Report",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Prev returns the stage immediately below s.
func (s Stage) Prev() Stage {
	if s <= StageEmpty {
		return StageEmpty
	}
	return s - 1
}
