package metrics

import (
	"fmt"
	"math"

	"github.com/san-kum/jointlock/internal/recorder"
)

// JointRange is the spread between the smallest and largest sampled angle
// of one coordinate.
type JointRange struct {
	joint    int
	min, max float64
	samples  int
}

func NewJointRange(joint int) *JointRange {
	return &JointRange{joint: joint}
}

func (j *JointRange) Name() string { return fmt.Sprintf("joint%d_range", j.joint) }

func (j *JointRange) Observe(s recorder.Snapshot) {
	if j.joint >= len(s.Q) {
		return
	}
	q := s.Q[j.joint]
	if j.samples == 0 {
		j.min, j.max = q, q
	}
	j.min = math.Min(j.min, q)
	j.max = math.Max(j.max, q)
	j.samples++
}

func (j *JointRange) Value() float64 {
	if j.samples == 0 {
		return 0
	}
	return j.max - j.min
}

func (j *JointRange) Reset() {
	j.min, j.max = 0, 0
	j.samples = 0
}
