package multibody

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// axes returns the hanging direction of a link at absolute angle phi and its
// derivative with respect to phi.
func axes(phi float64) (down, perp mgl64.Vec3) {
	sin, cos := math.Sincos(phi)
	return mgl64.Vec3{sin, -cos, 0}, mgl64.Vec3{cos, sin, 0}
}

// JointPositions returns the ground pivot followed by the outboard pin of each
// link, for links of the given lengths at relative angles q.
func JointPositions(lengths, q []float64) []mgl64.Vec3 {
	n := len(lengths)
	if len(q) < n {
		n = len(q)
	}
	pts := make([]mgl64.Vec3, n+1)
	phi := 0.0
	for i := 0; i < n; i++ {
		phi += q[i]
		down, _ := axes(phi)
		pts[i+1] = pts[i].Add(down.Mul(lengths[i]))
	}
	return pts
}
