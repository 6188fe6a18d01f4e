package multibody

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Body holds the planar mass properties of one link. The link hangs from its
// inboard pin along its own -y axis: the mass center sits COM below the pin
// and the outboard pin Length below it.
type Body struct {
	Name     string
	Mass     float64
	Inertia  float64 // about the mass center, out of plane
	COM      float64
	Length   float64
	HalfDims mgl64.Vec3
}

// Brick builds a uniform box body pinned at the middle of its top face, with
// mass scaled by massScale.
func Brick(name string, halfDims mgl64.Vec3, density, massScale float64) Body {
	hx, hy, hz := halfDims.X(), halfDims.Y(), halfDims.Z()
	mass := massScale * density * 8 * hx * hy * hz
	return Body{
		Name:     name,
		Mass:     mass,
		Inertia:  mass * (hx*hx + hy*hy) / 3,
		COM:      hy,
		Length:   2 * hy,
		HalfDims: halfDims,
	}
}

func (b Body) validate() error {
	switch {
	case !(b.Mass > 0):
		return fmt.Errorf("%w: %s mass must be positive, got %g", ErrInvalidBody, b.Name, b.Mass)
	case b.Inertia < 0:
		return fmt.Errorf("%w: %s inertia must be non-negative, got %g", ErrInvalidBody, b.Name, b.Inertia)
	case b.Length < 0 || b.COM < 0:
		return fmt.Errorf("%w: %s lengths must be non-negative", ErrInvalidBody, b.Name)
	}
	return nil
}

// SpatialVec is a force applied at a body's mass center together with a
// torque. Only Force.X, Force.Y and Torque.Z act in the plane.
type SpatialVec struct {
	Torque mgl64.Vec3
	Force  mgl64.Vec3
}

// Momentum is the system momentum about the ground origin.
type Momentum struct {
	Angular mgl64.Vec3
	Linear  mgl64.Vec3
}
