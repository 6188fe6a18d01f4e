package experiment

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/jointlock/internal/config"
	"github.com/san-kum/jointlock/internal/multibody"
)

// Leg is the thigh, calf and foot chain with the knee lock constraints.
type Leg struct {
	System  *multibody.System
	Thigh   multibody.Mobilizer
	Calf    multibody.Mobilizer
	Foot    multibody.Mobilizer
	Lock    *multibody.ConstantSpeed
	Impulse *multibody.ConstantAcceleration
}

// BuildLeg hangs three brick links from the ground pivot and puts a lock
// and an impulse constraint on the knee, both disabled by default.
func BuildLeg(cfg *config.Config) (*Leg, error) {
	sys := multibody.NewSystem(mgl64.Vec3{0, -cfg.Gravity, 0})
	brick := func(name string, b config.BodyConfig) multibody.Body {
		return multibody.Brick(name, mgl64.Vec3(b.HalfDims), cfg.Leg.Density, b.MassScale)
	}

	thigh, err := sys.AddPin(sys.Ground(), brick("thigh", cfg.Leg.Thigh))
	if err != nil {
		return nil, err
	}
	calf, err := sys.AddPin(thigh, brick("calf", cfg.Leg.Calf))
	if err != nil {
		return nil, err
	}
	foot, err := sys.AddPin(calf, brick("foot", cfg.Leg.Foot))
	if err != nil {
		return nil, err
	}

	lk, err := sys.AddConstantSpeed(calf, 0)
	if err != nil {
		return nil, err
	}
	lk.SetDisabledByDefault(true)
	imp, err := sys.AddConstantAcceleration(calf, 0)
	if err != nil {
		return nil, err
	}
	imp.SetDisabledByDefault(true)

	return &Leg{System: sys, Thigh: thigh, Calf: calf, Foot: foot, Lock: lk, Impulse: imp}, nil
}
