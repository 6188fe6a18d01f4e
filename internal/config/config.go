package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/jointlock/internal/dynamo"
	"github.com/san-kum/jointlock/internal/integrators"
)

const (
	DefaultGravity        = 9.8
	DefaultRunTime        = 20.0
	DefaultReportInterval = 0.01
	DefaultDensity        = 1000.0
	DefaultMethod         = "rk3"
	DefaultAccuracy       = 1e-1
	DefaultBand           = 20000.0
	DefaultInitDeg        = 90.0
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Name           string           `yaml:"name"`
	Gravity        float64          `yaml:"gravity"`
	RunTime        float64          `yaml:"run_time"`
	ReportInterval float64          `yaml:"report_interval"`
	Leg            LegConfig        `yaml:"leg"`
	Lock           LockConfig       `yaml:"lock"`
	Integrator     IntegratorConfig `yaml:"integrator"`
	Init           InitConfig       `yaml:"init"`
}

// BodyConfig describes one brick-shaped link.
type BodyConfig struct {
	HalfDims  [3]float64 `yaml:"half_dims,flow"`
	MassScale float64    `yaml:"mass_scale"`
}

type LegConfig struct {
	Density float64    `yaml:"density"`
	Thigh   BodyConfig `yaml:"thigh"`
	Calf    BodyConfig `yaml:"calf"`
	Foot    BodyConfig `yaml:"foot"`
}

type LockConfig struct {
	Restitution  float64 `yaml:"restitution"`
	LockAngleDeg float64 `yaml:"lock_angle_deg"`
	Low          float64 `yaml:"low"`
	High         float64 `yaml:"high"`
	StartLocked  bool    `yaml:"start_locked"`
}

type IntegratorConfig struct {
	Method      string  `yaml:"method"`
	Accuracy    float64 `yaml:"accuracy"`
	InitialStep float64 `yaml:"initial_step"`
	MaxStep     float64 `yaml:"max_step"`
	MinStep     float64 `yaml:"min_step"`
}

// InitConfig holds relative joint angles in degrees and rates in rad/s.
type InitConfig struct {
	ThighDeg  float64 `yaml:"thigh_deg"`
	CalfDeg   float64 `yaml:"calf_deg"`
	FootDeg   float64 `yaml:"foot_deg"`
	ThighRate float64 `yaml:"thigh_rate"`
	CalfRate  float64 `yaml:"calf_rate"`
	FootRate  float64 `yaml:"foot_rate"`
}

func DefaultConfig() *Config {
	step := dynamo.DefaultConfig()
	return &Config{
		Name:           "default",
		Gravity:        DefaultGravity,
		RunTime:        DefaultRunTime,
		ReportInterval: DefaultReportInterval,
		Leg: LegConfig{
			Density: DefaultDensity,
			Thigh:   BodyConfig{HalfDims: [3]float64{0.5, 2, 0.25}, MassScale: 10},
			Calf:    BodyConfig{HalfDims: [3]float64{0.25, 2, 0.125}, MassScale: 1},
			Foot:    BodyConfig{HalfDims: [3]float64{0.25, 2, 0.125}, MassScale: 10},
		},
		Lock: LockConfig{
			Restitution: 0,
			Low:         -DefaultBand,
			High:        DefaultBand,
		},
		Integrator: IntegratorConfig{
			Method:      DefaultMethod,
			Accuracy:    DefaultAccuracy,
			InitialStep: step.InitialStep,
			MaxStep:     step.MaxStep,
			MinStep:     step.MinStep,
		},
		Init: InitConfig{
			ThighDeg: DefaultInitDeg,
			CalfDeg:  DefaultInitDeg,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns an independent copy.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

func (c *Config) Validate() error {
	for _, f := range c.numbers() {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %g", ErrInvalid, f.name, f.v)
		}
	}
	switch {
	case c.Gravity < 0:
		return fmt.Errorf("%w: gravity must be non-negative, got %g", ErrInvalid, c.Gravity)
	case !(c.RunTime > 0):
		return fmt.Errorf("%w: run_time must be positive, got %g", ErrInvalid, c.RunTime)
	case !(c.ReportInterval > 0):
		return fmt.Errorf("%w: report_interval must be positive, got %g", ErrInvalid, c.ReportInterval)
	case !(c.Leg.Density > 0):
		return fmt.Errorf("%w: density must be positive, got %g", ErrInvalid, c.Leg.Density)
	case c.Lock.Restitution < 0 || c.Lock.Restitution > 1:
		return fmt.Errorf("%w: restitution %g outside [0, 1]", ErrInvalid, c.Lock.Restitution)
	case !(c.Lock.Low < c.Lock.High):
		return fmt.Errorf("%w: lock band low %g must be below high %g", ErrInvalid, c.Lock.Low, c.Lock.High)
	}
	for name, b := range map[string]BodyConfig{"thigh": c.Leg.Thigh, "calf": c.Leg.Calf, "foot": c.Leg.Foot} {
		if !(b.MassScale > 0) {
			return fmt.Errorf("%w: %s mass_scale must be positive", ErrInvalid, name)
		}
		for _, h := range b.HalfDims {
			if !(h > 0) {
				return fmt.Errorf("%w: %s half_dims must be positive, got %v", ErrInvalid, name, b.HalfDims)
			}
		}
	}
	if _, err := integrators.New(c.Integrator.Method); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.StepConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

type namedValue struct {
	name string
	v    float64
}

// numbers lists every scalar setting.
func (c *Config) numbers() []namedValue {
	out := []namedValue{
		{"gravity", c.Gravity},
		{"run_time", c.RunTime},
		{"report_interval", c.ReportInterval},
		{"density", c.Leg.Density},
		{"restitution", c.Lock.Restitution},
		{"lock_angle_deg", c.Lock.LockAngleDeg},
		{"low", c.Lock.Low},
		{"high", c.Lock.High},
		{"accuracy", c.Integrator.Accuracy},
		{"initial_step", c.Integrator.InitialStep},
		{"max_step", c.Integrator.MaxStep},
		{"min_step", c.Integrator.MinStep},
		{"thigh_deg", c.Init.ThighDeg},
		{"calf_deg", c.Init.CalfDeg},
		{"foot_deg", c.Init.FootDeg},
		{"thigh_rate", c.Init.ThighRate},
		{"calf_rate", c.Init.CalfRate},
		{"foot_rate", c.Init.FootRate},
	}
	for _, b := range []struct {
		name string
		body BodyConfig
	}{{"thigh", c.Leg.Thigh}, {"calf", c.Leg.Calf}, {"foot", c.Leg.Foot}} {
		out = append(out, namedValue{b.name + ".mass_scale", b.body.MassScale})
		for i, h := range b.body.HalfDims {
			out = append(out, namedValue{fmt.Sprintf("%s.half_dims[%d]", b.name, i), h})
		}
	}
	return out
}

// StepConfig converts the integrator section for the time stepper.
func (c *Config) StepConfig() dynamo.Config {
	step := dynamo.DefaultConfig()
	step.Accuracy = c.Integrator.Accuracy
	step.InitialStep = c.Integrator.InitialStep
	step.MaxStep = c.Integrator.MaxStep
	step.MinStep = c.Integrator.MinStep
	return step
}

// InitialQ returns the starting joint angles in radians.
func (c *Config) InitialQ() []float64 {
	return []float64{deg2rad(c.Init.ThighDeg), deg2rad(c.Init.CalfDeg), deg2rad(c.Init.FootDeg)}
}

func (c *Config) InitialU() []float64 {
	return []float64{c.Init.ThighRate, c.Init.CalfRate, c.Init.FootRate}
}

// LockAngle returns the lock angle in radians.
func (c *Config) LockAngle() float64 { return deg2rad(c.Lock.LockAngleDeg) }

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
