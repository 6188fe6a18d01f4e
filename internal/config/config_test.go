package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Integrator.Method != "rk3" {
		t.Errorf("expected rk3, got %s", cfg.Integrator.Method)
	}
	if cfg.Integrator.Accuracy != 0.1 {
		t.Errorf("expected accuracy 0.1, got %g", cfg.Integrator.Accuracy)
	}
	if cfg.RunTime != 20 || cfg.ReportInterval != 0.01 {
		t.Errorf("unexpected horizon %g / interval %g", cfg.RunTime, cfg.ReportInterval)
	}
	if cfg.Lock.Low != -20000 || cfg.Lock.High != 20000 {
		t.Errorf("unexpected band [%g, %g]", cfg.Lock.Low, cfg.Lock.High)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero run time", func(c *Config) { c.RunTime = 0 }},
		{"zero interval", func(c *Config) { c.ReportInterval = 0 }},
		{"negative gravity", func(c *Config) { c.Gravity = -1 }},
		{"restitution", func(c *Config) { c.Lock.Restitution = 1.2 }},
		{"band", func(c *Config) { c.Lock.Low, c.Lock.High = 5, 5 }},
		{"mass scale", func(c *Config) { c.Leg.Calf.MassScale = 0 }},
		{"half dims", func(c *Config) { c.Leg.Foot.HalfDims[1] = 0 }},
		{"method", func(c *Config) { c.Integrator.Method = "leapfrog" }},
		{"accuracy", func(c *Config) { c.Integrator.Accuracy = 0 }},
		{"density", func(c *Config) { c.Leg.Density = 0 }},
		{"nan gravity", func(c *Config) { c.Gravity = math.NaN() }},
		{"infinite run time", func(c *Config) { c.RunTime = math.Inf(1) }},
		{"nan lock angle", func(c *Config) { c.Lock.LockAngleDeg = math.NaN() }},
		{"infinite band", func(c *Config) { c.Lock.High = math.Inf(1) }},
		{"nan thigh angle", func(c *Config) { c.Init.ThighDeg = math.NaN() }},
		{"infinite calf rate", func(c *Config) { c.Init.CalfRate = math.Inf(-1) }},
		{"nan half dims", func(c *Config) { c.Leg.Thigh.HalfDims[2] = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestValidateNamesNonFiniteField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Init.FootRate = math.NaN()
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), "foot_rate must be finite") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestLoadRejectsNaN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leg.yaml")
	if err := os.WriteFile(path, []byte("lock:\n  lock_angle_deg: .nan\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestInitialVectors(t *testing.T) {
	cfg := DefaultConfig()
	q := cfg.InitialQ()
	if len(q) != 3 {
		t.Fatalf("expected 3 angles, got %d", len(q))
	}
	if math.Abs(q[0]-math.Pi/2) > 1e-15 || math.Abs(q[1]-math.Pi/2) > 1e-15 || q[2] != 0 {
		t.Errorf("unexpected q %v", q)
	}
	if u := cfg.InitialU(); len(u) != 3 || u[0] != 0 {
		t.Errorf("unexpected u %v", u)
	}
	cfg.Lock.LockAngleDeg = 180
	if math.Abs(cfg.LockAngle()-math.Pi) > 1e-15 {
		t.Errorf("lock angle %g", cfg.LockAngle())
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leg.yaml")
	cfg := GetPreset("bent-lock")
	cfg.Init.FootRate = 2.5
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Lock.LockAngleDeg != 45 || loaded.Init.FootRate != 2.5 || loaded.Name != "bent-lock" {
		t.Errorf("round trip lost fields: %+v", loaded)
	}
	if loaded.Leg.Thigh.HalfDims != cfg.Leg.Thigh.HalfDims {
		t.Errorf("half dims %v, want %v", loaded.Leg.Thigh.HalfDims, cfg.Leg.Thigh.HalfDims)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("run_time: 3\nlock:\n  restitution: 0.5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RunTime != 3 || cfg.Lock.Restitution != 0.5 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Lock.High != DefaultBand || cfg.Integrator.Method != DefaultMethod {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("lock:\n  low: 10\n  high: -10\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("swing")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Init.CalfRate != -10 {
		t.Errorf("expected calf rate -10, got %g", cfg.Init.CalfRate)
	}

	// Presets hand out fresh copies.
	cfg.Init.CalfRate = 0
	if again := GetPreset("swing"); again.Init.CalfRate != -10 {
		t.Error("preset mutated through a previous copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestPresetsValid(t *testing.T) {
	names := ListPresets()
	if len(names) != len(Presets) {
		t.Fatalf("ListPresets returned %d of %d", len(names), len(Presets))
	}
	for _, name := range names {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s invalid: %v", name, err)
		}
	}
}
