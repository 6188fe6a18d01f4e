package config

import "sort"

// Presets are named variations of the default leg.
var Presets = map[string]func(*Config){
	"default": func(c *Config) {},
	// Knee catches half way through its swing.
	"bent-lock": func(c *Config) {
		c.Lock.LockAngleDeg = 45
	},
	"narrow-band": func(c *Config) {
		c.Lock.Low, c.Lock.High = -5000, 5000
	},
	// Knee driven hard toward the lock from a hanging start.
	"swing": func(c *Config) {
		c.Init = InitConfig{ThighDeg: 30, CalfDeg: 90, CalfRate: -10}
		c.RunTime = 10
	},
	"start-locked": func(c *Config) {
		c.Init.CalfDeg = 0
		c.Lock.StartLocked = true
	},
	"accurate": func(c *Config) {
		c.Integrator.Method = "rk45"
		c.Integrator.Accuracy = 1e-6
	},
}

// GetPreset returns a fresh config for the named preset, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Name = name
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
