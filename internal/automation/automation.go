// Package automation runs scripted sequences of leg experiments and Monte
// Carlo trials over perturbed initial poses.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/jointlock/internal/config"
	"github.com/san-kum/jointlock/internal/experiment"
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single run in a scenario. Zero fields keep the preset's
// value.
type ScenarioStep struct {
	Preset     string             `yaml:"preset"`
	Integrator string             `yaml:"integrator"`
	RunTime    float64            `yaml:"run_time"`
	Params     map[string]float64 `yaml:"params"`
	SaveAs     string             `yaml:"save_as"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", scenario.Name)
	}
	return &scenario, nil
}

// Config builds the configuration for step i.
func (sc *Scenario) Config(i int) (*config.Config, error) {
	step := sc.Steps[i]
	preset := step.Preset
	if preset == "" {
		preset = "default"
	}
	cfg := config.GetPreset(preset)
	if cfg == nil {
		return nil, fmt.Errorf("step %d: unknown preset %q", i+1, preset)
	}
	if step.Integrator != "" {
		cfg.Integrator.Method = step.Integrator
	}
	if step.RunTime > 0 {
		cfg.RunTime = step.RunTime
	}

	keys := make([]string, 0, len(step.Params))
	for k := range step.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := experiment.SetParam(cfg, k, step.Params[k]); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	switch {
	case step.SaveAs != "":
		cfg.Name = step.SaveAs
	case sc.Name != "":
		cfg.Name = fmt.Sprintf("%s-%d", sc.Name, i+1)
	}
	return cfg, nil
}

// RunScenario executes all steps in order. Results of the steps that
// completed are returned alongside the first error.
func RunScenario(ctx context.Context, sc *Scenario, logger *slog.Logger) ([]*experiment.Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	results := make([]*experiment.Result, 0, len(sc.Steps))

	for i := range sc.Steps {
		cfg, err := sc.Config(i)
		if err != nil {
			return results, err
		}
		logger.Info("scenario step", "step", i+1, "of", len(sc.Steps), "name", cfg.Name)

		exp, err := experiment.New(cfg, experiment.Options{Logger: logger})
		if err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// MonteCarloConfig defines Monte Carlo simulation parameters
type MonteCarloConfig struct {
	Base *config.Config

	// PerturbDeg is the half-width of the uniform perturbation applied to
	// each initial joint angle.
	PerturbDeg float64
	NumTrials  int
	Seed       int64
	Workers    int
}

// MonteCarloResult holds the outcome of one trial
type MonteCarloResult struct {
	TrialID int
	InitDeg [3]float64
	FinalQ  []float64
	Metrics map[string]float64
	Stable  bool // final state finite and bounded
}

// Trials returns the perturbed configurations for cfg. A zero seed draws
// from the clock.
func Trials(cfg *MonteCarloConfig) []*config.Config {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	out := make([]*config.Config, cfg.NumTrials)
	for i := range out {
		c := cfg.Base.Clone()
		c.Init.ThighDeg += (rng.Float64() - 0.5) * 2 * cfg.PerturbDeg
		c.Init.CalfDeg += (rng.Float64() - 0.5) * 2 * cfg.PerturbDeg
		c.Init.FootDeg += (rng.Float64() - 0.5) * 2 * cfg.PerturbDeg
		c.Name = fmt.Sprintf("%s-mc%d", cfg.Base.Name, i)
		out[i] = c
	}
	return out
}

// RunMonteCarlo executes the trials in parallel
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, logger *slog.Logger) ([]MonteCarloResult, error) {
	if cfg.Base == nil || cfg.NumTrials <= 0 {
		return nil, fmt.Errorf("monte carlo needs a base config and at least one trial")
	}
	cfgs := Trials(cfg)
	runs, err := experiment.Sweep(ctx, cfgs, cfg.Workers, logger)
	if err != nil {
		return nil, err
	}

	results := make([]MonteCarloResult, len(runs))
	for i, run := range runs {
		r := MonteCarloResult{
			TrialID: i,
			InitDeg: [3]float64{cfgs[i].Init.ThighDeg, cfgs[i].Init.CalfDeg, cfgs[i].Init.FootDeg},
			Metrics: run.Metrics,
			Stable:  true,
		}
		if n := len(run.Snapshots); n > 0 {
			last := run.Snapshots[n-1]
			r.FinalQ = last.Q
			r.Stable = bounded(last.Q) && bounded(last.U)
		}
		results[i] = r
	}
	return results, nil
}

func bounded(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.Abs(x) > 1e6 {
			return false
		}
	}
	return true
}

// MonteCarloStats computes summary statistics from Monte Carlo results
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
