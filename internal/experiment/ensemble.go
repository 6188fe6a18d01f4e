package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/jointlock/internal/config"
)

// SweepParams lists the parameters Variants can vary.
var SweepParams = []string{"lock_angle", "band", "calf_rate", "accuracy", "restitution"}

// SetParam sets one sweepable parameter on cfg.
func SetParam(cfg *config.Config, param string, v float64) error {
	switch param {
	case "restitution":
		cfg.Lock.Restitution = v
	case "lock_angle":
		cfg.Lock.LockAngleDeg = v
	case "band":
		cfg.Lock.Low, cfg.Lock.High = -v, v
	case "calf_rate":
		cfg.Init.CalfRate = v
	case "accuracy":
		cfg.Integrator.Accuracy = v
	default:
		return fmt.Errorf("unknown sweep parameter %q (available: %v)", param, SweepParams)
	}
	return nil
}

// Variants returns one copy of base per value with param set to it.
func Variants(base *config.Config, param string, values []float64) ([]*config.Config, error) {
	out := make([]*config.Config, 0, len(values))
	for _, v := range values {
		cfg := base.Clone()
		if err := SetParam(cfg, param, v); err != nil {
			return nil, err
		}
		cfg.Name = fmt.Sprintf("%s-%s-%g", base.Name, param, v)
		out = append(out, cfg)
	}
	return out, nil
}

// Sweep runs every config as an independent experiment on at most workers
// goroutines, or unbounded when workers <= 0. The first failure cancels the
// rest. Results keep the order of cfgs.
func Sweep(ctx context.Context, cfgs []*config.Config, workers int, logger *slog.Logger) ([]*Result, error) {
	results := make([]*Result, len(cfgs))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, cfg := range cfgs {
		g.Go(func() error {
			exp, err := New(cfg, Options{Logger: logger})
			if err != nil {
				return fmt.Errorf("%s: %w", cfg.Name, err)
			}
			res, err := exp.Run(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", cfg.Name, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
