// Package optim searches parameter grids for the run that minimises a
// metric.
package optim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/san-kum/jointlock/internal/config"
	"github.com/san-kum/jointlock/internal/experiment"
)

var ErrNoResult = errors.New("optim: no run produced the metric")

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
	logger     *slog.Logger
}

func NewGridSearch(params []string, ranges [][]float64, workers int, logger *slog.Logger) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d params but %d ranges", len(params), len(ranges))
	}
	return &GridSearch{paramNames: params, ranges: ranges, workers: workers, logger: logger}, nil
}

// Best is the winning grid point.
type Best struct {
	Params map[string]float64
	Value  float64
	Result *experiment.Result
}

// Configs expands the grid over base, one config per point.
func (g *GridSearch) Configs(base *config.Config) ([]*config.Config, []map[string]float64, error) {
	var cfgs []*config.Config
	var points []map[string]float64
	err := g.expand(base, 0, map[string]float64{}, &cfgs, &points)
	return cfgs, points, err
}

func (g *GridSearch) expand(base *config.Config, depth int, current map[string]float64,
	cfgs *[]*config.Config, points *[]map[string]float64) error {
	if depth == len(g.paramNames) {
		cfg := base.Clone()
		parts := []string{base.Name}
		for _, name := range g.paramNames {
			if err := experiment.SetParam(cfg, name, current[name]); err != nil {
				return err
			}
			parts = append(parts, fmt.Sprintf("%s-%g", name, current[name]))
		}
		cfg.Name = strings.Join(parts, "-")
		*cfgs = append(*cfgs, cfg)
		*points = append(*points, current)
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val
		if err := g.expand(base, depth+1, newParams, cfgs, points); err != nil {
			return err
		}
	}
	return nil
}

// Search runs every grid point and returns the one with the smallest value
// of metricName.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metricName string) (*Best, error) {
	cfgs, points, err := g.Configs(base)
	if err != nil {
		return nil, err
	}
	results, err := experiment.Sweep(ctx, cfgs, g.workers, g.logger)
	if err != nil {
		return nil, err
	}

	best := &Best{Value: math.Inf(1)}
	for i, res := range results {
		val, ok := res.Metrics[metricName]
		if !ok || math.IsNaN(val) {
			continue
		}
		if val < best.Value {
			best.Value = val
			best.Params = points[i]
			best.Result = res
		}
	}
	if best.Result == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoResult, metricName)
	}
	return best, nil
}
