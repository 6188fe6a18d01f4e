package optim

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/jointlock/internal/config"
)

func TestConfigsExpandsGrid(t *testing.T) {
	g, err := NewGridSearch(
		[]string{"restitution", "band"},
		[][]float64{{0, 0.5}, {100, 200, 300}},
		1, nil,
	)
	if err != nil {
		t.Fatal(err)
	}

	cfgs, points, err := g.Configs(config.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(cfgs) != 6 || len(points) != 6 {
		t.Fatalf("expected 6 grid points, got %d", len(cfgs))
	}
	last := cfgs[5]
	if last.Lock.Restitution != 0.5 || last.Lock.High != 300 {
		t.Errorf("last point has restitution %g band %g", last.Lock.Restitution, last.Lock.High)
	}
	if last.Name != "default-restitution-0.5-band-300" {
		t.Errorf("unexpected name %q", last.Name)
	}
	if points[0]["restitution"] != 0 || points[0]["band"] != 100 {
		t.Errorf("unexpected first point %v", points[0])
	}
}

func TestNewGridSearchMismatch(t *testing.T) {
	if _, err := NewGridSearch([]string{"band"}, nil, 1, nil); err == nil {
		t.Error("expected error for mismatched ranges")
	}
}

func TestConfigsUnknownParam(t *testing.T) {
	g, _ := NewGridSearch([]string{"mass"}, [][]float64{{1}}, 1, nil)
	if _, _, err := g.Configs(config.DefaultConfig()); err == nil {
		t.Error("expected unknown parameter error")
	}
}

func TestSearch(t *testing.T) {
	base := config.DefaultConfig()
	base.RunTime = 0.2
	base.ReportInterval = 0.1

	g, err := NewGridSearch([]string{"accuracy"}, [][]float64{{0.1, 0.01}}, 2, nil)
	if err != nil {
		t.Fatal(err)
	}

	best, err := g.Search(context.Background(), base, "energy_drift")
	if err != nil {
		t.Fatal(err)
	}
	if best.Result == nil || best.Params == nil {
		t.Fatal("missing winner")
	}
	if best.Value != best.Result.Metrics["energy_drift"] {
		t.Error("best value does not match its result")
	}

	if _, err := g.Search(context.Background(), base, "no_such_metric"); !errors.Is(err, ErrNoResult) {
		t.Errorf("expected ErrNoResult, got %v", err)
	}
}
