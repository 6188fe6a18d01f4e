package experiment

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/jointlock/internal/config"
	"github.com/san-kum/jointlock/internal/events"
	"github.com/san-kum/jointlock/internal/lock"
)

func shortConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.RunTime = 0.5
	cfg.ReportInterval = 0.1
	return cfg
}

func TestBuildLeg(t *testing.T) {
	leg, err := BuildLeg(config.DefaultConfig())
	require.NoError(t, err)

	sys := leg.System
	require.Equal(t, 3, sys.NumBodies())
	assert.InDelta(t, 40000, sys.Body(0).Mass, 1e-9)
	assert.InDelta(t, 500, sys.Body(1).Mass, 1e-9)
	assert.InDelta(t, 5000, sys.Body(2).Mass, 1e-9)
	assert.Equal(t, []float64{4, 4, 4}, sys.Lengths())
	assert.Equal(t, -9.8, sys.Gravity().Y())

	assert.Equal(t, 1, leg.Calf.Index())
	assert.Equal(t, leg.Calf.Index(), leg.Lock.Mobilizer().Index())
	assert.Equal(t, leg.Calf.Index(), leg.Impulse.Mobilizer().Index())
	assert.True(t, leg.Lock.IsDisabledByDefault())
	assert.True(t, leg.Impulse.IsDisabledByDefault())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Lock.Low, cfg.Lock.High = 10, -10

	_, err := New(cfg, Options{})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestNewDoesNotAliasConfig(t *testing.T) {
	cfg := shortConfig()
	exp, err := New(cfg, Options{})
	require.NoError(t, err)

	cfg.RunTime = 99
	assert.Equal(t, 0.5, exp.Config().RunTime)
}

func TestInitialReport(t *testing.T) {
	exp, err := New(config.DefaultConfig(), Options{})
	require.NoError(t, err)

	rep := exp.InitialReport()
	assert.InDeltaSlice(t, []float64{1.5707963267948966, 1.5707963267948966, 0}, rep.Q, 1e-15)
	assert.Equal(t, []float64{0, 0, 0}, rep.U)
	assert.Empty(t, rep.QErr)
	assert.Empty(t, rep.UErr)
	assert.Empty(t, rep.Multipliers)
	assert.Equal(t, rep.UDot, rep.QDotDot)
	assert.Len(t, rep.UDot, 3)

	var buf bytes.Buffer
	rep.Write(&buf)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "u=~[0 0 0]", lines[1])
	assert.Equal(t, "qerr=~[]", lines[2])
	assert.True(t, strings.HasPrefix(lines[8], "qdotdot=~["))
}

func TestRunRecordsEveryReport(t *testing.T) {
	var out bytes.Buffer
	exp, err := New(shortConfig(), Options{Output: &out})
	require.NoError(t, err)

	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Snapshots, 6)
	for i, s := range res.Snapshots {
		assert.InDelta(t, 0.1*float64(i), s.Time, 1e-9)
	}
	assert.InDelta(t, 0.5, res.SimTime, 1e-12)
	assert.Equal(t, "RungeKutta3", res.Method)
	assert.Equal(t, 0.1, res.Accuracy)
	assert.Positive(t, res.Stats.StepsTaken)
	assert.GreaterOrEqual(t, res.Stats.StepsAttempted, res.Stats.StepsTaken)
	assert.Equal(t, 6, res.Stats.Reports)
	assert.Equal(t, []float64{4, 4, 4}, res.Lengths)
	assert.Contains(t, res.Metrics, "energy_drift")
	assert.Contains(t, res.Metrics, "locked_fraction")

	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 6)
}

func TestRunOnlyOnce(t *testing.T) {
	exp, err := New(shortConfig(), Options{})
	require.NoError(t, err)

	_, err = exp.Run(context.Background())
	require.NoError(t, err)
	_, err = exp.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestRunCancelled(t *testing.T) {
	exp, err := New(shortConfig(), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := exp.Run(ctx)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	// The start-time report still happens during initialization.
	assert.Equal(t, 1, exp.Recorder().Count())
}

func TestStartLocked(t *testing.T) {
	cfg := config.GetPreset("start-locked")
	require.NotNil(t, cfg)
	cfg.RunTime = 0.2
	cfg.ReportInterval = 0.1

	exp, err := New(cfg, Options{})
	require.NoError(t, err)
	assert.True(t, exp.Machine().IsLocked(exp.state))

	res, err := exp.Run(context.Background())
	require.NoError(t, err)
	first := res.Snapshots[0]
	assert.True(t, first.Locked)
	assert.Equal(t, 0.0, first.U[1])
}

func TestWriteSummary(t *testing.T) {
	res := &Result{
		Method:   "RungeKutta3",
		Accuracy: 0.1,
		SimTime:  2,
		Wall:     500 * time.Millisecond,
		Stats: events.Stats{
			StepsTaken:        4,
			StepsAttempted:    5,
			ErrorTestFailures: 1,
			Realizations:      20,
			Projections:       3,
		},
	}

	var buf bytes.Buffer
	res.WriteSummary(&buf)
	assert.Equal(t, strings.Join([]string{
		"Done -- took 4 steps in 0.5s for 2s sim (avg step=500ms) 100ms/eval",
		"Using Integrator RungeKutta3 at accuracy 0.1:",
		"# STEPS/ATTEMPTS = 4/5",
		"# ERR TEST FAILS = 1",
		"# REALIZE/PROJECT = 20/3",
	}, "\n")+"\n", buf.String())
}

func TestWriteSummaryNoSteps(t *testing.T) {
	var buf bytes.Buffer
	(&Result{Method: "Euler"}).WriteSummary(&buf)
	assert.Contains(t, buf.String(), "(avg step=0ms) 0ms/eval")
}

func TestMetadata(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Lock.LockAngleDeg = 180
	res := &Result{
		Name:        "default",
		Method:      "RungeKutta3",
		Accuracy:    0.1,
		Lengths:     []float64{4, 4, 4},
		Stats:       events.Stats{StepsTaken: 3, Events: 2},
		Metrics:     map[string]float64{"energy_drift": 0.5},
		Transitions: make([]lock.Transition, 2),
	}

	meta := res.Metadata(cfg)
	assert.Equal(t, "default", meta.Name)
	assert.Equal(t, "RungeKutta3", meta.Integrator)
	assert.Equal(t, 20.0, meta.RunTime)
	assert.InDelta(t, 3.141592653589793, meta.Lock.LockAngle, 1e-15)
	assert.Equal(t, -20000.0, meta.Lock.Low)
	assert.Equal(t, 2, meta.Transitions)
	assert.Equal(t, 3, meta.Stats["steps_taken"])
	assert.Equal(t, 2, meta.Stats["events"])
	assert.Equal(t, 0.5, meta.Metrics["energy_drift"])
}

func TestVariants(t *testing.T) {
	base := config.DefaultConfig()
	cfgs, err := Variants(base, "band", []float64{100, 200})
	require.NoError(t, err)
	require.Len(t, cfgs, 2)
	assert.Equal(t, "default-band-100", cfgs[0].Name)
	assert.Equal(t, -200.0, cfgs[1].Lock.Low)
	assert.Equal(t, 200.0, cfgs[1].Lock.High)
	assert.Equal(t, -20000.0, base.Lock.Low, "base must not change")

	_, err = Variants(base, "mass", []float64{1})
	assert.Error(t, err)
}

func TestSweep(t *testing.T) {
	cfgs, err := Variants(shortConfig(), "restitution", []float64{0, 0.5, 1})
	require.NoError(t, err)

	results, err := Sweep(context.Background(), cfgs, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, cfgs[i].Name, res.Name)
		assert.Len(t, res.Snapshots, 6)
	}
}

func TestSweepFailure(t *testing.T) {
	bad := shortConfig()
	bad.Name = "broken"
	bad.Integrator.Method = "nope"

	_, err := Sweep(context.Background(), []*config.Config{shortConfig(), bad}, 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

// constraintWatch records the constraint flags at every report.
type constraintWatch struct {
	exp       *Experiment
	lockOn    []bool
	impulseOn int
}

func (w *constraintWatch) OnStep(t, dt float64, accepted bool) {}
func (w *constraintWatch) OnEvent(name string, t float64)        {}

func (w *constraintWatch) OnReport(name string, t float64) {
	w.lockOn = append(w.lockOn, !w.exp.leg.Lock.IsDisabled(w.exp.state))
	if !w.exp.leg.Impulse.IsDisabled(w.exp.state) {
		w.impulseOn++
	}
}

func TestSnapshotsCarryConstraintState(t *testing.T) {
	for _, preset := range []string{"default", "start-locked"} {
		t.Run(preset, func(t *testing.T) {
			cfg := config.GetPreset(preset)
			cfg.RunTime = 0.5
			cfg.ReportInterval = 0.1

			w := &constraintWatch{}
			exp, err := New(cfg, Options{Observer: w})
			require.NoError(t, err)
			w.exp = exp

			res, err := exp.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, w.lockOn, len(res.Snapshots))
			for i, snap := range res.Snapshots {
				assert.Equal(t, w.lockOn[i], snap.Locked, "report %d", i)
			}
			assert.Zero(t, w.impulseOn)
		})
	}
}
