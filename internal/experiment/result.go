package experiment

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/jointlock/internal/config"
	"github.com/san-kum/jointlock/internal/events"
	"github.com/san-kum/jointlock/internal/lock"
	"github.com/san-kum/jointlock/internal/recorder"
	"github.com/san-kum/jointlock/internal/storage"
)

type Result struct {
	Name            string
	Method          string
	Accuracy        float64
	SimTime         float64
	Wall            time.Duration
	Stats           events.Stats
	Snapshots       []recorder.Snapshot
	Transitions     []lock.Transition
	Metrics         map[string]float64
	Lengths         []float64
	InvariantChecks int
}

// WriteSummary prints the integrator summary block.
func (r *Result) WriteSummary(w io.Writer) {
	secs := r.Wall.Seconds()
	var avgStep, perEval float64
	if r.Stats.StepsTaken > 0 {
		avgStep = 1000 * r.SimTime / float64(r.Stats.StepsTaken)
	}
	if r.Stats.Realizations > 0 {
		perEval = 1000 * r.SimTime / float64(r.Stats.Realizations)
	}
	fmt.Fprintf(w, "Done -- took %d steps in %gs for %gs sim (avg step=%gms) %gms/eval\n",
		r.Stats.StepsTaken, secs, r.SimTime, avgStep, perEval)
	fmt.Fprintf(w, "Using Integrator %s at accuracy %g:\n", r.Method, r.Accuracy)
	fmt.Fprintf(w, "# STEPS/ATTEMPTS = %d/%d\n", r.Stats.StepsTaken, r.Stats.StepsAttempted)
	fmt.Fprintf(w, "# ERR TEST FAILS = %d\n", r.Stats.ErrorTestFailures)
	fmt.Fprintf(w, "# REALIZE/PROJECT = %d/%d\n", r.Stats.Realizations, r.Stats.Projections)
}

// Metadata describes the run for storage.
func (r *Result) Metadata(cfg *config.Config) storage.RunMetadata {
	return storage.RunMetadata{
		Name:           r.Name,
		Integrator:     r.Method,
		Accuracy:       r.Accuracy,
		RunTime:        cfg.RunTime,
		ReportInterval: cfg.ReportInterval,
		Lengths:        append([]float64(nil), r.Lengths...),
		Lock: storage.LockSummary{
			Restitution: cfg.Lock.Restitution,
			LockAngle:   cfg.LockAngle(),
			Low:         cfg.Lock.Low,
			High:        cfg.Lock.High,
		},
		Transitions: len(r.Transitions),
		Stats: map[string]int{
			"steps_taken":         r.Stats.StepsTaken,
			"steps_attempted":     r.Stats.StepsAttempted,
			"error_test_failures": r.Stats.ErrorTestFailures,
			"realizations":        r.Stats.Realizations,
			"projections":         r.Stats.Projections,
			"events":              r.Stats.Events,
			"reports":             r.Stats.Reports,
		},
		Metrics: r.Metrics,
	}
}

// InitialReport is the realized starting configuration, before the
// stepper projects it.
type InitialReport struct {
	Q           []float64
	U           []float64
	QErr        []float64
	UErr        []float64
	UDotErr     []float64
	Multipliers []float64
	QDot        []float64
	UDot        []float64
	QDotDot     []float64
}

// InitialReport returns the starting configuration. It is only meaningful
// before Run.
func (e *Experiment) InitialReport() InitialReport {
	s := e.state
	sys := e.leg.System
	// Pins carry no position constraints and have qdot = u, so qerr is
	// empty and qdotdot is udot.
	return InitialReport{
		Q:           s.Q(),
		U:           s.U(),
		QErr:        []float64{},
		UErr:        sys.UErr(s),
		UDotErr:     sys.UDotErr(s),
		Multipliers: s.Multipliers(),
		QDot:        s.QDot(),
		UDot:        s.UDot(),
		QDotDot:     s.UDot(),
	}
}

func (r InitialReport) Write(w io.Writer) {
	rows := []struct {
		name string
		v    []float64
	}{
		{"q", r.Q},
		{"u", r.U},
		{"qerr", r.QErr},
		{"uerr", r.UErr},
		{"udoterr", r.UDotErr},
		{"mults", r.Multipliers},
		{"qdot", r.QDot},
		{"udot", r.UDot},
		{"qdotdot", r.QDotDot},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s=%s\n", row.name, vector(row.v))
	}
}

func vector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return "~[" + strings.Join(parts, " ") + "]"
}
