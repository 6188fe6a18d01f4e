package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/san-kum/jointlock/internal/config"
	"github.com/san-kum/jointlock/internal/experiment"
	"github.com/san-kum/jointlock/internal/storage"
	"github.com/san-kum/jointlock/internal/telemetry"
)

func newLogger(w io.Writer, level string, asJSON bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// resolveConfig layers the preset, then the config file, then any flag the
// user set explicitly.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("name") {
		cfg.Name = runName
	}
	if f.Changed("time") {
		cfg.RunTime = runTime
	}
	if f.Changed("interval") {
		cfg.ReportInterval = interval
	}
	if f.Changed("integrator") {
		cfg.Integrator.Method = method
	}
	if f.Changed("accuracy") {
		cfg.Integrator.Accuracy = accuracy
	}
	if f.Changed("restitution") {
		cfg.Lock.Restitution = restitution
	}
	if f.Changed("lock-angle") {
		cfg.Lock.LockAngleDeg = lockAngle
	}
	if f.Changed("band") {
		cfg.Lock.Low, cfg.Lock.High = -band, band
	}
	if f.Changed("thigh") {
		cfg.Init.ThighDeg = thighDeg
	}
	if f.Changed("calf") {
		cfg.Init.CalfDeg = calfDeg
	}
	if f.Changed("foot") {
		cfg.Init.FootDeg = footDeg
	}
	if f.Changed("calf-rate") {
		cfg.Init.CalfRate = calfRate
	}
	if f.Changed("start-locked") {
		cfg.Lock.StartLocked = startLocked
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(os.Stderr, logLevel, logJSON)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if quiet {
		out = nil
	}
	collector := telemetry.New(cfg.Integrator.Method)
	exp, err := experiment.New(cfg, experiment.Options{
		Output:   out,
		Logger:   logger,
		Observer: collector,
	})
	if err != nil {
		return err
	}

	if showInitial {
		exp.InitialReport().Write(os.Stdout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	res.WriteSummary(os.Stdout)

	if metricsOut != "" {
		collector.Finish(res.Stats, res.Wall)
		if err := writeFile(metricsOut, collector.WriteText); err != nil {
			return err
		}
	}

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(res.Metadata(cfg), res.Snapshots)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(os.Stderr, logLevel, logJSON)
	if err != nil {
		return err
	}
	cfgs, err := experiment.Variants(base, sweepParam, sweepValues)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := experiment.Sweep(ctx, cfgs, workers, logger)
	if err != nil {
		return err
	}

	return tabulate(results, cfgs)
}

// tabulate saves each result unless --no-save is set and prints one row
// per run.
func tabulate(results []*experiment.Result, cfgs []*config.Config) error {
	var st *storage.Store
	if !noSave {
		st = storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	t := resultTable("NAME", "STEPS", "LOCKS", "LOCKED", "PEAK LAMBDA", "ENERGY LOSS", "RUN ID")
	for i, res := range results {
		runID := "-"
		if st != nil {
			var err error
			if runID, err = st.Save(res.Metadata(cfgs[i]), res.Snapshots); err != nil {
				return err
			}
		}
		t.Row(
			res.Name,
			strconv.Itoa(res.Stats.StepsTaken),
			strconv.Itoa(len(res.Transitions)),
			fmt.Sprintf("%.1f%%", 100*res.Metrics["locked_fraction"]),
			fmt.Sprintf("%.4g", res.Metrics["peak_multiplier"]),
			fmt.Sprintf("%.4g", res.Metrics["energy_loss"]),
			runID,
		)
	}
	fmt.Println(t.Render())
	return nil
}

// resultTable is a borderless table with an underlined header row.
func resultTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).PaddingRight(2)
			}
			return lipgloss.NewStyle().PaddingRight(2)
		}).
		Headers(headers...)
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := "jointlock.yaml"
	if len(args) > 0 {
		path = args[0]
	}
	cfg := config.DefaultConfig()
	if preset != "" {
		if cfg = config.GetPreset(preset); cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func listPresets() []string {
	return config.ListPresets()
}

// writeFile creates path and hands it to write, or writes to stdout when
// path is empty.
func writeFile(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
