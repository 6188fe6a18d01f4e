package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/jointlock/internal/experiment"
)

var (
	dataDir    string
	logLevel   string
	logJSON    bool
	configFile string
	preset     string

	runName     string
	runTime     float64
	interval    float64
	method      string
	accuracy    float64
	restitution float64
	lockAngle   float64
	band        float64
	thighDeg    float64
	calfDeg     float64
	footDeg     float64
	calfRate    float64
	startLocked bool
	showInitial bool
	quiet       bool
	noSave      bool
	metricsOut  string

	sweepParam  string
	sweepValues []float64
	workers     int

	gridSpecs  []string
	minimize   string
	perturbDeg float64
	trials     int
	seed       int64

	fps   int
	theme string

	outFile string
	atTime  float64
	trace   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "jointlock",
		Short:         "three-link leg with an impulsive knee lock",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".jointlock", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the leg simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addModelFlags(runCmd)
	runCmd.Flags().BoolVar(&showInitial, "show-initial", false, "print the initial configuration before stepping")
	runCmd.Flags().BoolVar(&quiet, "quiet", false, "suppress the per-report diagnostic lines")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "write Prometheus text metrics to this file")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run one simulation per parameter value in parallel",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addModelFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "lock_angle", fmt.Sprintf("parameter to vary %v", experiment.SweepParams))
	sweepCmd.Flags().Float64SliceVar(&sweepValues, "values", []float64{-30, 0, 30}, "comma separated values")
	sweepCmd.Flags().IntVar(&workers, "workers", 4, "parallel runs (0 = unbounded)")
	sweepCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the runs")

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "search a parameter grid for the run that minimises a metric",
		Args:  cobra.NoArgs,
		RunE:  runOptimize,
	}
	addModelFlags(optimizeCmd)
	optimizeCmd.Flags().StringArrayVar(&gridSpecs, "grid", []string{"lock_angle=-30,0,30", "band=5000,20000"}, "name=v1,v2 (repeatable)")
	optimizeCmd.Flags().StringVar(&minimize, "minimize", "energy_drift", "metric to minimise")
	optimizeCmd.Flags().IntVar(&workers, "workers", 4, "parallel runs (0 = unbounded)")

	scenarioCmd := &cobra.Command{
		Use:   "scenario <file>",
		Short: "run the steps of a YAML scenario in order",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the runs")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "run trials from randomly perturbed initial joint angles",
		Args:  cobra.NoArgs,
		RunE:  runMonteCarlo,
	}
	addModelFlags(monteCarloCmd)
	monteCarloCmd.Flags().Float64Var(&perturbDeg, "perturb", 5, "perturbation half-width in degrees")
	monteCarloCmd.Flags().IntVar(&trials, "trials", 10, "number of trials")
	monteCarloCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 = time based)")
	monteCarloCmd.Flags().IntVar(&workers, "workers", 4, "parallel runs (0 = unbounded)")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "knee phase portrait, lock-angle section and joint frequencies",
		Args:  cobra.MaximumNArgs(1),
		RunE:  analyzeRun,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	replayCmd := &cobra.Command{
		Use:   "replay [run_id]",
		Short: "replay a run in the terminal (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  replayRun,
	}
	replayCmd.Flags().IntVar(&fps, "fps", 30, "frame rate")
	replayCmd.Flags().StringVar(&theme, "theme", "cyberpunk", "color theme")

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot knee angle, knee rate and lock reaction",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run snapshots to CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render the leg pose at a time, or the foot trace, as SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")
	exportSVGCmd.Flags().Float64Var(&atTime, "at", 0, "simulation time of the frame")
	exportSVGCmd.Flags().BoolVar(&trace, "trace", false, "draw the foot tip trajectory instead of a frame")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range listPresets() {
				fmt.Println(p)
			}
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "manage config files",
	}
	configInitCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a config file (default jointlock.yaml)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initConfig,
	}
	configInitCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(runCmd, sweepCmd, optimizeCmd, scenarioCmd, monteCarloCmd, analyzeCmd,
		listCmd, replayCmd, plotCmd, exportJSONCmd, exportCSVCmd, exportSVGCmd, presetsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("EXCEPTION THROWN: %s\n", err)
		os.Exit(1)
	}
}

func addModelFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&runName, "name", "", "run name")
	f.Float64Var(&runTime, "time", 20, "simulated run time in seconds")
	f.Float64Var(&interval, "interval", 0.01, "report interval in seconds")
	f.StringVar(&method, "integrator", "rk3", "integrator (euler, rk3, rk4, rk45, verlet)")
	f.Float64Var(&accuracy, "accuracy", 0.1, "integrator accuracy")
	f.Float64Var(&restitution, "restitution", 0, "knee coefficient of restitution (sets the impact rate in the lock history; the locked knee is held at rest)")
	f.Float64Var(&lockAngle, "lock-angle", 0, "knee lock angle in degrees")
	f.Float64Var(&band, "band", 20000, "unlock when the lock reaction leaves [-band, band]")
	f.Float64Var(&thighDeg, "thigh", 90, "initial thigh angle in degrees")
	f.Float64Var(&calfDeg, "calf", 90, "initial knee angle in degrees")
	f.Float64Var(&footDeg, "foot", 0, "initial ankle angle in degrees")
	f.Float64Var(&calfRate, "calf-rate", 0, "initial knee rate in rad/s")
	f.BoolVar(&startLocked, "start-locked", false, "start with the knee locked")
}
