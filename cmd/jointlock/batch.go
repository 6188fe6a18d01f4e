package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/san-kum/jointlock/internal/automation"
	"github.com/san-kum/jointlock/internal/config"
)

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	logger, err := newLogger(os.Stderr, logLevel, logJSON)
	if err != nil {
		return err
	}

	cfgs := make([]*config.Config, len(sc.Steps))
	for i := range sc.Steps {
		if cfgs[i], err = sc.Config(i); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, runErr := automation.RunScenario(ctx, sc, logger)
	if err := tabulate(results, cfgs[:len(results)]); err != nil {
		return err
	}
	return runErr
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(os.Stderr, logLevel, logJSON)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := automation.RunMonteCarlo(ctx, &automation.MonteCarloConfig{
		Base:       base,
		PerturbDeg: perturbDeg,
		NumTrials:  trials,
		Seed:       seed,
		Workers:    workers,
	}, logger)
	if err != nil {
		return err
	}

	for _, r := range results {
		fmt.Printf("trial %3d: init=[%.2f %.2f %.2f] deg stable=%t energy_loss=%.4g\n",
			r.TrialID, r.InitDeg[0], r.InitDeg[1], r.InitDeg[2], r.Stable, r.Metrics["energy_loss"])
	}
	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("stable: %d  unstable: %d\n", stable, unstable)
	return nil
}
