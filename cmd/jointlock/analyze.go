package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/jointlock/internal/analysis"
	"github.com/san-kum/jointlock/internal/optim"
)

var jointNames = []string{"thigh", "knee", "ankle"}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, snaps, err := loadRun(args)
	if err != nil {
		return err
	}
	if len(snaps) < 2 {
		return fmt.Errorf("run %s has too few snapshots to analyse", meta.ID)
	}

	fmt.Printf("run: %s\n\n", meta.ID)
	fmt.Println("knee phase portrait (q vs u, # = locked):")
	fmt.Print(analysis.Phase(snaps, kneeJoint).ASCII(70, 20))

	section := analysis.Section(snaps, 0, kneeJoint, meta.Lock.LockAngle)
	fmt.Printf("\nthigh state at %d knee lock-angle crossings:\n", len(section.Points))
	fmt.Print(section.ASCII(70, 12))

	fmt.Println("\ndominant frequencies:")
	for j, name := range jointNames {
		f := analysis.DominantFrequency(snaps, j, meta.ReportInterval)
		fmt.Printf("  %-6s %.4g Hz\n", name, f)
	}
	return nil
}

// parseGrid turns "name=v1,v2" entries into names and value ranges.
func parseGrid(entries []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(entries))
	ranges := make([][]float64, 0, len(entries))
	for _, entry := range entries {
		name, list, ok := strings.Cut(entry, "=")
		if !ok || name == "" || list == "" {
			return nil, nil, fmt.Errorf("invalid grid entry %q, want name=v1,v2", entry)
		}
		var values []float64
		for _, field := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid value in %q: %w", entry, err)
			}
			values = append(values, v)
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	return names, ranges, nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(os.Stderr, logLevel, logJSON)
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(gridSpecs)
	if err != nil {
		return err
	}
	g, err := optim.NewGridSearch(names, ranges, workers, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	best, err := g.Search(ctx, base, minimize)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(best.Params))
	for k := range best.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	t := resultTable("PARAMETER", "VALUE")
	for _, k := range keys {
		t.Row(k, fmt.Sprintf("%g", best.Params[k]))
	}
	t.Row(minimize, fmt.Sprintf("%.6g", best.Value))
	fmt.Printf("best of %s: %s\n", minimize, best.Result.Name)
	fmt.Println(t.Render())
	return nil
}
