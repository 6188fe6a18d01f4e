package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/jointlock/internal/export"
	"github.com/san-kum/jointlock/internal/recorder"
	"github.com/san-kum/jointlock/internal/storage"
	"github.com/san-kum/jointlock/internal/viz"
)

// kneeJoint is the coordinate the lock acts on.
const kneeJoint = 1

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	t := resultTable("ID", "NAME", "TIME", "RUN TIME", "INTEG", "ACCURACY", "LOCK ANGLE", "LOCKS")
	for _, run := range runs {
		t.Row(
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.2fs", run.RunTime),
			run.Integrator,
			fmt.Sprintf("%g", run.Accuracy),
			fmt.Sprintf("%g°", run.Lock.LockAngle*180/math.Pi),
			fmt.Sprintf("%d", run.Transitions),
		)
	}
	fmt.Println(t.Render())
	return nil
}

// loadRun returns the named run, or the latest one when args is empty.
func loadRun(args []string) (*storage.RunMetadata, []recorder.Snapshot, error) {
	st := storage.New(dataDir)
	var runID string
	if len(args) > 0 {
		runID = args[0]
	} else {
		latest, err := st.Latest()
		if err != nil {
			return nil, nil, err
		}
		runID = latest
	}
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	snaps, err := st.LoadSnapshots(runID)
	if err != nil {
		return nil, nil, err
	}
	return meta, snaps, nil
}

func replayRun(cmd *cobra.Command, args []string) error {
	meta, snaps, err := loadRun(args)
	if err != nil {
		return err
	}
	return viz.Run(snaps, viz.Options{
		Title: meta.Name,
		FPS:   fps,
		Joint: kneeJoint,
		Theme: theme,
	})
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, snaps, err := loadRun(args)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("integrator: %s at accuracy %g\n", meta.Integrator, meta.Accuracy)
	fmt.Printf("samples: %d, lock transitions: %d\n\n", len(snaps), meta.Transitions)

	series := []struct {
		caption string
		value   func(recorder.Snapshot) float64
	}{
		{"knee angle (rad)", func(s recorder.Snapshot) float64 { return s.Q[kneeJoint] }},
		{"knee rate (rad/s)", func(s recorder.Snapshot) float64 { return s.U[kneeJoint] }},
		{"lock reaction (0 when free)", func(s recorder.Snapshot) float64 {
			if !s.Locked {
				return 0
			}
			return s.Multiplier
		}},
	}
	for _, ser := range series {
		data := make([]float64, len(snaps))
		for i, s := range snaps {
			data[i] = ser.value(s)
		}
		graph := asciigraph.Plot(downsample(data, 200),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(ser.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	if len(meta.Metrics) > 0 {
		fmt.Println("metrics:")
		for name, val := range meta.Metrics {
			fmt.Printf("  %s: %.6g\n", name, val)
		}
	}
	return nil
}

// downsample keeps at most n evenly spaced points.
func downsample(data []float64, n int) []float64 {
	if len(data) <= n {
		return data
	}
	out := make([]float64, n)
	stride := float64(len(data)-1) / float64(n-1)
	for i := range out {
		out[i] = data[int(math.Round(float64(i)*stride))]
	}
	return out
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, snaps, err := loadRun(args)
	if err != nil {
		return err
	}
	return writeFile(outFile, func(w io.Writer) error {
		return storage.ExportJSON(w, *meta, snaps)
	})
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, snaps, err := loadRun(args)
	if err != nil {
		return err
	}
	return writeFile(outFile, func(w io.Writer) error {
		return storage.WriteCSV(w, snaps)
	})
}

func exportSVG(cmd *cobra.Command, args []string) error {
	meta, snaps, err := loadRun(args)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return fmt.Errorf("run %s has no snapshots", meta.ID)
	}

	var svg string
	if trace {
		svg = export.TrajectoryToSVG(export.TipPath(snaps), 600, 600, export.FreeColor)
	} else {
		reach := 0.0
		for _, l := range meta.Lengths {
			reach += l
		}
		svg = export.FrameSVG(snaps[nearest(snaps, atTime)], viz.Square(reach), 5)
	}
	return writeFile(outFile, func(w io.Writer) error {
		_, err := io.Copy(w, strings.NewReader(svg+"\n"))
		return err
	})
}

// nearest returns the index of the snapshot closest to t.
func nearest(snaps []recorder.Snapshot, t float64) int {
	best := 0
	for i, s := range snaps {
		if math.Abs(s.Time-t) < math.Abs(snaps[best].Time-t) {
			best = i
		}
	}
	return best
}
