package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/san-kum/jointlock/internal/recorder"
)

func sineRun(n int, interval, freq float64) []recorder.Snapshot {
	snaps := make([]recorder.Snapshot, n)
	w := 2 * math.Pi * freq
	for i := range snaps {
		t := float64(i) * interval
		snaps[i] = recorder.Snapshot{
			Time:   t,
			Q:      []float64{0.1 * t, math.Sin(w * t), 0},
			U:      []float64{0.1, w * math.Cos(w*t), 0},
			Locked: i%4 == 0,
		}
	}
	return snaps
}

func TestFFTImpulse(t *testing.T) {
	out := FFT([]float64{1, 0, 0, 0})
	if len(out) != 3 {
		t.Fatalf("expected 3 coefficients, got %d", len(out))
	}
	for i, c := range out {
		if math.Abs(real(c)-1) > 1e-12 || math.Abs(imag(c)) > 1e-12 {
			t.Errorf("bin %d = %v, want 1", i, c)
		}
	}
	if FFT(nil) != nil {
		t.Error("empty input should have no coefficients")
	}
}

func TestFFTAnyLength(t *testing.T) {
	out := FFT([]float64{1, 2, 3, 4, 5, 6})
	if len(out) != 4 {
		t.Fatalf("expected 4 coefficients, got %d", len(out))
	}
	if math.Abs(real(out[0])-21) > 1e-12 {
		t.Errorf("dc bin %v, want 21", out[0])
	}
	// Nyquist bin of a length-6 signal is the alternating sum.
	if math.Abs(real(out[3])+3) > 1e-12 || math.Abs(imag(out[3])) > 1e-12 {
		t.Errorf("nyquist bin %v, want -3", out[3])
	}
}

func TestPowerSpectrumUsesEverySample(t *testing.T) {
	ps := PowerSpectrum([]float64{5, 5, 5, 5, 5})
	if len(ps) != 3 {
		t.Fatalf("expected 3 bins from 5 samples, got %d", len(ps))
	}
	for i, v := range ps {
		if v > 1e-12 {
			t.Errorf("bin %d = %g for a constant signal", i, v)
		}
	}
	if got := len(PowerSpectrum(make([]float64, 2001))); got != 1001 {
		t.Errorf("expected 1001 bins from 2001 samples, got %d", got)
	}
	if PowerSpectrum([]float64{1}) != nil {
		t.Error("single sample should have no spectrum")
	}
}

func TestDominantFrequency(t *testing.T) {
	// 2001 samples at 0.01 s: bins are 1/20.01 Hz apart.
	got := DominantFrequency(sineRun(2001, 0.01, 2), 1, 0.01)
	binWidth := 1 / (2001 * 0.01)
	if math.Abs(got-2) > binWidth {
		t.Errorf("dominant frequency %g, want 2 ± %g", got, binWidth)
	}

	still := make([]recorder.Snapshot, 64)
	for i := range still {
		still[i] = recorder.Snapshot{Q: []float64{0, 0.3, 0}}
	}
	if DominantFrequency(still, 1, 0.01) != 0 {
		t.Error("a still joint has no dominant frequency")
	}
}

func TestPhase(t *testing.T) {
	snaps := sineRun(8, 0.1, 1)
	snaps = append(snaps, recorder.Snapshot{Q: []float64{0}})
	p := Phase(snaps, 1)
	if len(p.Points) != 8 {
		t.Fatalf("expected 8 points, got %d", len(p.Points))
	}
	if !p.Points[0].Locked || p.Points[1].Locked {
		t.Error("lock flags not carried")
	}

	art := p.ASCII(20, 10)
	lines := strings.Split(strings.TrimRight(art, "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("expected 10 rows, got %d", len(lines))
	}
	if !strings.Contains(art, "#") || !strings.Contains(art, "•") {
		t.Errorf("expected both locked and free markers:\n%s", art)
	}
}

func TestSection(t *testing.T) {
	snaps := []recorder.Snapshot{
		{Q: []float64{0, -1}, U: []float64{0, 0}},
		{Q: []float64{1, 1}, U: []float64{2, 0}},
		{Q: []float64{2, 2}, U: []float64{2, 0}},
		{Q: []float64{3, -2}, U: []float64{2, 0}, Locked: true},
	}
	s := Section(snaps, 0, 1, 0)
	if len(s.Points) != 2 {
		t.Fatalf("expected 2 crossings, got %d", len(s.Points))
	}
	if math.Abs(s.Points[0].X-0.5) > 1e-12 || math.Abs(s.Points[0].Y-1) > 1e-12 {
		t.Errorf("first crossing at %+v, want (0.5, 1)", s.Points[0])
	}
	if math.Abs(s.Points[1].X-2.5) > 1e-12 || !s.Points[1].Locked {
		t.Errorf("second crossing at %+v, want x=2.5 locked", s.Points[1])
	}
}

func TestEmptyPortrait(t *testing.T) {
	if (&Portrait{}).ASCII(10, 5) != "" {
		t.Error("empty portrait should render nothing")
	}
}
