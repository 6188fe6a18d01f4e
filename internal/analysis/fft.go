package analysis

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/san-kum/jointlock/internal/recorder"
)

// FFT returns the len(data)/2+1 non-negative frequency coefficients of a
// real signal of any length.
func FFT(data []float64) []complex128 {
	if len(data) == 0 {
		return nil
	}
	return fourier.NewFFT(len(data)).Coefficients(nil, data)
}

// PowerSpectrum returns the magnitudes of the non-negative frequency bins of
// data after removing its mean. Every sample is used.
func PowerSpectrum(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))
	centred := make([]float64, len(data))
	for i, v := range data {
		centred[i] = v - mean
	}

	coeff := FFT(centred)
	ps := make([]float64, len(coeff))
	for i, c := range coeff {
		ps[i] = cmplx.Abs(c)
	}
	return ps
}

// DominantFrequency returns the strongest non-zero frequency in Hz of one
// joint's angle, sampled every interval seconds. It is zero when the joint
// does not move.
func DominantFrequency(snaps []recorder.Snapshot, joint int, interval float64) float64 {
	data := make([]float64, 0, len(snaps))
	for _, s := range snaps {
		if joint < len(s.Q) {
			data = append(data, s.Q[joint])
		}
	}
	ps := PowerSpectrum(data)
	if len(ps) < 2 {
		return 0
	}
	best := 1
	for i := 2; i < len(ps); i++ {
		if ps[i] > ps[best] {
			best = i
		}
	}
	if ps[best] < 1e-12 {
		return 0
	}
	return fourier.NewFFT(len(data)).Freq(best) / interval
}
