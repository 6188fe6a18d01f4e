package recorder

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/jointlock/internal/events"
	"github.com/san-kum/jointlock/internal/integrators"
	"github.com/san-kum/jointlock/internal/multibody"
)

type fakeLock struct {
	locked bool
	lambda float64
}

func (f *fakeLock) IsLocked(*multibody.State) bool      { return f.locked }
func (f *fakeLock) Multiplier(*multibody.State) float64 { return f.lambda }

func pendulum(t *testing.T) (*multibody.System, *multibody.State) {
	t.Helper()
	sys := multibody.NewSystem(mgl64.Vec3{0, -9.8, 0})
	mob, err := sys.AddPin(sys.Ground(), multibody.Body{Name: "rod", Mass: 2, Inertia: 0.1, COM: 0.5, Length: 1})
	require.NoError(t, err)
	s := sys.RealizeTopology()
	mob.SetOneQ(s, 0.4)
	return sys, s
}

func TestNewRejectsBadInterval(t *testing.T) {
	sys, _ := pendulum(t)
	for _, interval := range []float64{0, -1} {
		_, err := New(sys, &fakeLock{}, Options{Interval: interval})
		assert.ErrorIs(t, err, ErrInvalidInterval)
	}
}

func TestRecordFree(t *testing.T) {
	sys, s := pendulum(t)
	var out bytes.Buffer
	r, err := New(sys, &fakeLock{}, Options{Interval: 0.1, Output: &out, Steps: func() int { return 7 }})
	require.NoError(t, err)

	require.NoError(t, r.Handle(s))
	require.Equal(t, 1, r.Count())

	line := out.String()
	assert.True(t, strings.HasPrefix(line, "  7:     0 mom="), line)
	assert.Contains(t, line, " E=")
	assert.Contains(t, line, " FREE")
	assert.NotContains(t, line, "lambda")

	snap, err := r.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 7, snap.Step)
	assert.False(t, snap.Locked)
	assert.Equal(t, []float64{0.4}, snap.Q)
	assert.Len(t, snap.Pins, 2)
	e, err := sys.CalcEnergy(s)
	require.NoError(t, err)
	assert.InDelta(t, e, snap.Energy, 1e-12)
}

func TestRecordLocked(t *testing.T) {
	sys, s := pendulum(t)
	s.SetEventTriggers([]float64{0.25, -3})
	var out bytes.Buffer
	r, err := New(sys, &fakeLock{locked: true, lambda: 1234.5}, Options{Interval: 0.1, Output: &out})
	require.NoError(t, err)

	r.Record(s)
	line := out.String()
	assert.Contains(t, line, " LOCKED lambda=1234.5")
	assert.Contains(t, line, "Triggers=~[0.25 -3]")

	snap, err := r.Get(0)
	require.NoError(t, err)
	assert.True(t, snap.Locked)
	assert.Equal(t, 1234.5, snap.Multiplier)
	assert.Equal(t, []float64{0.25, -3}, snap.Triggers)
}

func TestSnapshotsAreCopies(t *testing.T) {
	sys, s := pendulum(t)
	r, err := New(sys, &fakeLock{}, Options{Interval: 0.1})
	require.NoError(t, err)
	r.Record(s)

	snap, err := r.Get(0)
	require.NoError(t, err)
	snap.Q[0] = 99
	snap.Pins[1] = mgl64.Vec3{}

	all := r.Snapshots()
	all[0].U = append(all[0].U, 5)

	again, err := r.Get(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.4}, again.Q)
	assert.Len(t, again.U, 1)
	assert.NotEqual(t, mgl64.Vec3{}, again.Pins[1])

	// Mutating the live state after recording does not reach the snapshot.
	require.NoError(t, s.SetQ([]float64{-1}))
	again, _ = r.Get(0)
	assert.Equal(t, []float64{0.4}, again.Q)
}

func TestOutOfOrderDropped(t *testing.T) {
	sys, s := pendulum(t)
	r, err := New(sys, &fakeLock{}, Options{Interval: 0.1})
	require.NoError(t, err)

	s.SetTime(1)
	r.Record(s)
	r.Record(s)
	s.SetTime(0.5)
	r.Record(s)
	assert.Equal(t, 1, r.Count())

	s.SetTime(1.5)
	r.Record(s)
	assert.Equal(t, 2, r.Count())
}

func TestGetOutOfRange(t *testing.T) {
	sys, _ := pendulum(t)
	r, err := New(sys, &fakeLock{}, Options{Interval: 0.1})
	require.NoError(t, err)
	_, err = r.Get(0)
	assert.Error(t, err)
	_, err = r.Get(-1)
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	sys, s := pendulum(t)
	r, err := New(sys, &fakeLock{}, Options{Interval: 0.1})
	require.NoError(t, err)
	r.Record(s)
	r.Clear()
	assert.Zero(t, r.Count())
	assert.Empty(t, r.Snapshots())

	// Times restart after a clear.
	s.SetTime(0)
	r.Record(s)
	assert.Equal(t, 1, r.Count())
}

func TestPeriodicRecording(t *testing.T) {
	sys, s := pendulum(t)
	ts, err := events.NewTimeStepper(sys, integrators.NewRK3(), events.Options{})
	require.NoError(t, err)
	r, err := New(sys, &fakeLock{}, Options{Interval: 0.1, Steps: func() int { return ts.Stats().StepsTaken }})
	require.NoError(t, err)
	require.NoError(t, ts.AddPeriodic(r))

	require.NoError(t, ts.Initialize(s))
	require.NoError(t, ts.StepTo(context.Background(), 1))

	snaps := r.Snapshots()
	require.Len(t, snaps, 11)
	for k, snap := range snaps {
		assert.InDelta(t, 0.1*float64(k), snap.Time, 1e-9)
		if k > 0 {
			assert.Greater(t, snap.Time, snaps[k-1].Time)
			assert.GreaterOrEqual(t, snap.Step, snaps[k-1].Step)
		}
	}
}
