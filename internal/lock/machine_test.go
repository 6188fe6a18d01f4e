package lock_test

import (
	"context"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/jointlock/internal/dynamo"
	"github.com/san-kum/jointlock/internal/events"
	"github.com/san-kum/jointlock/internal/integrators"
	"github.com/san-kum/jointlock/internal/lock"
	"github.com/san-kum/jointlock/internal/multibody"
)

type leg struct {
	sys     *multibody.System
	thigh   multibody.Mobilizer
	calf    multibody.Mobilizer
	foot    multibody.Mobilizer
	lock    *multibody.ConstantSpeed
	impulse *multibody.ConstantAcceleration
	state   *multibody.State
}

func newLeg() *leg {
	sys := multibody.NewSystem(mgl64.Vec3{0, -9.8, 0})
	thighDims := mgl64.Vec3{0.5, 2, 0.25}
	calfDims := mgl64.Vec3{0.25, 2, 0.125}

	thigh, err := sys.AddPin(sys.Ground(), multibody.Brick("thigh", thighDims, 1000, 10))
	Expect(err).NotTo(HaveOccurred())
	calf, err := sys.AddPin(thigh, multibody.Brick("calf", calfDims, 1000, 1))
	Expect(err).NotTo(HaveOccurred())
	foot, err := sys.AddPin(calf, multibody.Brick("foot", calfDims, 1000, 10))
	Expect(err).NotTo(HaveOccurred())

	lk, err := sys.AddConstantSpeed(calf, 0)
	Expect(err).NotTo(HaveOccurred())
	lk.SetDisabledByDefault(true)
	imp, err := sys.AddConstantAcceleration(calf, 0)
	Expect(err).NotTo(HaveOccurred())
	imp.SetDisabledByDefault(true)

	return &leg{sys: sys, thigh: thigh, calf: calf, foot: foot, lock: lk, impulse: imp, state: sys.RealizeTopology()}
}

func (l *leg) machine(cfg lock.Config) *lock.Machine {
	m, err := lock.New(l.sys, l.calf, l.lock, l.impulse, cfg, nil)
	Expect(err).NotTo(HaveOccurred())
	return m
}

func (l *leg) angularMomentum() float64 {
	mom, err := l.sys.CalcSystemMomentumAboutGroundOrigin(l.state)
	Expect(err).NotTo(HaveOccurred())
	return mom.Angular.Z()
}

func (l *leg) stepper(m *lock.Machine, invariantCalls *int) *events.TimeStepper {
	cfg := dynamo.DefaultConfig()
	cfg.Accuracy = 1e-6
	ts, err := events.NewTimeStepper(l.sys, integrators.NewRK45(), events.Options{
		Config: cfg,
		Invariant: func(s *multibody.State) error {
			*invariantCalls++
			return m.CheckInvariant(s)
		},
	})
	Expect(err).NotTo(HaveOccurred())
	ts.AddTriggered(m.LockOn())
	ts.AddTriggered(m.LockOff())
	return ts
}

var wideBand = lock.Config{Low: -1e12, High: 1e12}

var _ = Describe("Config", func() {
	DescribeTable("Validate",
		func(cfg lock.Config, ok bool) {
			err := cfg.Validate()
			if ok {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(err).To(MatchError(lock.ErrInvalidConfig))
			}
		},
		Entry("plastic", lock.Config{Restitution: 0, Low: -1, High: 1}, true),
		Entry("elastic", lock.Config{Restitution: 1, Low: -1, High: 1}, true),
		Entry("negative restitution", lock.Config{Restitution: -0.1, Low: -1, High: 1}, false),
		Entry("restitution above one", lock.Config{Restitution: 1.5, Low: -1, High: 1}, false),
		Entry("empty band", lock.Config{Low: 1, High: 1}, false),
		Entry("inverted band", lock.Config{Low: 2, High: -2}, false),
	)

	DescribeTable("BandDistance is the distance to the nearest edge",
		func(f, want float64) {
			cfg := lock.Config{Low: -100, High: 300}
			Expect(cfg.BandDistance(f)).To(BeNumerically("~", want, 1e-12))
		},
		Entry("at the middle", 100.0, 200.0),
		Entry("near high", 250.0, 50.0),
		Entry("near low", -50.0, 50.0),
		Entry("on high", 300.0, 0.0),
		Entry("on low", -100.0, 0.0),
		Entry("above high", 350.0, -50.0),
		Entry("below low", -150.0, -50.0),
	)

	It("names phases", func() {
		Expect(lock.Free.String()).To(Equal("FREE"))
		Expect(lock.Engaging.String()).To(Equal("ENGAGING"))
		Expect(lock.Locked.String()).To(Equal("LOCKED"))
	})
})

var _ = Describe("Machine", func() {
	var l *leg

	BeforeEach(func() {
		l = newLeg()
		Expect(l.state.SetQ([]float64{0.3, 0, 0.2})).To(Succeed())
		Expect(l.state.SetU([]float64{0.4, 1.5, -0.3})).To(Succeed())
	})

	It("rejects constraints on another joint", func() {
		_, err := lock.New(l.sys, l.thigh, l.lock, l.impulse, wideBand, nil)
		Expect(err).To(MatchError(lock.ErrInvalidConfig))
	})

	DescribeTable("Engage leaves the knee at -e times its incoming rate",
		func(e float64) {
			m := l.machine(lock.Config{Restitution: e, Low: -1e12, High: 1e12})
			uin := l.state.U()
			h0 := l.angularMomentum()

			stage, err := m.Engage(l.state)
			Expect(err).NotTo(HaveOccurred())
			Expect(stage).To(Equal(multibody.StageInstance))

			Expect(l.state.U()[1]).To(BeNumerically("~", -e*uin[1], 1e-12))
			Expect(l.lock.IsDisabled(l.state)).To(BeFalse())
			Expect(l.impulse.IsDisabled(l.state)).To(BeTrue())
			Expect(m.Phase()).To(Equal(lock.Locked))
			Expect(m.CheckInvariant(l.state)).To(Succeed())
			Expect(l.state.Q()).To(Equal([]float64{0.3, 0, 0.2}))

			// The impulse acts only across the knee, so momentum about the
			// hip is unchanged.
			Expect(l.angularMomentum()).To(BeNumerically("~", h0, 1e-9*math.Abs(h0)))

			hist := m.History()
			Expect(hist).To(HaveLen(1))
			Expect(hist[0].From).To(Equal(lock.Free))
			Expect(hist[0].To).To(Equal(lock.Locked))
			Expect(hist[0].UBefore).To(Equal(uin[1]))
			Expect(hist[0].UImpact).To(BeNumerically("~", -e*uin[1], 1e-12))
			Expect(hist[0].UAfter).To(BeZero())
		},
		Entry("perfectly plastic", 0.0),
		Entry("quarter", 0.25),
		Entry("half", 0.5),
		Entry("perfectly elastic", 1.0),
	)

	It("stops the knee exactly when restitution is zero", func() {
		m := l.machine(wideBand)
		_, err := m.Engage(l.state)
		Expect(err).NotTo(HaveOccurred())
		Expect(l.state.U()[1]).To(BeZero())
	})

	It("keeps the knee locked under the constraint afterwards", func() {
		m := l.machine(wideBand)
		_, err := m.Engage(l.state)
		Expect(err).NotTo(HaveOccurred())
		Expect(l.sys.Realize(l.state, multibody.StageAcceleration)).To(Succeed())
		Expect(l.state.UDot()[1]).To(BeZero())
		Expect(m.Multiplier(l.state)).NotTo(BeZero())
	})

	It("refuses to engage twice", func() {
		m := l.machine(wideBand)
		_, err := m.Engage(l.state)
		Expect(err).NotTo(HaveOccurred())
		_, err = m.Engage(l.state)
		Expect(err).To(MatchError(lock.ErrAlreadyLocked))
	})

	It("refuses to engage while the impulse is enabled", func() {
		m := l.machine(wideBand)
		l.impulse.Enable(l.state)
		_, err := m.Engage(l.state)
		Expect(err).To(MatchError(lock.ErrAlreadyLocked))
	})

	It("releases without touching velocities", func() {
		m := l.machine(wideBand)
		_, err := m.Engage(l.state)
		Expect(err).NotTo(HaveOccurred())
		u := l.state.U()

		stage, err := m.Release(l.state)
		Expect(err).NotTo(HaveOccurred())
		Expect(stage).To(Equal(multibody.StageInstance))
		Expect(l.state.U()).To(Equal(u))
		Expect(l.lock.IsDisabled(l.state)).To(BeTrue())
		Expect(l.impulse.IsDisabled(l.state)).To(BeTrue())
		Expect(m.Phase()).To(Equal(lock.Free))
		Expect(m.History()).To(HaveLen(2))
	})

	It("refuses to release a free joint", func() {
		m := l.machine(wideBand)
		_, err := m.Release(l.state)
		Expect(err).To(MatchError(lock.ErrNotLocked))
	})

	It("detects both constraints enabled", func() {
		m := l.machine(wideBand)
		l.lock.Enable(l.state)
		l.impulse.Enable(l.state)
		Expect(m.CheckInvariant(l.state)).To(MatchError(lock.ErrInvariant))
	})

	It("forces a lock without an impact", func() {
		m := l.machine(wideBand)
		u := l.state.U()
		Expect(m.ForceLock(l.state)).To(Succeed())
		Expect(m.Phase()).To(Equal(lock.Locked))
		Expect(l.state.U()).To(Equal(u))
		Expect(m.History()).To(BeEmpty())
		Expect(m.ForceLock(l.state)).To(MatchError(lock.ErrAlreadyLocked))
	})
})

var _ = Describe("Handlers", func() {
	var (
		l *leg
		f float64
	)

	BeforeEach(func() {
		l = newLeg()
		Expect(l.state.SetQ([]float64{math.Pi / 2, 0, 0})).To(Succeed())
		l.lock.Enable(l.state)
		Expect(l.sys.Realize(l.state, multibody.StageAcceleration)).To(Succeed())
		f = l.lock.Multiplier(l.state)
		Expect(f).NotTo(BeZero())
	})

	It("reports the lock-on value relative to the lock angle", func() {
		m := l.machine(lock.Config{LockAngle: 0.25, Low: -1, High: 1})
		h := m.LockOn()
		Expect(h.Value(l.state)).To(BeNumerically("~", -0.25, 1e-15))
		Expect(h.Direction()).To(Equal(events.Both))
		Expect(h.Stage()).To(Equal(multibody.StagePosition))
	})

	It("pins the lock-off value at zero while free", func() {
		m := l.machine(wideBand)
		l.lock.Disable(l.state)
		Expect(m.LockOff().Value(l.state)).To(BeZero())
	})

	DescribeTable("lock-off value goes negative past either edge",
		func(low, high float64, positive bool) {
			m := l.machine(lock.Config{Low: f + low, High: f + high})
			h := m.LockOff()
			Expect(h.Direction()).To(Equal(events.Falling))
			Expect(h.Stage()).To(Equal(multibody.StageAcceleration))
			if positive {
				Expect(h.Value(l.state)).To(BeNumerically(">", 0))
			} else {
				Expect(h.Value(l.state)).To(BeNumerically("<", 0))
			}
		},
		Entry("inside", -10.0, 10.0, true),
		Entry("above high", -20.0, -10.0, false),
		Entry("below low", 10.0, 20.0, false),
	)
})

var _ = Describe("Stepping", func() {
	It("locks with zero rate on the first return to the lock angle", func() {
		l := newLeg()
		l.calf.SetOneU(l.state, 1)
		m := l.machine(wideBand)
		calls := 0
		ts := l.stepper(m, &calls)

		Expect(ts.Initialize(l.state)).To(Succeed())
		Expect(ts.StepTo(context.Background(), 10)).To(Succeed())

		hist := m.History()
		Expect(hist).To(HaveLen(1))
		Expect(hist[0].To).To(Equal(lock.Locked))
		Expect(hist[0].UBefore).To(BeNumerically("<", 0))
		Expect(hist[0].UAfter).To(BeZero())
		Expect(math.Abs(hist[0].Q)).To(BeNumerically("<", 1e-6))
		Expect(m.IsLocked(ts.State())).To(BeTrue())
		Expect(calls).To(Equal(1))
	})

	It("ends every engagement plastic once the lock holds the knee", func() {
		run := func(e float64) (*lock.Machine, *events.TimeStepper) {
			l := newLeg()
			l.calf.SetOneU(l.state, 1)
			m := l.machine(lock.Config{Restitution: e, Low: -1e12, High: 1e12})
			calls := 0
			ts := l.stepper(m, &calls)
			Expect(ts.Initialize(l.state)).To(Succeed())
			Expect(ts.StepTo(context.Background(), 10)).To(Succeed())
			return m, ts
		}

		plastic, plasticTS := run(0)
		elastic, elasticTS := run(1)

		p, e := plastic.History(), elastic.History()
		Expect(p).To(HaveLen(1))
		Expect(e).To(HaveLen(1))
		Expect(e[0].UImpact).To(BeNumerically("~", -e[0].UBefore, 1e-9))
		Expect(p[0].UImpact).To(BeNumerically("~", 0, 1e-12))
		Expect(e[0].UAfter).To(BeZero())

		// The rebound is projected away, so the motion does not depend on e.
		Expect(elasticTS.State().U()[1]).To(BeNumerically("~", 0, 1e-9))
		qp, qe := plasticTS.State().Q(), elasticTS.State().Q()
		for i := range qp {
			Expect(qe[i]).To(BeNumerically("~", qp[i], 1e-6))
		}
		Expect(elasticTS.Stats().Projections).To(BeNumerically(">=", 1))
	})

	It("unlocks at a band edge without an impulsive phase", func() {
		l := newLeg()
		Expect(l.state.SetQ([]float64{math.Pi / 2, 0, 0})).To(Succeed())
		l.lock.Enable(l.state)
		Expect(l.sys.Realize(l.state, multibody.StageAcceleration)).To(Succeed())
		f0 := l.lock.Multiplier(l.state)
		margin := 0.05 * math.Abs(f0)

		// The lock angle is out of reach so nothing can re-engage.
		m := l.machine(lock.Config{LockAngle: 3, Low: f0 - margin, High: f0 + margin})
		m.Sync(l.state)
		Expect(m.Phase()).To(Equal(lock.Locked))
		calls := 0
		ts := l.stepper(m, &calls)

		Expect(ts.Initialize(l.state)).To(Succeed())
		Expect(ts.StepTo(context.Background(), 1)).To(Succeed())

		hist := m.History()
		Expect(hist).To(HaveLen(1))
		Expect(hist[0].From).To(Equal(lock.Locked))
		Expect(hist[0].To).To(Equal(lock.Free))
		Expect(hist[0].UAfter).To(Equal(hist[0].UBefore))
		edge := math.Min(math.Abs(hist[0].Multiplier-(f0+margin)), math.Abs(hist[0].Multiplier-(f0-margin)))
		Expect(edge).To(BeNumerically("<", 1e-3*margin))
		Expect(m.IsLocked(ts.State())).To(BeFalse())
		Expect(l.impulse.IsDisabled(ts.State())).To(BeTrue())
		Expect(calls).To(Equal(1))
	})
})
