// Package telemetry exports stepper activity as Prometheus metrics on a
// private registry.
package telemetry

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/san-kum/jointlock/internal/events"
)

const namespace = "jointlock"

// Collector implements events.Observer.
type Collector struct {
	reg *prometheus.Registry

	steps    *prometheus.CounterVec
	stepSize prometheus.Histogram
	events   *prometheus.CounterVec
	reports  *prometheus.CounterVec
	simTime  prometheus.Gauge
	counters *prometheus.GaugeVec
	wall     prometheus.Gauge
}

var _ events.Observer = (*Collector)(nil)

// New creates a collector labelled with the integrator method.
func New(method string) *Collector {
	labels := prometheus.Labels{"method": method}
	c := &Collector{
		reg: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "stepper",
			Name:        "steps_total",
			Help:        "Integration step attempts by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		stepSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "stepper",
			Name:        "step_size_seconds",
			Help:        "Accepted step sizes in simulated seconds",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1e-6, 10, 7),
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "events",
			Name:        "triggered_total",
			Help:        "Triggered handler invocations by handler",
			ConstLabels: labels,
		}, []string{"handler"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "events",
			Name:        "periodic_total",
			Help:        "Periodic handler invocations by handler",
			ConstLabels: labels,
		}, []string{"handler"}),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "stepper",
			Name:        "sim_time_seconds",
			Help:        "Simulated time reached",
			ConstLabels: labels,
		}),
		counters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "run",
			Name:        "count",
			Help:        "Final integrator counters",
			ConstLabels: labels,
		}, []string{"counter"}),
		wall: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "run",
			Name:        "wall_seconds",
			Help:        "Wall clock time spent stepping",
			ConstLabels: labels,
		}),
	}
	c.reg.MustRegister(c.steps, c.stepSize, c.events, c.reports, c.simTime, c.counters, c.wall)
	return c
}

// Registry exposes the private registry, e.g. for a promhttp handler.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) OnStep(t, dt float64, accepted bool) {
	if !accepted {
		c.steps.WithLabelValues("rejected").Inc()
		return
	}
	c.steps.WithLabelValues("accepted").Inc()
	c.stepSize.Observe(dt)
	c.simTime.Set(t)
}

func (c *Collector) OnEvent(name string, t float64) {
	c.events.WithLabelValues(name).Inc()
}

func (c *Collector) OnReport(name string, t float64) {
	c.reports.WithLabelValues(name).Inc()
}

// Finish records the end-of-run counters.
func (c *Collector) Finish(stats events.Stats, wall time.Duration) {
	c.counters.WithLabelValues("steps_taken").Set(float64(stats.StepsTaken))
	c.counters.WithLabelValues("steps_attempted").Set(float64(stats.StepsAttempted))
	c.counters.WithLabelValues("error_test_failures").Set(float64(stats.ErrorTestFailures))
	c.counters.WithLabelValues("realizations").Set(float64(stats.Realizations))
	c.counters.WithLabelValues("projections").Set(float64(stats.Projections))
	c.wall.Set(wall.Seconds())
}

// WriteText writes every registered family in the Prometheus text format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.reg.Gather()
	if err != nil {
		return fmt.Errorf("telemetry: gather: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("telemetry: write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
