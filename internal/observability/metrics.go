// Package observability bundles the Prometheus metrics exposed by a
// running simulation. No core decision ever depends on these values.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for a simulation run and
// implements the core's ProgressObserver hook.
type SimCollector struct {
	gatherer prometheus.Gatherer

	EventsTotal   *prometheus.CounterVec
	SimTime       prometheus.Gauge
	PropensitySum prometheus.Gauge
	RunRealtime   prometheus.Histogram
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_events_total",
		Help: "Total number of fired kinetic events, labeled by process kind.",
	}, []string{"kind"})
	if err := reg.Register(events); err != nil {
		return nil, err
	}

	simTime := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_time_seconds",
		Help: "Current simulated time in seconds.",
	})
	if err := reg.Register(simTime); err != nil {
		return nil, err
	}

	propSum := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_propensity_sum",
		Help: "Current total propensity (events per simulated second).",
	})
	if err := reg.Register(propSum); err != nil {
		return nil, err
	}

	runRealtime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_run_realtime_seconds",
		Help:    "Wall-clock duration of completed simulation runs.",
		Buckets: prometheus.ExponentialBuckets(0.001, 10, 8),
	})
	if err := reg.Register(runRealtime); err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:      gatherer,
		EventsTotal:   events,
		SimTime:       simTime,
		PropensitySum: propSum,
		RunRealtime:   runRealtime,
	}, nil
}

// ObserveEvent implements the core's ProgressObserver interface.
func (c *SimCollector) ObserveEvent(kind string, clock, propensitySum float64) {
	c.EventsTotal.WithLabelValues(kind).Inc()
	c.SimTime.Set(clock)
	c.PropensitySum.Set(propensitySum)
}

// ObserveRunRealtime records the wall-clock duration of one completed run.
func (c *SimCollector) ObserveRunRealtime(d time.Duration) {
	c.RunRealtime.Observe(d.Seconds())
}

// Handler returns an HTTP handler serving the collector's metrics.
func (c *SimCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
