package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the tracker's prometheus metrics. A nil *Collector is valid and records
// nothing.
type Collector struct {
	reg *prometheus.Registry

	Polls             *prometheus.CounterVec // result label: ok|error|unavailable
	Observations      *prometheus.CounterVec
	Consolidations    *prometheus.CounterVec // status label: merged|skipped|failed
	Trips             *prometheus.CounterVec
	Returns           *prometheus.CounterVec
	FleetFailures     *prometheus.CounterVec
	RegistryRefreshes *prometheus.CounterVec

	PhaseDuration *prometheus.HistogramVec

	TrackedFleets prometheus.Gauge
	PollInterval  prometheus.Gauge // seconds
}

func NewCollector(trackedFleets int, pollInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_polls_total",
			Help: "Feed polls by fleet, feed type and result.",
		}, []string{"fleet", "feed", "result"}),
		Observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_raw_observations_total",
			Help: "Raw observations appended to the raw store.",
		}, []string{"fleet", "feed"}),
		Consolidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_consolidations_total",
			Help: "Trip consolidations by fleet, feed type and status.",
		}, []string{"fleet", "feed", "status"}),
		Trips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_inferred_trips_total",
			Help: "Trips inferred from availability deltas.",
		}, []string{"fleet", "feed"}),
		Returns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_inferred_returns_total",
			Help: "Returns inferred from availability deltas.",
		}, []string{"fleet", "feed"}),
		FleetFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_fleet_failures_total",
			Help: "Fleet tasks that failed or panicked inside a phase.",
		}, []string{"fleet", "phase"}),
		RegistryRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_registry_refreshes_total",
			Help: "Station and vehicle type registry refreshes.",
		}, []string{"fleet", "table", "result"}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracker_phase_duration_seconds",
			Help:    "Duration of poll and consolidate phases across all fleets.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"phase"}),
		TrackedFleets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_tracked_fleets",
			Help: "Number of fleets with tracking enabled.",
		}),
		PollInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_poll_interval_seconds",
			Help: "Raw poll interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.Polls, c.Observations,
		c.Consolidations, c.Trips, c.Returns,
		c.FleetFailures, c.RegistryRefreshes,
		c.PhaseDuration,
		c.TrackedFleets, c.PollInterval,
	)

	c.TrackedFleets.Set(float64(trackedFleets))
	c.PollInterval.Set(pollInterval.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) ObservePoll(fleet string, feed string, result string, observations int) {
	if c == nil {
		return
	}

	c.Polls.WithLabelValues(fleet, feed, result).Inc()
	if observations > 0 {
		c.Observations.WithLabelValues(fleet, feed).Add(float64(observations))
	}
}

func (c *Collector) ObserveConsolidation(fleet string, feed string, status string, trips int64, returns int64) {
	if c == nil {
		return
	}

	c.Consolidations.WithLabelValues(fleet, feed, status).Inc()
	c.Trips.WithLabelValues(fleet, feed).Add(float64(trips))
	c.Returns.WithLabelValues(fleet, feed).Add(float64(returns))
}

func (c *Collector) ObserveRegistryRefresh(fleet string, table string, result string) {
	if c == nil {
		return
	}

	c.RegistryRefreshes.WithLabelValues(fleet, table, result).Inc()
}

func (c *Collector) ObserveFleetFailure(fleet string, phase string) {
	if c == nil {
		return
	}

	c.FleetFailures.WithLabelValues(fleet, phase).Inc()
}

func (c *Collector) ObservePhase(phase string, duration time.Duration) {
	if c == nil {
		return
	}

	c.PhaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}
