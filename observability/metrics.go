package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	routeUpdatesTotal   *prometheus.CounterVec
	routeHitsTotal      *prometheus.CounterVec
	routeMissesTotal    *prometheus.CounterVec
	retriesTotal        *prometheus.CounterVec
	neighborGauge       *prometheus.GaugeVec
	floodLatencySeconds *prometheus.HistogramVec
	floodSendsTotal     *prometheus.CounterVec
	activeNodesGauge    prometheus.Gauge
)

// registerMetrics builds and registers every Prometheus collector the
// Recorder uses. Safe to call more than once per process; only the
// first call does anything.
func registerMetrics() {
	metricsOnce.Do(func() {
		routeUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "overlayd_route_updates_total",
			Help: "Routing table updates applied, by component.",
		}, []string{"component"})

		routeHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "overlayd_route_lookup_hits_total",
			Help: "Routing table lookups that resolved to a known destination, by component.",
		}, []string{"component"})

		routeMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "overlayd_route_lookup_misses_total",
			Help: "Routing table lookups for an unknown destination, by component.",
		}, []string{"component"})

		retriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "overlayd_unicast_retries_total",
			Help: "Reliable-unicast retry attempts spent, by component.",
		}, []string{"component"})

		neighborGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "overlayd_neighbors",
			Help: "Current neighbor count, by component.",
		}, []string{"component"})

		floodLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "overlayd_flood_latency_seconds",
			Help:    "Time spent sending a flood/broadcast round, by component.",
			Buckets: prometheus.DefBuckets,
		}, []string{"component"})

		floodSendsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "overlayd_flood_sends_total",
			Help: "Per-peer sends attempted during flood/broadcast rounds, by component and result.",
		}, []string{"component", "result"})

		activeNodesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "overlayd_active_nodes",
			Help: "Number of overlay nodes currently participating in routing.",
		})

		prometheus.MustRegister(
			routeUpdatesTotal,
			routeHitsTotal,
			routeMissesTotal,
			retriesTotal,
			neighborGauge,
			floodLatencySeconds,
			floodSendsTotal,
			activeNodesGauge,
		)
	})
}

// LatencyObserver records a single duration sample. Returned by
// Recorder.LatencyObs; nil when metrics are disabled.
type LatencyObserver interface {
	Observe(seconds float64)
}

// Recorder emits per-component routing metrics. Every method is a
// safe no-op on a nil receiver or when metrics are disabled, so call
// sites never need a guard.
type Recorder struct {
	component string
}

// NewRecorder returns a Recorder scoped to component (e.g. a
// hostname or algorithm variant name).
func NewRecorder(component string) *Recorder {
	return &Recorder{component: component}
}

// RouteUpdated records that this component applied a routing table
// update, whether from DV relaxation, LS recompute, or a controller
// push.
func (r *Recorder) RouteUpdated() {
	if r == nil || !MetricsEnabled() {
		return
	}
	routeUpdatesTotal.WithLabelValues(r.component).Inc()
}

// RouteHit records a routing table lookup that resolved to a known
// destination.
func (r *Recorder) RouteHit() {
	if r == nil || !MetricsEnabled() {
		return
	}
	routeHitsTotal.WithLabelValues(r.component).Inc()
}

// RouteMiss records a routing table lookup for a destination with no
// known route.
func (r *Recorder) RouteMiss() {
	if r == nil || !MetricsEnabled() {
		return
	}
	routeMissesTotal.WithLabelValues(r.component).Inc()
}

// Retries records that n reliable-unicast retry attempts were spent
// delivering a message.
func (r *Recorder) Retries(n int) {
	if r == nil || !MetricsEnabled() {
		return
	}
	retriesTotal.WithLabelValues(r.component).Add(float64(n))
}

// IncNeighbors records a neighbor becoming known.
func (r *Recorder) IncNeighbors() {
	if r == nil || !MetricsEnabled() {
		return
	}
	neighborGauge.WithLabelValues(r.component).Inc()
}

// DecNeighbors records a neighbor being removed.
func (r *Recorder) DecNeighbors() {
	if r == nil || !MetricsEnabled() {
		return
	}
	neighborGauge.WithLabelValues(r.component).Dec()
}

// SetNeighbors sets the neighbor count directly, for components that
// track it as a snapshot rather than incrementally.
func (r *Recorder) SetNeighbors(n int) {
	if r == nil || !MetricsEnabled() {
		return
	}
	neighborGauge.WithLabelValues(r.component).Set(float64(n))
}

// Flood records a completed flood/broadcast round: how long it took,
// how many peers were targeted, and how many were actually reached.
func (r *Recorder) Flood(d time.Duration, targeted, reached int) {
	if r == nil || !MetricsEnabled() {
		return
	}
	floodLatencySeconds.WithLabelValues(r.component).Observe(d.Seconds())
	floodSendsTotal.WithLabelValues(r.component, "ok").Add(float64(reached))
	floodSendsTotal.WithLabelValues(r.component, "failed").Add(float64(targeted - reached))
}

// LatencyObs returns an observer for an arbitrary named operation's
// latency. Returns nil when metrics are disabled.
func (r *Recorder) LatencyObs(operation string) LatencyObserver {
	if r == nil || !MetricsEnabled() {
		return nil
	}
	return floodLatencySeconds.WithLabelValues(r.component + ":" + operation)
}

// IncActiveNodes records a node joining the overlay.
func IncActiveNodes() {
	if !MetricsEnabled() {
		return
	}
	activeNodesGauge.Inc()
}

// DecActiveNodes records a node leaving the overlay.
func DecActiveNodes() {
	if !MetricsEnabled() {
		return
	}
	activeNodesGauge.Dec()
}
