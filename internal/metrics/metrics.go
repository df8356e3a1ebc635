package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API.
	Registry = prometheus.NewRegistry()

	// OptimizeRequests counts optimization runs by crew type and exit code.
	OptimizeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimize_requests_total", Help: "Optimization runs by crew type and exit code."},
		[]string{"crew_type", "code"},
	)
	// OptimizeDuration records optimization wall time in seconds.
	OptimizeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "optimize_duration_seconds", Help: "Optimization duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"crew_type"},
	)
	// TicketsRouted counts tickets placed on emitted routes.
	TicketsRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tickets_routed_total", Help: "Tickets placed on emitted routes."},
		[]string{"crew_type"},
	)
	// DistanceCacheHits counts distance oracle cache hits by tier.
	DistanceCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "distance_cache_hits_total", Help: "Distance cache hits by tier."},
		[]string{"tier"},
	)
	// DistanceCacheMisses counts distance oracle cache misses.
	DistanceCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "distance_cache_misses_total", Help: "Distance cache misses."},
	)
)

var regOnce sync.Once

// RegisterDefault registers collectors on the package registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(OptimizeRequests)
		Registry.MustRegister(OptimizeDuration)
		Registry.MustRegister(TicketsRouted)
		Registry.MustRegister(DistanceCacheHits)
		Registry.MustRegister(DistanceCacheMisses)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
