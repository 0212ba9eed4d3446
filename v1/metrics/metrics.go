package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// GuardGauge reports the number of guards currently holding a lock.
	GuardGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "redlock_guards",
		Help: "Current number of live lock guards",
	})
	// GuardReleaseCounter tracks the number of guard releases.
	GuardReleaseCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redlock_guard_releases_total",
		Help: "Total number of guard-triggered releases",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers redlock core metrics on the provided registry.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(GuardGauge, GuardReleaseCounter)
}
