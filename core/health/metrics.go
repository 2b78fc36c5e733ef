package health

import "github.com/prometheus/client_golang/prometheus"

var (
	probesMissed      prometheus.Counter
	reconnectAttempts prometheus.Counter
	statusGauge       prometheus.Gauge
	fleetSilentGauge  prometheus.Gauge
)

func newCollectors() (prometheus.Counter, prometheus.Counter, prometheus.Gauge, prometheus.Gauge) {
	missed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "health_probes_missed_total",
		Help: "Number of liveness probes that found the session unhealthy",
	})
	attempts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "health_reconnect_attempts_total",
		Help: "Number of broker reconnection attempts",
	})
	status := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "health_status",
		Help: "Current health status (0 healthy, 1 degraded, 2 reconnecting, 3 failed)",
	})
	silent := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "health_fleet_silent",
		Help: "1 when the session is connected but no vehicle has reported within the silence window",
	})
	return missed, attempts, status, silent
}

func init() {
	probesMissed, reconnectAttempts, statusGauge, fleetSilentGauge = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers health metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(probesMissed, reconnectAttempts, statusGauge, fleetSilentGauge)
}

// ResetMetrics reinitializes collectors for testing purposes and registers
// them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	probesMissed, reconnectAttempts, statusGauge, fleetSilentGauge = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

func statusValue(s Status) float64 {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	case StatusReconnecting:
		return 2
	case StatusFailed:
		return 3
	}
	return -1
}
