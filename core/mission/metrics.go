package mission

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersDispatched prometheus.Counter
	ordersAcked      prometheus.Counter
	ordersTimedOut   prometheus.Counter
	ackLatency       prometheus.Histogram
)

func newCollectors() (prometheus.Counter, prometheus.Counter, prometheus.Counter, prometheus.Histogram) {
	dispatched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mission_orders_dispatched_total",
		Help: "Number of mission orders published to vehicles",
	})
	acked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mission_orders_acked_total",
		Help: "Number of mission orders acknowledged by vehicles",
	})
	timedOut := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mission_orders_timeout_total",
		Help: "Number of mission orders whose acknowledgement deadline elapsed",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mission_ack_latency_seconds",
		Help:    "Time between order publish and acknowledgement",
		Buckets: prometheus.DefBuckets,
	})
	return dispatched, acked, timedOut, latency
}

func init() {
	ordersDispatched, ordersAcked, ordersTimedOut, ackLatency = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers mission metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(ordersDispatched, ordersAcked, ordersTimedOut, ackLatency)
}

// ResetMetrics reinitializes collectors for testing purposes and registers
// them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	ordersDispatched, ordersAcked, ordersTimedOut, ackLatency = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
