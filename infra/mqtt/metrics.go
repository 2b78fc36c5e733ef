package mqtt

import "github.com/prometheus/client_golang/prometheus"

var (
	framesDecoded *prometheus.CounterVec
	decodeErrors  prometheus.Counter
)

func newCollectors() (*prometheus.CounterVec, prometheus.Counter) {
	decoded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_frames_decoded_total",
		Help: "Number of inbound fleet frames decoded, by message kind",
	}, []string{"kind"})
	errs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fleet_decode_errors_total",
		Help: "Number of inbound frames dropped by the decode pipeline",
	})
	return decoded, errs
}

func init() {
	framesDecoded, decodeErrors = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers pipeline metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(framesDecoded, decodeErrors)
}

// ResetMetrics reinitializes collectors for testing purposes and registers
// them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	framesDecoded, decodeErrors = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
