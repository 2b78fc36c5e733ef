package metrics

import (
	"context"
	"time"

	"github.com/mowbotai/fleetd/core/fleet"
	"github.com/mowbotai/fleetd/core/mission"
	"github.com/mowbotai/fleetd/infra/logger"
)

// DefaultSnapshotInterval is how often vehicle state is exported.
const DefaultSnapshotInterval = 15 * time.Second

// Recorder periodically snapshots the telemetry store into a Sink and
// forwards mission ack events as they arrive. Export failures are logged
// and never propagate to the callers feeding the store.
type Recorder struct {
	store    fleet.Store
	sink     Sink
	interval time.Duration
	log      logger.Logger
}

func NewRecorder(store fleet.Store, sink Sink, interval time.Duration) *Recorder {
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	return &Recorder{
		store:    store,
		sink:     sink,
		interval: interval,
		log:      logger.New("metrics-recorder"),
	}
}

// Run blocks until ctx is canceled. acks may be nil when mission dispatch
// is disabled.
func (r *Recorder) Run(ctx context.Context, acks <-chan mission.AckEvent) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-acks:
			if !ok {
				acks = nil
				continue
			}
			if err := r.sink.RecordMissionAck(ev); err != nil {
				r.log.Debugf("mission ack export failed: %v", err)
			}
		case <-ticker.C:
			for _, rec := range r.store.List() {
				if err := r.sink.RecordVehicleState(rec); err != nil {
					r.log.Debugf("vehicle state export failed: %v", err)
					break
				}
			}
		}
	}
}
