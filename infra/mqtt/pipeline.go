package mqtt

import (
	"time"

	"github.com/mowbotai/fleetd/core/fleet"
	"github.com/mowbotai/fleetd/core/model"
	"github.com/mowbotai/fleetd/core/vda5050"
	"github.com/mowbotai/fleetd/infra/logger"
)

// AckMatcher correlates inbound state messages with pending mission orders.
// Matching is a lookup, never a wait, so the decode path cannot stall on it.
type AckMatcher interface {
	HandleState(vda5050.StateMessage)
}

// Pipeline is the single decode path for inbound fleet frames. A malformed
// or out-of-sequence frame is counted and dropped without affecting other
// vehicles' state.
type Pipeline struct {
	codec    *vda5050.Codec
	store    fleet.Store
	missions AckMatcher
	log      logger.Logger
}

// NewPipeline wires the codec to the telemetry store and mission ack
// matching. missions may be nil when mission dispatch is disabled.
func NewPipeline(codec *vda5050.Codec, store fleet.Store, missions AckMatcher, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Pipeline{codec: codec, store: store, missions: missions, log: log}
}

// HandleFrame decodes one raw frame and applies it.
func (p *Pipeline) HandleFrame(topic string, payload []byte) {
	arrived := time.Now()
	msg, err := p.codec.Decode(topic, payload)
	if err != nil {
		decodeErrors.Inc()
		p.log.Debugf("dropped frame on %s: %v", topic, err)
		return
	}
	framesDecoded.WithLabelValues(string(msg.Kind())).Inc()

	switch m := msg.(type) {
	case vda5050.StateMessage:
		p.applyState(m, arrived, payload)
	case vda5050.ConnectionMessage:
		p.applyConnection(m, arrived)
	case vda5050.VisualizationMessage:
		p.applyVisualization(m, arrived)
	}
}

func (p *Pipeline) applyState(m vda5050.StateMessage, arrived time.Time, payload []byte) {
	hdr := m.Header()
	rec, _ := p.store.Get(hdr.SerialNumber)
	rec.VehicleID = hdr.SerialNumber
	rec.Manufacturer = hdr.Manufacturer
	rec.Battery = m.BatteryState.BatteryCharge
	rec.OperatingMode = m.OperatingMode
	rec.LastNodeID = m.LastNodeID
	rec.CurrentOrder = m.OrderID
	if m.AGVPosition != nil {
		rec.Position = model.Position{X: m.AGVPosition.X, Y: m.AGVPosition.Y, Theta: m.AGVPosition.Theta}
	}
	// a fresh slice per frame: the previous one backs snapshots already
	// handed to readers
	rec.Errors = make([]model.AGVError, 0, len(m.Errors))
	for _, e := range m.Errors {
		rec.Errors = append(rec.Errors, model.AGVError{
			Timestamp:   arrived,
			Type:        e.ErrorType,
			Description: e.ErrorDescription,
			Severity:    e.ErrorLevel,
		})
	}
	rec.MessageTime = hdr.Timestamp
	rec.LastSeenAt = arrived
	p.store.Upsert(rec)
	p.store.AppendEvent(hdr.SerialNumber, model.TelemetryEvent{
		VehicleID: hdr.SerialNumber,
		Channel:   vda5050.ChannelState,
		HeaderID:  hdr.HeaderID,
		Arrived:   arrived,
		Payload:   payload,
	})
	if p.missions != nil {
		p.missions.HandleState(m)
	}
}

func (p *Pipeline) applyConnection(m vda5050.ConnectionMessage, arrived time.Time) {
	hdr := m.Header()
	switch m.ConnectionState {
	case vda5050.ConnOnline:
		rec, _ := p.store.Get(hdr.SerialNumber)
		rec.VehicleID = hdr.SerialNumber
		rec.Manufacturer = hdr.Manufacturer
		rec.MessageTime = hdr.Timestamp
		rec.LastSeenAt = arrived
		p.store.Upsert(rec)
	case vda5050.ConnOffline, vda5050.ConnConnectionBroken:
		p.store.MarkOffline(hdr.SerialNumber)
	}
}

func (p *Pipeline) applyVisualization(m vda5050.VisualizationMessage, arrived time.Time) {
	hdr := m.Header()
	rec, ok := p.store.Get(hdr.SerialNumber)
	if !ok {
		// position-only frames do not create records; the state channel owns creation
		return
	}
	if m.AGVPosition != nil {
		rec.Position = model.Position{X: m.AGVPosition.X, Y: m.AGVPosition.Y, Theta: m.AGVPosition.Theta}
	}
	rec.MessageTime = hdr.Timestamp
	rec.LastSeenAt = arrived
	p.store.Upsert(rec)
}
