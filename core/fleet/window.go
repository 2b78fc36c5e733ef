package fleet

import "github.com/mowbotai/fleetd/core/model"

// DefaultWindowCap bounds the recent-event window per vehicle.
const DefaultWindowCap = 100

// window is a fixed-capacity ring of telemetry events. Memory use is bounded
// by cap regardless of how long the fleet runs.
type window struct {
	buf   []model.TelemetryEvent
	head  int
	count int
}

func newWindow(cap int) *window {
	return &window{buf: make([]model.TelemetryEvent, cap)}
}

// push appends ev, overwriting the oldest entry when full.
func (w *window) push(ev model.TelemetryEvent) {
	idx := (w.head + w.count) % len(w.buf)
	w.buf[idx] = ev
	if w.count < len(w.buf) {
		w.count++
		return
	}
	w.head = (w.head + 1) % len(w.buf)
}

// snapshot copies the window contents in arrival order, oldest first.
func (w *window) snapshot() []model.TelemetryEvent {
	out := make([]model.TelemetryEvent, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}
