package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mowbotai/fleetd/core/fleet"
	"github.com/mowbotai/fleetd/core/mission"
	"github.com/mowbotai/fleetd/core/model"
)

func captureServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var mu sync.Mutex
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"pass"}`))
			return
		}
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), bodies...)
	}
}

func TestInfluxSink_RecordVehicleState(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	rec := model.AGVRecord{
		VehicleID:       "agv-1",
		Manufacturer:    "mowbot",
		Battery:         81.5,
		OperatingMode:   "AUTOMATIC",
		Position:        model.Position{X: 1.2345, Y: 2, Theta: 0.5},
		ConnectionState: model.ConnectionOnline,
		LastSeenAt:      time.Now(),
	}
	if err := sink.RecordVehicleState(rec); err != nil {
		t.Fatalf("record error: %v", err)
	}

	got := bodies()
	if len(got) != 1 {
		t.Fatalf("expected one write, got %d", len(got))
	}
	for _, want := range []string{"vehicle_state", "vehicle_id=agv-1", "connection_state=ONLINE", "battery=81.5", "x=1.234"} {
		if !strings.Contains(got[0], want) {
			t.Errorf("line protocol missing %q: %s", want, got[0])
		}
	}
}

func TestInfluxSink_RecordMissionAck(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	ev := mission.AckEvent{
		OrderID:   "order-1",
		VehicleID: "agv-1",
		State:     model.AckAcked,
		Latency:   250 * time.Millisecond,
	}
	if err := sink.RecordMissionAck(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}

	got := bodies()
	if len(got) != 1 {
		t.Fatalf("expected one write, got %d", len(got))
	}
	for _, want := range []string{"mission_ack", "order_id=order-1", "acknowledged=true", "latency_ms=250"} {
		if !strings.Contains(got[0], want) {
			t.Errorf("line protocol missing %q: %s", want, got[0])
		}
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	srv, _ := captureServer(t)
	if _, ok := NewInfluxSinkWithFallback(srv.URL, "t", "o", "b").(*InfluxSink); !ok {
		t.Errorf("expected real sink when backend is healthy")
	}
	if _, ok := NewInfluxSinkWithFallback("http://127.0.0.1:1", "t", "o", "b").(NopSink); !ok {
		t.Errorf("expected NopSink when backend is unreachable")
	}
}

func TestRecorderSnapshotsStore(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	store := fleet.NewMemoryStore(0, 0, 10)
	store.Upsert(model.AGVRecord{VehicleID: "agv-1", LastSeenAt: time.Now()})
	store.Upsert(model.AGVRecord{VehicleID: "agv-2", LastSeenAt: time.Now()})

	rec := NewRecorder(store, sink, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	acks := make(chan mission.AckEvent, 1)
	go func() {
		rec.Run(ctx, acks)
		close(done)
	}()

	acks <- mission.AckEvent{OrderID: "order-1", VehicleID: "agv-1", State: model.AckTimeout}
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	var states, missions int
	for _, b := range bodies() {
		if strings.Contains(b, "vehicle_state") {
			states++
		}
		if strings.Contains(b, "mission_ack") {
			missions++
		}
	}
	if states < 2 {
		t.Errorf("expected at least one snapshot per vehicle, got %d writes", states)
	}
	if missions != 1 {
		t.Errorf("expected one mission ack write, got %d", missions)
	}
}
