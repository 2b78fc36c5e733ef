package fleet

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mowbotai/fleetd/core/model"
)

func TestUpsertAndGet(t *testing.T) {
	s := NewMemoryStore(0, 0, 0)
	now := time.Now()
	s.Upsert(model.AGVRecord{VehicleID: "agv-1", Battery: 80, LastSeenAt: now})
	rec, ok := s.Get("agv-1")
	if !ok {
		t.Fatal("record not found")
	}
	if rec.ConnectionState != model.ConnectionOnline {
		t.Fatalf("expected ONLINE, got %s", rec.ConnectionState)
	}
	if rec.Battery != 80 {
		t.Fatalf("battery mismatch: %v", rec.Battery)
	}
}

func TestReadsDetachedFromStore(t *testing.T) {
	s := NewMemoryStore(0, 0, 0)
	s.Upsert(model.AGVRecord{
		VehicleID:    "agv-1",
		Errors:       []model.AGVError{{Type: "motorFault", Severity: "FATAL"}},
		SensorStatus: map[string]string{"IMU": "OK"},
	})

	rec, _ := s.Get("agv-1")
	rec.Errors[0].Type = "tampered"
	rec.SensorStatus["IMU"] = "tampered"

	fresh, _ := s.Get("agv-1")
	if fresh.Errors[0].Type != "motorFault" {
		t.Fatalf("stored errors mutated through a reader copy: %q", fresh.Errors[0].Type)
	}
	if fresh.SensorStatus["IMU"] != "OK" {
		t.Fatalf("stored sensors mutated through a reader copy: %q", fresh.SensorStatus["IMU"])
	}

	listed := s.List()
	listed[0].Errors[0].Type = "tampered"
	fresh, _ = s.Get("agv-1")
	if fresh.Errors[0].Type != "motorFault" {
		t.Fatalf("stored errors mutated through a List copy: %q", fresh.Errors[0].Type)
	}
}

func TestUpsertDetachedFromCaller(t *testing.T) {
	s := NewMemoryStore(0, 0, 0)
	errs := []model.AGVError{{Type: "motorFault"}}
	s.Upsert(model.AGVRecord{VehicleID: "agv-1", Errors: errs})

	errs[0].Type = "tampered"

	rec, _ := s.Get("agv-1")
	if rec.Errors[0].Type != "motorFault" {
		t.Fatalf("stored errors share the caller's slice: %q", rec.Errors[0].Type)
	}
}

func TestListSorted(t *testing.T) {
	s := NewMemoryStore(0, 0, 0)
	for _, id := range []string{"agv-3", "agv-1", "agv-2"} {
		s.Upsert(model.AGVRecord{VehicleID: id})
	}
	out := s.List()
	if len(out) != 3 || out[0].VehicleID != "agv-1" || out[2].VehicleID != "agv-3" {
		t.Fatalf("unexpected order: %#v", out)
	}
}

func TestEvictStaleThresholds(t *testing.T) {
	s := NewMemoryStore(60*time.Second, 120*time.Second, 0)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Upsert(model.AGVRecord{VehicleID: "fresh", LastSeenAt: base})
	s.Upsert(model.AGVRecord{VehicleID: "stale", LastSeenAt: base.Add(-90 * time.Second)})
	s.Upsert(model.AGVRecord{VehicleID: "gone", LastSeenAt: base.Add(-180 * time.Second)})

	s.EvictStale(base)

	cases := map[string]model.ConnectionState{
		"fresh": model.ConnectionOnline,
		"stale": model.ConnectionStale,
		"gone":  model.ConnectionOffline,
	}
	for id, want := range cases {
		rec, ok := s.Get(id)
		if !ok {
			t.Fatalf("%s was removed, demotion must keep records", id)
		}
		if rec.ConnectionState != want {
			t.Errorf("%s: expected %s, got %s", id, want, rec.ConnectionState)
		}
	}
}

func TestMarkOffline(t *testing.T) {
	s := NewMemoryStore(0, 0, 0)
	s.Upsert(model.AGVRecord{VehicleID: "agv-1"})
	s.MarkOffline("agv-1")
	rec, _ := s.Get("agv-1")
	if rec.ConnectionState != model.ConnectionOffline {
		t.Fatalf("expected OFFLINE, got %s", rec.ConnectionState)
	}
	// unknown vehicle is a no-op
	s.MarkOffline("nope")
}

func TestWindowCapBounded(t *testing.T) {
	s := NewMemoryStore(0, 0, 100)
	for i := 0; i < 10000; i++ {
		s.AppendEvent("agv-1", model.TelemetryEvent{HeaderID: uint64(i)})
	}
	evs := s.Events("agv-1")
	if len(evs) != 100 {
		t.Fatalf("expected exactly 100 events, got %d", len(evs))
	}
	for i, ev := range evs {
		if want := uint64(9900 + i); ev.HeaderID != want {
			t.Fatalf("event %d: expected headerId %d, got %d", i, want, ev.HeaderID)
		}
	}
}

func TestWindowPartiallyFilled(t *testing.T) {
	s := NewMemoryStore(0, 0, 10)
	for i := 0; i < 3; i++ {
		s.AppendEvent("agv-1", model.TelemetryEvent{HeaderID: uint64(i)})
	}
	evs := s.Events("agv-1")
	if len(evs) != 3 || evs[0].HeaderID != 0 || evs[2].HeaderID != 2 {
		t.Fatalf("unexpected window: %#v", evs)
	}
	if s.Events("other") != nil {
		t.Fatal("expected nil window for unknown vehicle")
	}
}

func TestConcurrentReadersSingleWriter(t *testing.T) {
	s := NewMemoryStore(0, 0, 50)
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			id := fmt.Sprintf("agv-%d", i%5)
			s.Upsert(model.AGVRecord{VehicleID: id, Battery: float64(i), LastSeenAt: time.Now()})
			s.AppendEvent(id, model.TelemetryEvent{HeaderID: uint64(i)})
		}
		close(done)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				for _, rec := range s.List() {
					if rec.VehicleID == "" {
						t.Error("observed incomplete record")
						return
					}
				}
				s.Events("agv-0")
				s.LastSeen()
			}
		}()
	}
	wg.Wait()
}

func TestLastSeen(t *testing.T) {
	s := NewMemoryStore(0, 0, 0)
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.Upsert(model.AGVRecord{VehicleID: "agv-1", LastSeenAt: ts})
	seen := s.LastSeen()
	if !seen["agv-1"].Equal(ts) {
		t.Fatalf("lastSeen mismatch: %v", seen)
	}
}
