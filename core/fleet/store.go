package fleet

import (
	"sort"
	"sync"
	"time"

	"github.com/mowbotai/fleetd/core/model"
)

// Default idle thresholds before a vehicle is demoted.
const (
	DefaultStaleAfter   = 60 * time.Second
	DefaultOfflineAfter = 120 * time.Second
)

// Store is the bounded per-vehicle telemetry cache. Reads return value
// copies so dashboard pollers never observe a half-updated record.
type Store interface {
	Upsert(model.AGVRecord)
	Get(vehicleID string) (model.AGVRecord, bool)
	List() []model.AGVRecord
	EvictStale(now time.Time)
	AppendEvent(vehicleID string, ev model.TelemetryEvent)
	Events(vehicleID string) []model.TelemetryEvent
	LastSeen() map[string]time.Time
	MarkOffline(vehicleID string)
}

// MemoryStore implements Store with a RW-mutex map and capped per-vehicle
// event windows.
type MemoryStore struct {
	staleAfter   time.Duration
	offlineAfter time.Duration
	windowCap    int

	mu      sync.RWMutex
	data    map[string]model.AGVRecord
	windows map[string]*window
}

// NewMemoryStore creates a MemoryStore. Non-positive thresholds and window
// cap fall back to defaults.
func NewMemoryStore(staleAfter, offlineAfter time.Duration, windowCap int) *MemoryStore {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if offlineAfter <= 0 {
		offlineAfter = DefaultOfflineAfter
	}
	if windowCap <= 0 {
		windowCap = DefaultWindowCap
	}
	return &MemoryStore{
		staleAfter:   staleAfter,
		offlineAfter: offlineAfter,
		windowCap:    windowCap,
		data:         make(map[string]model.AGVRecord),
		windows:      make(map[string]*window),
	}
}

// cloneRecord detaches the reference-typed fields so a stored record and
// the copies handed to readers never share backing memory.
func cloneRecord(rec model.AGVRecord) model.AGVRecord {
	if len(rec.Errors) > 0 {
		rec.Errors = append([]model.AGVError(nil), rec.Errors...)
	}
	if len(rec.SensorStatus) > 0 {
		sensors := make(map[string]string, len(rec.SensorStatus))
		for k, v := range rec.SensorStatus {
			sensors[k] = v
		}
		rec.SensorStatus = sensors
	}
	return rec
}

// Upsert replaces the stored record for the vehicle. The record's
// ConnectionState is forced to ONLINE since a message just arrived.
func (s *MemoryStore) Upsert(rec model.AGVRecord) {
	rec = cloneRecord(rec)
	rec.ConnectionState = model.ConnectionOnline
	s.mu.Lock()
	s.data[rec.VehicleID] = rec
	s.mu.Unlock()
}

// Get returns a copy of the record for the vehicle.
func (s *MemoryStore) Get(vehicleID string) (model.AGVRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[vehicleID]
	return cloneRecord(rec), ok
}

// List returns copies of all records sorted by vehicle id.
func (s *MemoryStore) List() []model.AGVRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.AGVRecord, 0, len(s.data))
	for _, rec := range s.data {
		res = append(res, cloneRecord(rec))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].VehicleID < res[j].VehicleID })
	return res
}

// EvictStale demotes records past the idle thresholds. Records are never
// removed, only marked STALE then OFFLINE, so mission history stays
// resolvable.
func (s *MemoryStore) EvictStale(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.data {
		idle := now.Sub(rec.LastSeenAt)
		switch {
		case idle > s.offlineAfter:
			rec.ConnectionState = model.ConnectionOffline
		case idle > s.staleAfter:
			rec.ConnectionState = model.ConnectionStale
		default:
			continue
		}
		s.data[id] = rec
	}
}

// MarkOffline demotes one vehicle immediately, e.g. on a CONNECTIONBROKEN
// last-will frame.
func (s *MemoryStore) MarkOffline(vehicleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[vehicleID]
	if !ok {
		return
	}
	rec.ConnectionState = model.ConnectionOffline
	s.data[vehicleID] = rec
}

// AppendEvent pushes into the vehicle's capped window, dropping the oldest
// entry once the cap is exceeded.
func (s *MemoryStore) AppendEvent(vehicleID string, ev model.TelemetryEvent) {
	s.mu.Lock()
	w, ok := s.windows[vehicleID]
	if !ok {
		w = newWindow(s.windowCap)
		s.windows[vehicleID] = w
	}
	w.push(ev)
	s.mu.Unlock()
}

// Events returns the vehicle's window contents in arrival order.
func (s *MemoryStore) Events(vehicleID string) []model.TelemetryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[vehicleID]
	if !ok {
		return nil
	}
	return w.snapshot()
}

// LastSeen returns the arrival time of the latest message per vehicle. The
// health monitor reads this freshness index on every probe.
func (s *MemoryStore) LastSeen() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make(map[string]time.Time, len(s.data))
	for id, rec := range s.data {
		res[id] = rec.LastSeenAt
	}
	return res
}
