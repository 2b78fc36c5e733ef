// Package fleet exposes the read surface the dashboard polls, plus a small
// mission dispatch endpoint.
package fleet

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	corefleet "github.com/mowbotai/fleetd/core/fleet"
	"github.com/mowbotai/fleetd/core/health"
	"github.com/mowbotai/fleetd/core/mission"
	"github.com/mowbotai/fleetd/core/model"
)

// NewVehiclesHandler serves GET /api/fleet/vehicles. With ?id= it returns a
// single record, 404 when unknown.
func NewVehiclesHandler(store corefleet.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if id := r.URL.Query().Get("id"); id != "" {
			rec, ok := store.Get(id)
			if !ok {
				http.Error(w, "unknown vehicle", http.StatusNotFound)
				return
			}
			writeJSON(w, rec)
			return
		}
		writeJSON(w, store.List())
	})
}

// HealthView is the GET /api/fleet/health response body.
type HealthView struct {
	Status        health.Status `json:"status"`
	LastProbeAt   time.Time     `json:"last_probe_at"`
	FleetSilent   bool          `json:"fleet_silent"`
	MapServiceKey string        `json:"map_service_key,omitempty"`
}

// NewHealthHandler serves GET /api/fleet/health. mapKey is forwarded so
// dashboard clients can render the map layer without extra configuration.
func NewHealthHandler(mon *health.Monitor, mapKey string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, HealthView{
			Status:        mon.Status(),
			LastProbeAt:   mon.LastProbeAt(),
			FleetSilent:   mon.FleetSilent(),
			MapServiceKey: mapKey,
		})
	})
}

// DispatchRequest is the POST /api/fleet/missions request body.
type DispatchRequest struct {
	VehicleID string              `json:"vehicle_id"`
	Nodes     []model.MissionNode `json:"nodes"`
	Edges     []model.MissionEdge `json:"edges"`
}

// NewMissionsHandler serves GET and POST /api/fleet/missions.
func NewMissionsHandler(d *mission.Dispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, d.Orders())
		case http.MethodPost:
			var req DispatchRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			order, err := d.Dispatch(r.Context(), mission.Request{
				VehicleID: req.VehicleID,
				Nodes:     req.Nodes,
				Edges:     req.Edges,
			})
			if err != nil {
				http.Error(w, err.Error(), dispatchStatus(err))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(order)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func dispatchStatus(err error) int {
	switch {
	case errors.Is(err, mission.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, mission.ErrUnknownVehicle):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
