/*
Package api
File: handlers.go
Description:
    Contains the HTTP handlers for the read-only REST API.
    Every handler copies what it needs out of the Engine under the read lock
    and encodes it as JSON. Nothing here mutates the simulation.
*/

package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/everforgeworks/bridgeflow/internal/traffic"
)

// RoadResponse describes the static layout a renderer needs to draw the road.
type RoadResponse struct {
	Road          traffic.RoadConfig  `json:"road"`
	Light         traffic.LightConfig `json:"light"`
	BridgeStart   float64             `json:"bridge_start"`
	BridgeEnd     float64             `json:"bridge_end"`
	LightPosition float64             `json:"light_position"`
	VehicleLength float64             `json:"vehicle_length"`
}

// HandleGetSnapshot returns the latest snapshot.
func HandleGetSnapshot(e *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, e.Latest())
	}
}

// HandleGetRoad returns the road geometry and light timing.
func HandleGetRoad(e *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		cfg := e.Config()
		writeJSON(w, RoadResponse{
			Road:          cfg.Road,
			Light:         cfg.Light,
			BridgeStart:   cfg.Road.DistanceToBridge,
			BridgeEnd:     cfg.Road.DistanceToBridge + cfg.Road.BridgeLength,
			LightPosition: cfg.Road.LightPosition(),
			VehicleLength: cfg.Vehicle.Length,
		})
	}
}

// HandleGetStats returns the counters of the latest snapshot.
func HandleGetStats(e *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, e.Latest().Stats)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: encode failed: %v", err)
	}
}
