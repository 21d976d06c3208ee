package server

import (
	"encoding/json"
	"net/http"

	"github.com/zeusync/kartking/internal/core/observability/log"
	"github.com/zeusync/kartking/internal/core/sim"
)

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Scheduler     sim.Stats `json:"scheduler"`
	Server        Stats     `json:"server"`
	VehicleLoaded bool      `json:"vehicle_loaded"`
	TerrainLoaded bool      `json:"terrain_loaded"`
	CameraMode    string    `json:"camera_mode"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body := StatsResponse{
		Scheduler:     s.frames.Snapshot(),
		Server:        s.GetStats(),
		VehicleLoaded: s.sim.VehicleLoaded(),
		TerrainLoaded: s.sim.TerrainLoaded(),
		CameraMode:    s.sim.CameraMode().String(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("Failed to write stats", log.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
