package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/equitylens/engine/internal/jobs"
)

type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

type systemStatus struct {
	CPUPercent    float64             `json:"cpu_percent"`
	MemoryPercent float64             `json:"memory_percent"`
	Jobs          map[jobs.Status]int `json:"jobs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSystemStatus reports host load and the current job table breakdown.
func (s *Server) handleSystemStatus(store *jobs.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := systemStatus{Jobs: store.Count()}

		if percentages, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percentages) > 0 {
			total := 0.0
			for _, p := range percentages {
				total += p
			}
			status.CPUPercent = total / float64(len(percentages))
		}

		if vmem, err := mem.VirtualMemory(); err == nil {
			status.MemoryPercent = vmem.UsedPercent
		}

		s.writeJSON(w, http.StatusOK, status)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}
