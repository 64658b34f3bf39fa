package api

import (
	"net/http"
	"runtime"
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string       `json:"status"`
	Timestamp   time.Time    `json:"timestamp"`
	Version     string       `json:"version,omitempty"`
	Uptime      string       `json:"uptime,omitempty"`
	Rows        int          `json:"rows"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	Error       string       `json:"error,omitempty"`
	Memory      *MemoryStats `json:"memory,omitempty"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	AllocMB uint64 `json:"alloc_mb"`
	SysMB   uint64 `json:"sys_mb"`
	NumGC   uint32 `json:"num_gc"`
}

var startTime = time.Now()

// HandleHealth reports whether the churn table is loaded. It answers 503
// while no table is available.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Uptime:    time.Since(startTime).String(),
		Memory: &MemoryStats{
			AllocMB: m.Alloc / 1024 / 1024,
			SysMB:   m.Sys / 1024 / 1024,
			NumGC:   m.NumGC,
		},
	}

	view, err := s.data.View(r.Context())
	if err != nil {
		response.Status = "unavailable"
		response.Error = err.Error()
		s.respondJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	response.Rows = view.Len()
	response.Fingerprint = view.Fingerprint()
	s.respondJSON(w, http.StatusOK, response)
}
