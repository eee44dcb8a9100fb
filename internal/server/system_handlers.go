package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/tvm/internal/scheduler"
)

// HealthChecker reports whether the database answers queries. Implemented by database.DB.
type HealthChecker interface {
	QuickCheck(ctx context.Context) error
}

// HistoryCounter counts stored calculations. Implemented by calculations.Repository.
type HistoryCounter interface {
	Count(ctx context.Context) (int64, error)
}

// JobRunner lists and triggers background jobs. Implemented by scheduler.Scheduler.
type JobRunner interface {
	Jobs() []scheduler.JobStatus
	RunByName(name string) error
}

// SystemStatusResponse represents the system status
type SystemStatusResponse struct {
	Status        string  `json:"status"` // "healthy" or "degraded"
	Database      string  `json:"database"`
	DatabaseError string  `json:"database_error,omitempty"`
	HistoryRows   int64   `json:"history_rows"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	Goroutines    int     `json:"goroutines"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	StartedAt     string  `json:"started_at"`
}

// JobsStatusResponse lists registered background jobs
type JobsStatusResponse struct {
	Jobs []scheduler.JobStatus `json:"jobs"`
}

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log       zerolog.Logger
	db        HealthChecker
	history   HistoryCounter
	jobs      JobRunner
	startedAt time.Time
	stats     func() (float64, float64)
}

// NewSystemHandlers creates a new system handlers instance. Any dependency may
// be nil, the matching part of the status is then reported as unavailable.
func NewSystemHandlers(log zerolog.Logger, db HealthChecker, history HistoryCounter, jobs JobRunner) *SystemHandlers {
	h := &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		db:        db,
		history:   history,
		jobs:      jobs,
		startedAt: time.Now(),
	}
	h.stats = h.getSystemStats
	return h
}

// HandleSystemStatus returns database health, history size and host load
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := SystemStatusResponse{
		Status:        "healthy",
		Database:      "ok",
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		StartedAt:     h.startedAt.UTC().Format(time.RFC3339),
	}

	if h.db == nil {
		response.Status = "degraded"
		response.Database = "unavailable"
	} else if err := h.db.QuickCheck(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Database health check failed")
		response.Status = "degraded"
		response.Database = "error"
		response.DatabaseError = err.Error()
	}

	if h.history != nil {
		count, err := h.history.Count(ctx)
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to count calculation history")
		}
		response.HistoryRows = count
	}

	response.CPUPercent, response.MemoryPercent = h.stats()

	writeJSON(w, http.StatusOK, response, h.log)
}

// HandleJobsStatus returns registered jobs with their next and last run times
// GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	response := JobsStatusResponse{Jobs: []scheduler.JobStatus{}}
	if h.jobs != nil {
		response.Jobs = h.jobs.Jobs()
	}
	writeJSON(w, http.StatusOK, response, h.log)
}

// HandleTriggerJob runs a registered job immediately and waits for it
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.jobs == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status":  "error",
			"message": "no jobs registered",
		}, h.log)
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job run triggered")

	if err := h.jobs.RunByName(name); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scheduler.ErrUnknownJob) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{
			"status":  "error",
			"message": err.Error(),
		}, h.log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": name + " completed",
	}, h.log)
}

// getSystemStats calculates CPU and RAM usage percentages
// Uses a short interval (100ms) so the status endpoint stays responsive
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
