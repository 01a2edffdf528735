package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/whalewatch/internal/database"
	"github.com/aristath/whalewatch/internal/modules/navs"
	"github.com/aristath/whalewatch/internal/scheduler"
)

// ImportStatus reports the most recent NAV import
type ImportStatus interface {
	LatestImport(ctx context.Context) (*navs.ImportRecord, error)
}

// JobRunner exposes scheduled jobs to the API
type JobRunner interface {
	Jobs() []scheduler.JobStatus
	RunNow(name string) error
}

// SystemHandlers serves process, database and job status
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	databases []*database.DB
	imports   ImportStatus
	jobs      JobRunner
	startedAt time.Time
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string             `json:"status"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	CPUPercent    float64            `json:"cpu_percent"`
	MemoryPercent float64            `json:"memory_percent"`
	Goroutines    int                `json:"goroutines"`
	DataDirSizeMB float64            `json:"data_dir_size_mb"`
	Databases     []database.Stats   `json:"databases"`
	LatestImport  *navs.ImportRecord `json:"latest_import"`
}

// NewSystemHandlers creates system handlers. Nil databases are skipped.
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases []*database.DB, imports ImportStatus, jobs JobRunner) *SystemHandlers {
	dbs := make([]*database.DB, 0, len(databases))
	for _, db := range databases {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		dataDir:   dataDir,
		databases: dbs,
		imports:   imports,
		jobs:      jobs,
		startedAt: time.Now(),
	}
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	resp := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		DataDirSizeMB: h.getDirSize(h.dataDir),
		Databases:     h.collectStats(),
	}

	if err := h.checkDatabases(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("Database health check failed")
		resp.Status = "degraded"
	}

	if h.imports != nil {
		latest, err := h.imports.LatestImport(r.Context())
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to load latest import")
			http.Error(w, "Failed to load latest import", http.StatusInternalServerError)
			return
		}
		resp.LatestImport = latest
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := h.collectStats()

	var total int64
	for _, s := range stats {
		total += s.SizeBytes + s.WALSizeBytes
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"databases":   stats,
		"total_bytes": total,
	})
}

// HandleJobsStatus handles GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobStatus{}
	if h.jobs != nil {
		jobs = h.jobs.Jobs()
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// HandleTriggerJob handles POST /api/system/jobs/{name}. The job runs to
// completion before the response is written.
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		http.Error(w, "Scheduler not running", http.StatusServiceUnavailable)
		return
	}

	name := chi.URLParam(r, "name")
	started := time.Now()
	if err := h.jobs.RunNow(name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":         name,
		"status":      "completed",
		"duration_ms": time.Since(started).Milliseconds(),
	})
}

// checkDatabases runs the health check of every database
func (h *SystemHandlers) checkDatabases(ctx context.Context) error {
	for _, db := range h.databases {
		if err := db.HealthCheck(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (h *SystemHandlers) collectStats() []database.Stats {
	stats := make([]database.Stats, 0, len(h.databases))
	for _, db := range h.databases {
		s, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			continue
		}
		stats = append(stats, *s)
	}
	return stats
}

// getDirSize returns the size of a directory tree in megabytes
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	if dirPath == "" {
		return 0
	}

	var totalSize int64
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats samples CPU over 100ms and reads RAM usage
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStats, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory stats")
		return cpuPercent[0], 0
	}

	return cpuPercent[0], memStats.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
