package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, dataDir string) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
	}
}

// HandleSystemStatus returns process and host statistics
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, ramPercent := h.getSystemStats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"uptime_seconds": time.Since(h.startupTime).Seconds(),
		"cpu_percent":    cpuPercent,
		"ram_percent":    ramPercent,
		"goroutines":     runtime.NumGoroutine(),
		"go_version":     runtime.Version(),
	})
}

// HandleDiskUsage returns disk usage statistics
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	dataDirSize := h.getDirSize(h.dataDir)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data_dir":     h.dataDir,
		"data_dir_mb":  dataDirSize,
		"collected_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
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

// getSystemStats calculates CPU and RAM usage percentages
// Uses a 100ms sampling interval so the API call does not block noticeably
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
