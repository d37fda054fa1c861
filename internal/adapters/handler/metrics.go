// Package handler implements HTTP request handlers for ops endpoints
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/wagateway/core/internal/core/services"
)

// MetricsHandler implements GET /internal/metrics: real CPU/RAM/disk
// sampling, goroutine count, and circuit breaker / emergency-mode
// state, generalizing the teacher's DashboardHandler.GetSystemMetrics
// (its page-list and federated-sync handlers have no counterpart in
// this single-provider system and are dropped, per DESIGN.md).
type MetricsHandler struct {
	internalToken string
	startTime     time.Time
	emergency     *services.EmergencyMode
	breaker       *services.CircuitBreaker
}

// NewMetricsHandler wires the internal-token gate and the components
// whose live state this endpoint reports.
func NewMetricsHandler(internalToken string, emergency *services.EmergencyMode, breaker *services.CircuitBreaker) *MetricsHandler {
	return &MetricsHandler{
		internalToken: internalToken,
		startTime:     time.Now(),
		emergency:     emergency,
		breaker:       breaker,
	}
}

// systemMetricsResponse mirrors the teacher's SystemMetricsResponse.
type systemMetricsResponse struct {
	CPUPercent        float64        `json:"cpu_percent"`
	RAMUsedGB         float64        `json:"ram_used_gb"`
	RAMTotalGB        float64        `json:"ram_total_gb"`
	RAMPercent        float64        `json:"ram_percent"`
	DiskUsedGB        float64        `json:"disk_used_gb"`
	DiskTotalGB       float64        `json:"disk_total_gb"`
	DiskPercent       float64        `json:"disk_percent"`
	GoroutinesCount   int            `json:"goroutines_count"`
	UptimeSeconds     int64          `json:"uptime_seconds"`
	CircuitBreaker    string         `json:"circuit_breaker_state"`
	EmergencyMode     map[string]any `json:"emergency_mode"`
	DiskWarningLevel  string         `json:"disk_warning_level"`
}

// ServeHTTP handles GET /internal/metrics, gated by X-Internal-Token.
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.internalToken != "" && r.Header.Get("X-Internal-Token") != h.internalToken {
		writeJSON(w, http.StatusUnauthorized, NewErrorResponse(401, "invalid internal token"))
		return
	}

	ctx := r.Context()

	cpuPercents, err := cpu.PercentWithContext(ctx, time.Second, false)
	var cpuPercent float64
	if err == nil && len(cpuPercents) > 0 {
		cpuPercent = cpuPercents[0]
	}

	memStat, err := mem.VirtualMemoryWithContext(ctx)
	var ramUsedGB, ramTotalGB, ramPercent float64
	if err == nil {
		ramUsedGB = float64(memStat.Used) / 1024 / 1024 / 1024
		ramTotalGB = float64(memStat.Total) / 1024 / 1024 / 1024
		ramPercent = memStat.UsedPercent
	}

	diskStat, err := disk.UsageWithContext(ctx, ".")
	var diskUsedGB, diskTotalGB, diskPercent float64
	if err == nil {
		diskUsedGB = float64(diskStat.Used) / 1024 / 1024 / 1024
		diskTotalGB = float64(diskStat.Total) / 1024 / 1024 / 1024
		diskPercent = diskStat.UsedPercent
	}

	var diskWarningLevel string
	switch {
	case diskPercent < 70:
		diskWarningLevel = "safe"
	case diskPercent < 80:
		diskWarningLevel = "warning"
	default:
		diskWarningLevel = "critical"
	}

	breakerState := "disabled"
	if h.breaker != nil {
		breakerState = string(h.breaker.State())
	}

	resp := systemMetricsResponse{
		CPUPercent:       roundTo2Decimals(cpuPercent),
		RAMUsedGB:        roundTo2Decimals(ramUsedGB),
		RAMTotalGB:       roundTo2Decimals(ramTotalGB),
		RAMPercent:       roundTo2Decimals(ramPercent),
		DiskUsedGB:       roundTo2Decimals(diskUsedGB),
		DiskTotalGB:      roundTo2Decimals(diskTotalGB),
		DiskPercent:      roundTo2Decimals(diskPercent),
		GoroutinesCount:  runtime.NumGoroutine(),
		UptimeSeconds:    int64(time.Since(h.startTime).Seconds()),
		CircuitBreaker:   breakerState,
		EmergencyMode:    h.emergency.Status(),
		DiskWarningLevel: diskWarningLevel,
	}

	slog.Debug("system metrics retrieved", "cpu", cpuPercent, "disk_percent", diskPercent)
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func roundTo2Decimals(val float64) float64 {
	return float64(int(val*100)) / 100
}
