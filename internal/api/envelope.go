package api

import (
	"math"
	"time"

	"status-agent/internal/config"
	"status-agent/internal/metrics"
	"status-agent/internal/watchdog"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	msgInternal = "Failed to retrieve system status"
	msgStopping = "Service is shutting down"
	msgLimited  = "Rate limit exceeded"
)

const bytesPerGB = 1024 * 1024 * 1024

// SystemStatus is the wire form of a Snapshot.
type SystemStatus struct {
	CPUUsagePercent     float64 `json:"cpu_usage_percent"`
	CPUName             string  `json:"cpu_name"`
	CPUArch             string  `json:"cpu_arch"`
	IsVM                bool    `json:"is_vm"`
	MemoryTotalGB       float64 `json:"memory_total_gb"`
	MemoryUsedGB        float64 `json:"memory_used_gb"`
	RootDiskTotalGB     float64 `json:"root_disk_total_gb"`
	RootDiskUsedGB      float64 `json:"root_disk_used_gb"`
	NetUploadRateMbps   float64 `json:"net_upload_rate_mbps"`
	NetDownloadRateMbps float64 `json:"net_download_rate_mbps"`
	NetTotalUploadGB    float64 `json:"net_total_upload_gb"`
	NetTotalDownloadGB  float64 `json:"net_total_download_gb"`
	DiskReadRateMBs     float64 `json:"disk_read_rate_mbs"`
	DiskWriteRateMBs    float64 `json:"disk_write_rate_mbs"`
	SystemUptimeHours   float64 `json:"system_uptime_hours"`
	ProgramUptimeHours  float64 `json:"program_uptime_hours"`
	CPUCores            int     `json:"cpu_cores"`
	CPUBaseFreqGHz      float64 `json:"cpu_base_freq_ghz"`
	SystemType          string  `json:"system_type"`
	SystemKernel        string  `json:"system_kernel"`
	GPUName             string  `json:"gpu_name"`
	GPUUsagePercent     float64 `json:"gpu_usage_percent"`
}

// UpstreamStatus mirrors the watchdog counters. Times are Unix seconds.
type UpstreamStatus struct {
	LastSuccess         float64 `json:"last_success"`
	LastAttempt         float64 `json:"last_attempt"`
	ConsecutiveFailures uint    `json:"consecutive_failures"`
	Active              bool    `json:"active"`
}

type Envelope struct {
	Status       string          `json:"status"`
	Code         int             `json:"code"`
	Message      string          `json:"message,omitempty"`
	SystemStatus *SystemStatus   `json:"system_status,omitempty"`
	GameServer   map[string]any  `json:"game_server_status,omitempty"`
	APIStatus    *UpstreamStatus `json:"api_status,omitempty"`
	Config       *config.Display `json:"config,omitempty"`
}

func errorEnvelope(code int, message string) Envelope {
	return Envelope{Status: statusError, Code: code, Message: message}
}

func round(val float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(val*p) / p
}

func gigabytes(b uint64) float64 {
	return float64(b) / bytesPerGB
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

// systemStatus renders snap with the per-field precision clients expect.
func systemStatus(snap metrics.Snapshot, programUptime time.Duration) *SystemStatus {
	return &SystemStatus{
		CPUUsagePercent:     round(snap.CPUUsagePercent, 1),
		CPUName:             snap.CPUName,
		CPUArch:             snap.CPUArch,
		IsVM:                snap.IsVirtualMachine,
		MemoryTotalGB:       round(gigabytes(snap.MemTotalBytes), 2),
		MemoryUsedGB:        round(gigabytes(snap.MemUsedBytes), 2),
		RootDiskTotalGB:     round(gigabytes(snap.RootDiskTotalBytes), 2),
		RootDiskUsedGB:      round(gigabytes(snap.RootDiskUsedBytes), 2),
		NetUploadRateMbps:   round(snap.NetSentRateMbps, 2),
		NetDownloadRateMbps: round(snap.NetRecvRateMbps, 2),
		NetTotalUploadGB:    round(gigabytes(snap.NetTotalSentBytes), 3),
		NetTotalDownloadGB:  round(gigabytes(snap.NetTotalRecvBytes), 3),
		DiskReadRateMBs:     round(snap.DiskReadRateMBs, 2),
		DiskWriteRateMBs:    round(snap.DiskWriteRateMBs, 2),
		SystemUptimeHours:   round(snap.SystemUptimeHours, 1),
		ProgramUptimeHours:  round(programUptime.Hours(), 1),
		CPUCores:            snap.CPUCores,
		CPUBaseFreqGHz:      round(snap.CPUBaseFreqGHz, 2),
		SystemType:          snap.OSName,
		SystemKernel:        snap.KernelVersion,
		GPUName:             snap.GPUName,
		GPUUsagePercent:     round(snap.GPUUsagePercent, 1),
	}
}

// upstreamSections renders the cached upstream payload with its
// online/offline marker, plus the watchdog counters.
func upstreamSections(st watchdog.Status) (map[string]any, *UpstreamStatus) {
	game := make(map[string]any, len(st.Upstream)+1)
	for k, v := range st.Upstream {
		game[k] = v
	}
	game["status"] = st.UpstreamStatus

	return game, &UpstreamStatus{
		LastSuccess:         unixSeconds(st.LastSuccessAt),
		LastAttempt:         unixSeconds(st.LastAttemptAt),
		ConsecutiveFailures: st.ConsecutiveFailures,
		Active:              st.Alive,
	}
}
