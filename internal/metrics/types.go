package metrics

import "time"

const (
	// GPUDisabled is reported when GPU monitoring is turned off.
	GPUDisabled = "Monitoring Disabled"
	// GPUUnknown is reported until the first GPU probe completes.
	GPUUnknown = "N/A"
)

// Snapshot is the complete result of one sampling tick. It only holds
// values, so assigning it copies it.
type Snapshot struct {
	Tick    uint64
	TakenAt time.Time

	CPUUsagePercent float64
	MemTotalBytes   uint64
	MemUsedBytes    uint64

	NetSentRateMbps   float64
	NetRecvRateMbps   float64
	NetTotalSentBytes uint64
	NetTotalRecvBytes uint64

	DiskReadRateMBs    float64
	DiskWriteRateMBs   float64
	RootDiskTotalBytes uint64
	RootDiskUsedBytes  uint64

	SystemUptimeHours float64

	CPUCores         int
	CPUName          string
	CPUArch          string
	IsVirtualMachine bool
	CPUBaseFreqGHz   float64
	OSName           string
	KernelVersion    string

	GPUName         string
	GPUUsagePercent float64
}

// NetCounters are the cumulative bytes reported by the OS for all interfaces.
type NetCounters struct {
	Sent uint64
	Recv uint64
}

// DiskCounters are the cumulative bytes read and written across physical disks.
type DiskCounters struct {
	Read  uint64
	Write uint64
}

type Usage struct {
	Total uint64
	Used  uint64
}
