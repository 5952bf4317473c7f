package metrics

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"
)

// Source supplies the raw readings the Sampler turns into a Snapshot.
type Source interface {
	CPUPercent(ctx context.Context) (float64, error)
	Memory(ctx context.Context) (Usage, error)
	Network(ctx context.Context) (NetCounters, error)
	Disk(ctx context.Context) (DiskCounters, error)
	RootDisk(ctx context.Context) (Usage, error)
	BootTime(ctx context.Context) (time.Time, error)
}

// Collector reads host counters through gopsutil.
type Collector struct {
	rootPath      string
	interfaceName string

	mu      sync.Mutex
	prevCPU cpu.TimesStat
	haveCPU bool
}

// NewCollector reads disk usage at rootPath and network counters for
// interfaceName. Empty values select the system drive and the sum of all
// interfaces.
func NewCollector(rootPath, interfaceName string) *Collector {
	if rootPath == "" {
		rootPath = defaultRootPath()
	}
	return &Collector{rootPath: rootPath, interfaceName: interfaceName}
}

func defaultRootPath() string {
	if runtime.GOOS == "windows" {
		if drive := os.Getenv("SystemDrive"); drive != "" {
			return drive + `\`
		}
		return `C:\`
	}
	return "/"
}

// CPUPercent reports busy time since the previous call. The first call
// only records a baseline and returns 0.
func (c *Collector) CPUPercent(ctx context.Context) (float64, error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return 0, err
	}
	if len(times) == 0 {
		return 0, fmt.Errorf("no cpu times reported")
	}
	curr := times[0]

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.haveCPU {
		c.prevCPU = curr
		c.haveCPU = true
		return 0, nil
	}
	usage := busyPercent(c.prevCPU, curr)
	c.prevCPU = curr
	return usage, nil
}

func busyPercent(prev, curr cpu.TimesStat) float64 {
	totalDelta := cpuTotal(curr) - cpuTotal(prev)
	idleDelta := (curr.Idle + curr.Iowait) - (prev.Idle + prev.Iowait)
	if totalDelta <= 0 {
		return 0
	}
	return clampFloat((1.0-idleDelta/totalDelta)*100.0, 0, 100)
}

func cpuTotal(stat cpu.TimesStat) float64 {
	return stat.User + stat.System + stat.Nice + stat.Idle + stat.Iowait + stat.Irq + stat.Softirq + stat.Steal
}

func (c *Collector) Memory(ctx context.Context) (Usage, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Usage{}, err
	}
	return Usage{Total: vm.Total, Used: vm.Used}, nil
}

func (c *Collector) Network(ctx context.Context) (NetCounters, error) {
	counters, err := psnet.IOCountersWithContext(ctx, c.interfaceName != "")
	if err != nil {
		return NetCounters{}, err
	}
	return pickInterface(counters, c.interfaceName)
}

// pickInterface returns the counters for name, or the first (aggregated)
// entry when name is empty.
func pickInterface(counters []psnet.IOCountersStat, name string) (NetCounters, error) {
	if len(counters) == 0 {
		return NetCounters{}, fmt.Errorf("no network counters reported")
	}
	if name == "" {
		return NetCounters{Sent: counters[0].BytesSent, Recv: counters[0].BytesRecv}, nil
	}
	for _, st := range counters {
		if st.Name == name {
			return NetCounters{Sent: st.BytesSent, Recv: st.BytesRecv}, nil
		}
	}
	return NetCounters{}, fmt.Errorf("interface %s not found", name)
}

func (c *Collector) Disk(ctx context.Context) (DiskCounters, error) {
	stats, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return DiskCounters{}, err
	}
	var out DiskCounters
	for name, st := range stats {
		if isPartitionOf(name, stats) {
			continue
		}
		out.Read += st.ReadBytes
		out.Write += st.WriteBytes
	}
	return out, nil
}

// isPartitionOf reports whether name is a partition of another device in
// stats, so its bytes are not counted twice. Disks named with a trailing
// letter take bare digits (sda1 of sda); disks named with a trailing digit
// take a "p" separator (nvme0n1p2 of nvme0n1, mmcblk0p1 of mmcblk0). Whole
// devices such as loop10, md127 and dm-12 never match.
func isPartitionOf[T any](name string, stats map[string]T) bool {
	for parent := range stats {
		if parent == name || !strings.HasPrefix(name, parent) {
			continue
		}
		suffix := strings.TrimPrefix(name, parent)
		last := parent[len(parent)-1]
		if last >= '0' && last <= '9' {
			if !strings.HasPrefix(suffix, "p") {
				continue
			}
			suffix = suffix[1:]
		}
		if isDigits(suffix) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	return s != "" && strings.Trim(s, "0123456789") == ""
}

func (c *Collector) RootDisk(ctx context.Context) (Usage, error) {
	usage, err := disk.UsageWithContext(ctx, c.rootPath)
	if err != nil {
		return Usage{}, err
	}
	return Usage{Total: usage.Total, Used: usage.Used}, nil
}

func (c *Collector) BootTime(ctx context.Context) (time.Time, error) {
	secs, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(secs), 0), nil
}
