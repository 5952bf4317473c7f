// Package hostinfo resolves host identity (CPU model, OS, virtualization)
// and GPU utilisation through platform specific probes. Probes never fail
// the caller: anything that cannot be determined is reported as Unknown.
package hostinfo

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"

	"status-agent/internal/logging"
)

const (
	Unknown      = "Unknown"
	NotAvailable = "N/A"
)

// Static holds host facts that are resolved once at startup.
type Static struct {
	CPUName          string
	CPUArch          string
	CPUCores         int
	CPUBaseFreqGHz   float64
	IsVirtualMachine bool
	OSName           string
	KernelVersion    string
}

type GPU struct {
	Name         string
	UsagePercent float64
}

// Provider is the capability the sampler needs from the platform.
type Provider interface {
	Static(ctx context.Context) Static
	GPU(ctx context.Context) (GPU, error)
}

// HostProvider is the Provider for the running platform.
type HostProvider struct {
	timeout time.Duration
	run     Runner
}

func New(timeout time.Duration) *HostProvider {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HostProvider{timeout: timeout, run: RunCommand}
}

// Static runs every identity probe with its own timeout.
func (p *HostProvider) Static(ctx context.Context) Static {
	info := Static{
		CPUName:       Unknown,
		CPUArch:       Unknown,
		OSName:        Unknown,
		KernelVersion: Unknown,
	}

	p.probe(ctx, "cpu cores", func(ctx context.Context) error {
		n, err := cpu.CountsWithContext(ctx, true)
		if err != nil {
			return err
		}
		info.CPUCores = n
		return nil
	})

	p.probe(ctx, "cpu arch", func(ctx context.Context) error {
		arch, err := host.KernelArch()
		if err != nil {
			return err
		}
		if arch = strings.TrimSpace(arch); arch != "" {
			info.CPUArch = arch
		}
		return nil
	})

	p.probe(ctx, "cpu name", func(ctx context.Context) error {
		name, err := cpuName(ctx, p.run, info.CPUArch)
		if err != nil {
			return err
		}
		if name != "" {
			info.CPUName = name
		}
		return nil
	})

	p.probe(ctx, "cpu frequency", func(ctx context.Context) error {
		stats, err := cpu.InfoWithContext(ctx)
		if err != nil {
			return err
		}
		var maxMhz float64
		for _, st := range stats {
			if st.Mhz > maxMhz {
				maxMhz = st.Mhz
			}
			if info.CPUName == Unknown && st.ModelName != "" {
				info.CPUName = st.ModelName
			}
		}
		info.CPUBaseFreqGHz = maxMhz / 1000.0
		return nil
	})

	p.probe(ctx, "os", func(ctx context.Context) error {
		name, kernel, err := osInfo(ctx, p.run)
		if name != "" {
			info.OSName = name
		}
		if kernel != "" {
			info.KernelVersion = kernel
		}
		return err
	})

	p.probe(ctx, "virtualization", func(ctx context.Context) error {
		if _, role, err := host.VirtualizationWithContext(ctx); err == nil && role == "guest" {
			info.IsVirtualMachine = true
			return nil
		}
		vm, err := detectVM(ctx, p.run)
		info.IsVirtualMachine = vm
		return err
	})

	log.Printf("host: cpu=%q arch=%s cores=%d vm=%t os=%q kernel=%q",
		info.CPUName, info.CPUArch, info.CPUCores, info.IsVirtualMachine, info.OSName, info.KernelVersion)

	return info
}

// GPU queries the first GPU's name and utilisation.
func (p *HostProvider) GPU(ctx context.Context) (GPU, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return gpuInfo(ctx, p.run)
}

func (p *HostProvider) probe(ctx context.Context, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		logging.Debugf("host probe %s: %v", name, err)
	}
}
