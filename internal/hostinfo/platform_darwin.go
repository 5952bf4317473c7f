//go:build darwin

package hostinfo

import (
	"context"
	"strings"

	"golang.org/x/sys/unix"
)

func cpuName(ctx context.Context, run Runner, arch string) (string, error) {
	if name, err := unix.Sysctl("machdep.cpu.brand_string"); err == nil && name != "" {
		return name, nil
	}
	return run(ctx, "sysctl", "-n", "machdep.cpu.brand_string")
}

func osInfo(ctx context.Context, run Runner) (string, string, error) {
	kernel, _ := unix.Sysctl("kern.osrelease")

	product, err := run(ctx, "sw_vers", "-productName")
	if err != nil {
		return "macOS", kernel, err
	}
	version, _ := run(ctx, "sw_vers", "-productVersion")
	return strings.TrimSpace(product + " " + version), kernel, nil
}

func detectVM(ctx context.Context, run Runner) (bool, error) {
	features, err := unix.Sysctl("machdep.cpu.features")
	if err != nil {
		features, err = run(ctx, "sysctl", "-n", "machdep.cpu.features")
		if err != nil {
			return false, err
		}
	}
	return strings.Contains(strings.ToLower(features), "vmm") ||
		strings.Contains(strings.ToLower(features), "hypervisor"), nil
}

func gpuInfo(ctx context.Context, run Runner) (GPU, error) {
	out, err := run(ctx, "system_profiler", "SPDisplaysDataType")
	if err != nil {
		return GPU{Name: NotAvailable}, err
	}
	if name := parseChipsetModel(out); name != "" {
		return GPU{Name: name}, nil
	}
	return GPU{Name: NotAvailable}, nil
}
