//go:build !linux && !darwin && !windows

package hostinfo

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

func cpuName(ctx context.Context, run Runner, arch string) (string, error) {
	return "", nil
}

func osInfo(ctx context.Context, run Runner) (string, string, error) {
	platform, _, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		return runtime.GOOS, "", err
	}
	kernel, _ := host.KernelVersionWithContext(ctx)
	if platform == "" {
		platform = runtime.GOOS
	}
	if version != "" {
		platform += " " + version
	}
	return platform, kernel, nil
}

func detectVM(ctx context.Context, run Runner) (bool, error) {
	return false, nil
}

func gpuInfo(ctx context.Context, run Runner) (GPU, error) {
	return GPU{Name: NotAvailable}, nil
}
