//go:build linux

package hostinfo

import (
	"context"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

func cpuName(ctx context.Context, run Runner, arch string) (string, error) {
	if name, ok := armCPUName(arch); ok {
		return name, nil
	}

	if data, err := os.ReadFile("/proc/cpuinfo"); err == nil {
		if name := parseCPUInfoModel(string(data)); name != "" {
			return name, nil
		}
	}

	out, err := run(ctx, "lscpu")
	if err != nil {
		return "", err
	}
	return parseLscpuModel(out), nil
}

func osInfo(ctx context.Context, run Runner) (string, string, error) {
	kernel := kernelRelease()

	if data, err := os.ReadFile("/etc/os-release"); err == nil {
		if name := parseOSRelease(string(data)); name != "" {
			return name, kernel, nil
		}
	}

	out, err := run(ctx, "lsb_release", "-d")
	if err != nil {
		return "Linux", kernel, err
	}
	if name := parseLsbDescription(out); name != "" {
		return name, kernel, nil
	}
	return "Linux", kernel, nil
}

func kernelRelease() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uts.Release[:])
}

func detectVM(ctx context.Context, run Runner) (bool, error) {
	if data, err := os.ReadFile("/proc/cpuinfo"); err == nil {
		if strings.Contains(strings.ToLower(string(data)), "hypervisor") {
			return true, nil
		}
	}

	for _, path := range []string{
		"/sys/class/dmi/id/product_name",
		"/sys/class/dmi/id/sys_vendor",
		"/sys/class/dmi/id/board_vendor",
	} {
		if data, err := os.ReadFile(path); err == nil && containsAny(string(data), vmProductKeywords) {
			return true, nil
		}
	}

	if data, err := os.ReadFile("/proc/modules"); err == nil && containsAny(string(data), vmModuleKeywords) {
		return true, nil
	}

	for _, path := range []string{
		"/sys/devices/virtual/dmi/id/product_uuid",
		"/sys/class/dmi/id/product_serial",
		"/sys/class/dmi/id/product_version",
	} {
		if data, err := os.ReadFile(path); err == nil && containsAny(string(data), cloudProductKeywords) {
			return true, nil
		}
	}

	out, err := run(ctx, "dmidecode", "-s", "system-product-name")
	if err != nil {
		return false, err
	}
	return containsAny(out, vmProductKeywords), nil
}

func gpuInfo(ctx context.Context, run Runner) (GPU, error) {
	out, err := run(ctx, "nvidia-smi", "--query-gpu=name,utilization.gpu", "--format=csv,noheader,nounits")
	if err == nil {
		return parseNvidiaSMI(out)
	}

	if data, rerr := os.ReadFile("/proc/device-tree/model"); rerr == nil {
		if name := armBoardGPU(strings.TrimRight(string(data), "\x00\n")); name != "" {
			return GPU{Name: name}, nil
		}
	}

	return GPU{Name: NotAvailable}, nil
}
