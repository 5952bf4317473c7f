//go:build windows

package hostinfo

import (
	"context"
	"fmt"
	"strings"

	wmi "github.com/StackExchange/wmi"
)

type win32Processor struct {
	Name string
}

type win32OperatingSystem struct {
	Caption string
	Version string
}

type win32ComputerSystem struct {
	Manufacturer string
	Model        string
}

type win32BIOS struct {
	Manufacturer string
}

type win32VideoController struct {
	Name string
}

// queryWMI runs a WMI query off the calling goroutine so ctx can bound it.
func queryWMI[T any](ctx context.Context, query string) ([]T, error) {
	type result struct {
		rows []T
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		var rows []T
		err := wmi.Query(query, &rows)
		ch <- result{rows: rows, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("wmi %q: %w", query, ctx.Err())
	case r := <-ch:
		return r.rows, r.err
	}
}

func cpuName(ctx context.Context, run Runner, arch string) (string, error) {
	rows, err := queryWMI[win32Processor](ctx, "SELECT Name FROM Win32_Processor")
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return strings.TrimSpace(rows[0].Name), nil
}

func osInfo(ctx context.Context, run Runner) (string, string, error) {
	rows, err := queryWMI[win32OperatingSystem](ctx, "SELECT Caption, Version FROM Win32_OperatingSystem")
	if err != nil {
		return "Windows", "", err
	}
	if len(rows) == 0 {
		return "Windows", "", nil
	}
	return strings.TrimSpace(rows[0].Caption), strings.TrimSpace(rows[0].Version), nil
}

func detectVM(ctx context.Context, run Runner) (bool, error) {
	systems, err := queryWMI[win32ComputerSystem](ctx, "SELECT Manufacturer, Model FROM Win32_ComputerSystem")
	if err == nil {
		for _, s := range systems {
			if containsAny(s.Manufacturer+" "+s.Model, vmProductKeywords) {
				return true, nil
			}
		}
	}

	bios, err := queryWMI[win32BIOS](ctx, "SELECT Manufacturer FROM Win32_BIOS")
	if err != nil {
		return false, err
	}
	for _, b := range bios {
		if containsAny(b.Manufacturer, vmProductKeywords) {
			return true, nil
		}
	}
	return false, nil
}

func gpuInfo(ctx context.Context, run Runner) (GPU, error) {
	out, err := run(ctx, "nvidia-smi", "--query-gpu=name,utilization.gpu", "--format=csv,noheader,nounits")
	if err == nil {
		return parseNvidiaSMI(out)
	}

	rows, werr := queryWMI[win32VideoController](ctx, "SELECT Name FROM Win32_VideoController")
	if werr != nil || len(rows) == 0 {
		return GPU{Name: NotAvailable}, werr
	}
	return GPU{Name: strings.TrimSpace(rows[0].Name)}, nil
}
