//go:build linux

package hostinfo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGPU_ParsesNvidiaSMI(t *testing.T) {
	p := &HostProvider{
		timeout: time.Second,
		run: func(ctx context.Context, name string, args ...string) (string, error) {
			if name != "nvidia-smi" {
				return "", errors.New("unexpected command " + name)
			}
			return "Tesla T4, 63", nil
		},
	}

	gpu, err := p.GPU(context.Background())
	if err != nil {
		t.Fatalf("GPU() err=%v", err)
	}
	if gpu.Name != "Tesla T4" || gpu.UsagePercent != 63 {
		t.Fatalf("unexpected gpu %+v", gpu)
	}
}

func TestGPU_MissingToolDegrades(t *testing.T) {
	p := &HostProvider{
		timeout: time.Second,
		run: func(ctx context.Context, name string, args ...string) (string, error) {
			return "", errors.New("executable file not found")
		},
	}

	gpu, err := p.GPU(context.Background())
	if err != nil {
		t.Fatalf("GPU() should degrade without error, got %v", err)
	}
	if gpu.Name == "" || gpu.UsagePercent != 0 {
		t.Fatalf("unexpected gpu %+v", gpu)
	}
}

func TestGPU_BoundedByTimeout(t *testing.T) {
	p := &HostProvider{
		timeout: 50 * time.Millisecond,
		run: func(ctx context.Context, name string, args ...string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}

	start := time.Now()
	if _, err := p.GPU(context.Background()); err != nil {
		t.Fatalf("GPU() err=%v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("GPU probe was not bounded, took %s", elapsed)
	}
}

func TestStatic_NeverLeavesBlankFields(t *testing.T) {
	p := &HostProvider{
		timeout: 500 * time.Millisecond,
		run: func(ctx context.Context, name string, args ...string) (string, error) {
			return "", errors.New("disabled in tests")
		},
	}

	info := p.Static(context.Background())
	if info.CPUName == "" || info.CPUArch == "" || info.OSName == "" || info.KernelVersion == "" {
		t.Fatalf("static info has blank fields: %+v", info)
	}
}
