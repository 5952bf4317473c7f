package metrics

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestStore_EmptyRead(t *testing.T) {
	s := NewStore()
	if _, err := s.Read(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestStore_ReadsAreIdempotent(t *testing.T) {
	s := NewStore()
	s.Publish(Snapshot{Tick: 7, CPUUsagePercent: 12.5, CPUName: "cpu"})

	a, err := s.Read()
	if err != nil {
		t.Fatalf("Read() err=%v", err)
	}
	b, err := s.Read()
	if err != nil {
		t.Fatalf("Read() err=%v", err)
	}
	if a != b {
		t.Fatalf("consecutive reads differ: %+v vs %+v", a, b)
	}
}

func TestStore_ReadReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Publish(Snapshot{Tick: 1, GPUName: "gpu"})

	got, _ := s.Read()
	got.GPUName = "mutated"

	again, _ := s.Read()
	if again.GPUName != "gpu" {
		t.Fatalf("store was mutated through a read copy: %q", again.GPUName)
	}
}

// uniform builds a snapshot where every field is derived from n, so a reader
// can tell whether all fields came from the same publish.
func uniform(n uint64) Snapshot {
	f := float64(n)
	label := strconv.FormatUint(n, 10)
	return Snapshot{
		Tick:               n,
		TakenAt:            time.Unix(int64(n), 0),
		CPUUsagePercent:    f,
		MemTotalBytes:      n,
		MemUsedBytes:       n,
		NetSentRateMbps:    f,
		NetRecvRateMbps:    f,
		NetTotalSentBytes:  n,
		NetTotalRecvBytes:  n,
		DiskReadRateMBs:    f,
		DiskWriteRateMBs:   f,
		RootDiskTotalBytes: n,
		RootDiskUsedBytes:  n,
		SystemUptimeHours:  f,
		CPUCores:           int(n),
		CPUName:            label,
		CPUArch:            label,
		CPUBaseFreqGHz:     f,
		OSName:             label,
		KernelVersion:      label,
		GPUName:            label,
		GPUUsagePercent:    f,
	}
}

func TestStore_NoTornReads(t *testing.T) {
	s := NewStore()
	s.Publish(uniform(0))

	const ticks = 2000
	const readers = 8

	stop := make(chan struct{})
	var wg sync.WaitGroup
	errCh := make(chan string, readers)

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap, err := s.Read()
				if err != nil {
					errCh <- err.Error()
					return
				}
				if snap != uniform(snap.Tick) {
					errCh <- "torn snapshot at tick " + strconv.FormatUint(snap.Tick, 10)
					return
				}
			}
		}()
	}

	for i := uint64(1); i <= ticks; i++ {
		s.Publish(uniform(i))
	}
	close(stop)
	wg.Wait()
	close(errCh)

	for msg := range errCh {
		t.Fatal(msg)
	}

	last, _ := s.Read()
	if last.Tick != ticks {
		t.Fatalf("expected last tick %d, got %d", ticks, last.Tick)
	}
}
